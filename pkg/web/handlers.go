package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	targetService *services.Target
	validator     *validator.Validate
}

func NewAPIHandlers(targetService *services.Target, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		targetService: targetService,
		validator:     validator,
	}
}

// Routes registers the target API on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	t := router.Group("/targets")
	t.Get("/", h.GetTargets)
	t.Post("/", h.CreateTarget)
	t.Get("/:id", h.GetTarget)
	t.Patch("/:id", h.UpdateTarget)
	t.Delete("/:id", h.DeleteTarget)
	t.Get("/:id/changes", h.GetTargetChanges)
	t.Get("/:id/runs", h.GetTargetRuns)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.targetService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetTargets(c fiber.Ctx) error {
	targets, err := h.targetService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]TargetResponse, 0, len(targets))
	for _, target := range targets {
		response = append(response, TransformTargetResponse(target))
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetTarget(c fiber.Ctx) error {
	target, err := h.targetService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformTargetResponse(target))
}

func (h *APIHandlers) CreateTarget(c fiber.Ctx) error {
	var req CreateTargetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.targetService.Create(c.Context(), services.CreateTargetRequest{
		URL:              req.URL,
		Type:             models.TargetType(req.TargetType),
		Name:             req.Name,
		FrequencyMinutes: req.FrequencyMinutes,
		Recipients:       req.Recipients,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformTargetResponse(created))
}

func (h *APIHandlers) UpdateTarget(c fiber.Ctx) error {
	var req UpdateTargetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.targetService.Update(c.Context(), c.Params("id"), services.UpdateTargetRequest{
		Name:             req.Name,
		FrequencyMinutes: req.FrequencyMinutes,
		Active:           req.Active,
		Recipients:       req.Recipients,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformTargetResponse(updated))
}

func (h *APIHandlers) DeleteTarget(c fiber.Ctx) error {
	if err := h.targetService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTargetChanges(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	changes, err := h.targetService.Changes(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(changes)
}

func (h *APIHandlers) GetTargetRuns(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	records, err := h.targetService.Runs(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]RunResponse, 0, len(records))
	for _, record := range records {
		response = append(response, TransformRunResponse(record))
	}

	return c.JSON(response)
}

func parseLimit(c fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}
