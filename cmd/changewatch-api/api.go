// Package main provides the changewatch API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/persistence"
	"github.com/dukex/changewatch/pkg/services"
	"github.com/dukex/changewatch/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	events      eventbus.EventPublisher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	events eventbus.EventPublisher,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		events:      events,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	targetService := services.NewTarget(a.persistence, a.events, a.logger)
	handlers := web.NewAPIHandlers(targetService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("changewatch API")
	})

	handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
