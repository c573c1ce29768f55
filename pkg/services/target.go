package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/changewatch/pkg/eventbus"
	"github.com/dukex/changewatch/pkg/events"
	"github.com/dukex/changewatch/pkg/models"
	"github.com/dukex/changewatch/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultFrequencyMinutes = 60
	DefaultListLimit        = 50
	MaxListLimit            = 500
)

// CreateTargetRequest contains the fields accepted when adding a target.
type CreateTargetRequest struct {
	URL              string            `validate:"required,url"`
	Type             models.TargetType `validate:"required,oneof=profile company generic_site"`
	Name             string
	FrequencyMinutes int
	Recipients       []string `validate:"omitempty,dive,required"`
}

// UpdateTargetRequest holds a partial update; nil fields are left alone.
type UpdateTargetRequest struct {
	Name             *string
	FrequencyMinutes *int
	Active           *bool
	Recipients       *[]string
}

func (r UpdateTargetRequest) empty() bool {
	return r.Name == nil && r.FrequencyMinutes == nil && r.Active == nil && r.Recipients == nil
}

type Target struct {
	persistence persistence.Persistence
	events      eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

// NewTarget creates the target service. publisher receives a target.due
// event for every new target and may be nil.
func NewTarget(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Target {
	if publisher == nil {
		publisher = eventbus.Discard
	}

	return &Target{
		persistence: p,
		events:      publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "target_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Target) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (s *Target) List(ctx context.Context) ([]*models.Target, error) {
	targets, err := s.persistence.TargetRepository().Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	return targets, nil
}

func (s *Target) FetchByID(ctx context.Context, id string) (*models.Target, error) {
	return s.persistence.TargetRepository().TargetByID(ctx, id)
}

// Create stores a new active target that is due immediately.
func (s *Target) Create(ctx context.Context, req CreateTargetRequest) (*models.Target, error) {
	req.URL = strings.TrimSpace(req.URL)

	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "INVALID_TARGET", err.Error(), ErrInvalidRequest)
	}

	if req.FrequencyMinutes == 0 {
		req.FrequencyMinutes = DefaultFrequencyMinutes
	}

	frequency, err := frequencyFor("Create", req.FrequencyMinutes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	target := &models.Target{
		URL:         req.URL,
		Name:        req.Name,
		Type:        req.Type,
		Frequency:   frequency,
		Active:      true,
		Recipients:  req.Recipients,
		NextCheckAt: &now,
	}

	if err := target.Validate(); err != nil {
		return nil, NewValidationError("Create", "INVALID_TARGET", err.Error(), ErrInvalidRequest)
	}

	if err := s.persistence.TargetRepository().SaveTarget(ctx, target); err != nil {
		if persistence.IsTargetAlreadyExists(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	s.announce(ctx, target, now)

	return target, nil
}

func (s *Target) announce(ctx context.Context, target *models.Target, at time.Time) {
	event := events.TargetDue{
		BaseEvent: events.NewBaseEvent(events.TargetDueEvent, ""),
		TargetURL: target.URL,
		DueAt:     at,
	}

	if err := s.events.Publish(ctx, target.URL, event); err != nil {
		s.logger.WarnContext(ctx, "failed to queue first check", "target_url", target.URL, "error", err)
	}
}

// Update applies the non-nil fields of req to the target with id.
func (s *Target) Update(ctx context.Context, id string, req UpdateTargetRequest) (*models.Target, error) {
	if req.empty() {
		return nil, ErrNoUpdateFields
	}

	repo := s.persistence.TargetRepository()

	target, err := repo.TargetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		target.Name = *req.Name
	}

	if req.FrequencyMinutes != nil {
		frequency, err := frequencyFor("Update", *req.FrequencyMinutes)
		if err != nil {
			return nil, err
		}

		target.Frequency = frequency
	}

	if req.Active != nil {
		target.Active = *req.Active
	}

	if req.Recipients != nil {
		if err := s.validate.Var(*req.Recipients, "dive,required"); err != nil {
			return nil, NewValidationError("Update", "INVALID_RECIPIENTS", err.Error(), ErrInvalidRequest)
		}

		target.Recipients = *req.Recipients
	}

	if err := repo.SaveTarget(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update target: %w", err)
	}

	return target, nil
}

func (s *Target) Delete(ctx context.Context, id string) error {
	return s.persistence.TargetRepository().DeleteTarget(ctx, id)
}

// Changes returns the newest change entries of the target with id.
func (s *Target) Changes(ctx context.Context, id string, limit int) ([]models.ChangeEntry, error) {
	target, limit, err := s.lookup(ctx, "Changes", id, limit)
	if err != nil {
		return nil, err
	}

	entries, err := s.persistence.ChangeEntryRepository().ChangeEntries(ctx, target.URL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load changes: %w", err)
	}

	return entries, nil
}

// Runs returns the newest audit records of the target with id.
func (s *Target) Runs(ctx context.Context, id string, limit int) ([]models.AuditRecord, error) {
	target, limit, err := s.lookup(ctx, "Runs", id, limit)
	if err != nil {
		return nil, err
	}

	records, err := s.persistence.AuditRecordRepository().AuditRecords(ctx, target.URL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	return records, nil
}

func (s *Target) lookup(ctx context.Context, op, id string, limit int) (*models.Target, int, error) {
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 0 || limit > MaxListLimit:
		return nil, 0, NewValidationError(op, "INVALID_LIMIT",
			fmt.Sprintf("limit must be between 1 and %d", MaxListLimit), ErrInvalidLimit)
	}

	target, err := s.persistence.TargetRepository().TargetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	return target, limit, nil
}

func frequencyFor(op string, minutes int) (time.Duration, error) {
	if minutes < 1 {
		return 0, NewValidationError(op, "INVALID_FREQUENCY",
			fmt.Sprintf("frequency_minutes %d is below 1", minutes), ErrFrequencyTooLow)
	}

	return time.Duration(minutes) * time.Minute, nil
}
