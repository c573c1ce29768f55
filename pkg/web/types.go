// Package web provides HTTP request and response types for the target API.
package web

import (
	"time"

	"github.com/dukex/changewatch/pkg/models"
)

// CreateTargetRequest represents the request body for adding a target.
type CreateTargetRequest struct {
	URL              string   `json:"url"                         validate:"required,url"`
	TargetType       string   `json:"target_type"                 validate:"required,oneof=profile company generic_site"`
	Name             string   `json:"name,omitempty"`
	FrequencyMinutes int      `json:"frequency_minutes,omitempty" validate:"omitempty,min=1"`
	Recipients       []string `json:"recipients,omitempty"        validate:"omitempty,dive,required"`
}

// UpdateTargetRequest represents a partial update. Omitted fields are left unchanged.
type UpdateTargetRequest struct {
	Name             *string   `json:"name,omitempty"`
	FrequencyMinutes *int      `json:"frequency_minutes,omitempty" validate:"omitempty,min=1"`
	Active           *bool     `json:"active,omitempty"`
	Recipients       *[]string `json:"recipients,omitempty"`
}

// TargetResponse is a target without its stored snapshot.
type TargetResponse struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Name             string     `json:"name,omitempty"`
	TargetType       string     `json:"target_type"`
	FrequencyMinutes int        `json:"frequency_minutes"`
	Active           bool       `json:"active"`
	Recipients       []string   `json:"recipients"`
	LastChecked      *time.Time `json:"last_checked,omitempty"`
	NextCheckAt      *time.Time `json:"next_check_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func TransformTargetResponse(target *models.Target) TargetResponse {
	recipients := target.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	return TargetResponse{
		ID:               target.ID,
		URL:              target.URL,
		Name:             target.Name,
		TargetType:       string(target.Type),
		FrequencyMinutes: int(target.Frequency / time.Minute),
		Active:           target.Active,
		Recipients:       recipients,
		LastChecked:      target.LastChecked,
		NextCheckAt:      target.NextCheckAt,
		CreatedAt:        target.CreatedAt,
		UpdatedAt:        target.UpdatedAt,
	}
}

// RunResponse is an audit record with its duration in milliseconds.
type RunResponse struct {
	WorkflowID    string           `json:"workflow_id"`
	TargetURL     string           `json:"target_url"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   time.Time        `json:"completed_at"`
	Success       bool             `json:"success"`
	Error         *models.RunError `json:"error,omitempty"`
	ChangesCount  int              `json:"changes_count"`
	RetryCount    int              `json:"retry_count"`
	FinalStep     string           `json:"final_step"`
	DurationMS    int64            `json:"duration_ms"`
	ContentLength int              `json:"content_length"`
}

func TransformRunResponse(record models.AuditRecord) RunResponse {
	return RunResponse{
		WorkflowID:    record.WorkflowID,
		TargetURL:     record.Target.URL,
		StartedAt:     record.StartedAt,
		CompletedAt:   record.CompletedAt,
		Success:       record.Success,
		Error:         record.Error,
		ChangesCount:  record.ChangesCount,
		RetryCount:    record.RetryCount,
		FinalStep:     string(record.FinalStep),
		DurationMS:    record.Duration.Milliseconds(),
		ContentLength: record.ContentLength,
	}
}
