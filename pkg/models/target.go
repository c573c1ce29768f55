// Package models defines the domain records for periodic change monitoring.
package models

import (
	"errors"
	"fmt"
	"time"
)

// TargetType biases change classification toward the semantics of the monitored page.
type TargetType string

const (
	TargetTypeProfile     TargetType = "profile"
	TargetTypeCompany     TargetType = "company"
	TargetTypeGenericSite TargetType = "generic_site"
)

// MinFrequency is the shortest interval a target may be checked at.
const MinFrequency = time.Minute

var ErrFrequencyTooShort = errors.New("frequency must be at least one minute")

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetTypeProfile, TargetTypeCompany, TargetTypeGenericSite:
		return true
	default:
		return false
	}
}

// Target is a URL checked periodically for meaningful changes.
// LastContent and LastChecked are only mutated by a completed workflow run.
type Target struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"                     validate:"required,url"`
	Name        string        `json:"name,omitempty"`
	Type        TargetType    `json:"target_type"             validate:"required,oneof=profile company generic_site"`
	Frequency   time.Duration `json:"frequency"               validate:"required"`
	Active      bool          `json:"active"`
	Recipients  []string      `json:"recipients,omitempty"    validate:"omitempty,dive,required"`
	LastChecked *time.Time    `json:"last_checked,omitempty"`
	LastContent string        `json:"last_content,omitempty"`
	NextCheckAt *time.Time    `json:"next_check_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate checks the invariants that struct tags cannot express.
func (t *Target) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("invalid target type %q", t.Type)
	}

	if t.Frequency < MinFrequency {
		return ErrFrequencyTooShort
	}

	return nil
}

// IsDue reports whether the target should be checked at now.
func (t *Target) IsDue(now time.Time) bool {
	if !t.Active {
		return false
	}

	if t.NextCheckAt == nil {
		return true
	}

	return !t.NextCheckAt.After(now)
}

// Identity is the reference carried by change entries and audit records.
func (t *Target) Identity() TargetRef {
	return TargetRef{ID: t.ID, URL: t.URL, Type: t.Type}
}

// TargetRef identifies a target without carrying its mutable state.
type TargetRef struct {
	ID   string     `json:"id,omitempty"`
	URL  string     `json:"url"`
	Type TargetType `json:"target_type"`
}
