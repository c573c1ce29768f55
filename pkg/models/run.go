package models

import "time"

// Step is the state tag of a workflow run.
type Step string

const (
	StepStart        Step = "start"
	StepFetch        Step = "fetch"
	StepDetect       Step = "detect"
	StepNotify       Step = "notify"
	StepStore        Step = "store"
	StepErrorHandler Step = "error_handler"
	StepRetryHandler Step = "retry_handler"
	StepEnd          Step = "end"
)

// Terminal reports whether no transition leaves s.
func (s Step) Terminal() bool {
	return s == StepEnd
}

// ErrorCategory groups run failures by how the engine reacted to them.
type ErrorCategory string

const (
	ErrorCategoryFetchFatal       ErrorCategory = "fetch_fatal"
	ErrorCategoryRetriesExhausted ErrorCategory = "retries_exhausted"
	ErrorCategoryDetection        ErrorCategory = "detection"
	ErrorCategoryPersistence      ErrorCategory = "persistence"
)

// RunError is the categorized failure attached to a run that did not succeed.
type RunError struct {
	Category ErrorCategory `json:"category"`
	Kind     string        `json:"kind,omitempty"`
	Message  string        `json:"message"`
}

func (e *RunError) Error() string {
	if e.Kind != "" {
		return string(e.Category) + " (" + e.Kind + "): " + e.Message
	}

	return string(e.Category) + ": " + e.Message
}

// WorkflowRun is the state of one execution for one target. It is owned by a
// single engine invocation and discarded once its audit record is written.
type WorkflowRun struct {
	WorkflowID      string
	Target          Target
	PreviousContent string
	CurrentContent  string
	ChangeEntries   []ChangeEntry
	Step            Step
	FinalStep       Step
	Error           *RunError
	RetryCount      int
	StartedAt       time.Time
	LastUpdated     time.Time
	CompletedAt     time.Time
}

// Succeeded reports whether the run reached End without a recorded failure.
func (r *WorkflowRun) Succeeded() bool {
	return r.Step == StepEnd && r.Error == nil
}

// ChangeEntry is an immutable record of a meaningful difference between two fetches.
type ChangeEntry struct {
	ID            string    `json:"id"`
	WorkflowID    string    `json:"workflow_id"`
	Target        TargetRef `json:"target"`
	BeforeContent string    `json:"before_content"`
	AfterContent  string    `json:"after_content"`
	Summary       string    `json:"summary"`
	Method        string    `json:"method"`
	DetectedAt    time.Time `json:"detected_at"`
}

// AuditRecord is the write-once outcome of a single workflow run.
type AuditRecord struct {
	WorkflowID    string        `json:"workflow_id"`
	Target        TargetRef     `json:"target"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	Success       bool          `json:"success"`
	Error         *RunError     `json:"error,omitempty"`
	ChangesCount  int           `json:"changes_count"`
	RetryCount    int           `json:"retry_count"`
	FinalStep     Step          `json:"final_step"`
	Duration      time.Duration `json:"duration"`
	ContentLength int           `json:"content_length"`
}
