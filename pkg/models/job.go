package models

import (
	"fmt"
	"time"
)

// JobType identifies what kind of artwork a job produces.
type JobType string

const (
	JobTypeSticker JobType = "sticker"
	JobTypeImage   JobType = "image"
)

// Valid reports whether the job type is one of the known types.
func (t JobType) Valid() bool {
	return t == JobTypeSticker || t == JobTypeImage
}

// JobStatus represents the life cycle state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether the status is final. Terminal jobs are never
// mutated again; a redelivered notification for a terminal job is a no-op.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransitionTo reports whether moving from s to next is legal.
// Legal sequences are queued -> error and queued -> processing -> {done | error}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing || next == JobStatusError
	case JobStatusProcessing:
		return next == JobStatusDone || next == JobStatusError
	default:
		return false
	}
}

// Job represents a single stylization request moving through the pipeline.
type Job struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	Type               JobType   `json:"type" db:"job_type"`
	InputPath          string    `json:"input_path" db:"input_path"`
	Style              string    `json:"style" db:"style"`
	Status             JobStatus `json:"status" db:"status"`
	ErrorCode          string    `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage       string    `json:"error_message,omitempty" db:"error_message"`
	ResultGenerationID string    `json:"result_generation_id,omitempty" db:"result_generation_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// JobCreatedEvent is the notification published when a job record is
// created. It carries the job payload as it existed at trigger time; the
// worker reloads the record before acting on it.
type JobCreatedEvent struct {
	JobID     string  `json:"job_id"`
	UserID    string  `json:"user_id"`
	Type      JobType `json:"type"`
	InputPath string  `json:"input_path"`
	Style     string  `json:"style"`
}

// Validate checks the event for structural defects. A failing event is a
// producer bug and must be dropped, never retried.
func (e *JobCreatedEvent) Validate() error {
	if e.JobID == "" {
		return fmt.Errorf("job created event: missing job id")
	}
	if e.UserID == "" {
		return fmt.Errorf("job created event: missing user id")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("job created event: unknown job type %q", e.Type)
	}
	if e.InputPath == "" {
		return fmt.Errorf("job created event: missing input path")
	}
	if e.Style == "" {
		return fmt.Errorf("job created event: missing style")
	}
	return nil
}
