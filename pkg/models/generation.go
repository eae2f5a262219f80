package models

import "time"

// Generation is the persisted result of a successfully completed job.
// Created exactly once per completed job, as the last state-changing step
// before the job is marked done.
type Generation struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	JobID      string    `json:"job_id" db:"job_id"`
	InputPath  string    `json:"input_path" db:"input_path"`
	OutputPath string    `json:"output_path" db:"output_path"`
	Type       JobType   `json:"type" db:"job_type"`
	Style      string    `json:"style" db:"style"`
	Title      string    `json:"title" db:"title"`
	IsFavorite bool      `json:"is_favorite" db:"is_favorite"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
