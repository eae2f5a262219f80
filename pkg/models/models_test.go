package models

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusQueued, JobStatusError, true},
		{JobStatusQueued, JobStatusDone, false},
		{JobStatusProcessing, JobStatusDone, true},
		{JobStatusProcessing, JobStatusError, true},
		{JobStatusProcessing, JobStatusQueued, false},
		{JobStatusDone, JobStatusProcessing, false},
		{JobStatusDone, JobStatusError, false},
		{JobStatusError, JobStatusProcessing, false},
		{JobStatusError, JobStatusDone, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobStatusQueued.Terminal() || JobStatusProcessing.Terminal() {
		t.Error("queued and processing must not be terminal")
	}
	if !JobStatusDone.Terminal() || !JobStatusError.Terminal() {
		t.Error("done and error must be terminal")
	}
}

func TestJobTypeValid(t *testing.T) {
	if !JobTypeSticker.Valid() || !JobTypeImage.Valid() {
		t.Error("known job types should be valid")
	}
	if JobType("video").Valid() {
		t.Error("unknown job type should be invalid")
	}
}

func TestJobCreatedEventValidate(t *testing.T) {
	valid := JobCreatedEvent{
		JobID:     "j1",
		UserID:    "u1",
		Type:      JobTypeSticker,
		InputPath: "input/u1/j1.jpg",
		Style:     "Cartoon",
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Valid event should pass: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *JobCreatedEvent)
	}{
		{"missing job id", func(e *JobCreatedEvent) { e.JobID = "" }},
		{"missing user id", func(e *JobCreatedEvent) { e.UserID = "" }},
		{"unknown type", func(e *JobCreatedEvent) { e.Type = "video" }},
		{"missing input path", func(e *JobCreatedEvent) { e.InputPath = "" }},
		{"missing style", func(e *JobCreatedEvent) { e.Style = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid
			tt.mutate(&event)
			if err := event.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidStyle(t *testing.T) {
	for _, style := range Styles {
		if !ValidStyle(style) {
			t.Errorf("Catalogue style %q should be valid", style)
		}
	}

	if ValidStyle("Vaporwave") {
		t.Error("Unknown style should be invalid")
	}
	if ValidStyle("cartoon") {
		t.Error("Style matching is case sensitive")
	}
}
