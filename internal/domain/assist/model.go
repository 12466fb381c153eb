package assist

import (
	"time"

	"github.com/google/uuid"
)

// Intent selects what kind of note to draft.
type Intent string

const (
	IntentPrescription Intent = "prescription"
	IntentPrevisit     Intent = "previsit"
	IntentNextSteps    Intent = "next_steps"
)

var headers = map[Intent]string{
	IntentPrescription: "Medication questions and safety checks",
	IntentPrevisit:     "Symptom snapshot for your upcoming visit",
	IntentNextSteps:    "Actionable follow-up plan",
}

// ClosingNote ends every fallback draft.
const ClosingNote = "This guidance is AI-generated and should be reviewed with your care team before making medical decisions."

func (i Intent) Valid() bool {
	_, ok := headers[i]
	return ok
}

func (i Intent) Header() string { return headers[i] }

// Draft sources, used as a metric label.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type SummarizeInput struct {
	Intent        string `json:"intent" validate:"required,oneof=prescription previsit next_steps"`
	Context       string `json:"context" validate:"required,max=4000"`
	AppointmentID string `json:"appointmentId,omitempty" validate:"omitempty,uuid"`
}

type Result struct {
	Summary          string `json:"summary"`
	SanitizedContext string `json:"sanitizedContext"`
	Source           string `json:"source"`
}

// Note is a persisted draft. It is written both as an ai_summary document and
// as a consultation note.
type Note struct {
	ID            uuid.UUID
	AuthorID      uuid.UUID
	AppointmentID *uuid.UUID
	Intent        Intent
	Title         string
	Summary       string
	Prompt        string
	CreatedAt     time.Time
}
