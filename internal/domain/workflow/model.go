package workflow

import (
	"time"

	"github.com/google/uuid"
)

// SessionBaseURL prefixes every consultation room link.
const SessionBaseURL = "https://telemed.carelink/session/"

type Consultation struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	SessionURL    string    `json:"session_url"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
}

type Message struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// Document types.
const (
	DocTypeUpload    = "upload"
	DocTypeAISummary = "ai_summary"
)

type Document struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Title         string     `json:"title"`
	FileURL       *string    `json:"file_url,omitempty"`
	Content       *string    `json:"content,omitempty"`
	DocType       string     `json:"doc_type"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Reminder struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ReminderType  string    `json:"reminder_type"`
	SentAt        time.Time `json:"sent_at"`
}

type JoinInput struct {
	AppointmentID string `json:"appointmentId"`
}

type MessageInput struct {
	AppointmentID string `json:"appointmentId"`
	Content       string `json:"content"`
}

type DocumentInput struct {
	Title         string `json:"title"`
	FileURL       string `json:"fileUrl"`
	AppointmentID string `json:"appointmentId,omitempty"`
}

type ReminderInput struct {
	AppointmentID string `json:"appointmentId"`
	ReminderType  string `json:"reminderType"`
}
