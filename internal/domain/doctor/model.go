package doctor

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSpecialty is used when a new profile does not name one.
const DefaultSpecialty = "General Medicine"

// Doctor is a bookable provider.
type Doctor struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Specialty   string    `json:"specialty"`
	Bio         string    `json:"bio"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bookable reports whether new appointments may be made with the doctor.
func (d *Doctor) Bookable() bool {
	return d != nil && d.IsAvailable
}

// ListFilter narrows the directory listing. Query matches name, specialty or
// bio, case-insensitively.
type ListFilter struct {
	Specialty string
	Query     string
	Limit     int
	Offset    int
}

type CreateProfileRequest struct {
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	ImageURL  string `json:"image_url,omitempty"`
}
