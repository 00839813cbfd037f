package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of DateOfBirth.
const DateLayout = "2006-01-02"

// Patient is the identity record every other engine references by ID.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	AvatarURL      string    `json:"avatar_url"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	DateOfBirth    string    `json:"date_of_birth"`
	Address        string    `json:"address"`
	Allergies      []string  `json:"allergies"`
	MedicalHistory []string  `json:"medical_history"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultAvatar is the placeholder picture seeded by the patient ID.
func DefaultAvatar(id uuid.UUID) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/100/100", id)
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (p *Patient) Clone() *Patient {
	cp := *p
	cp.Allergies = append([]string{}, p.Allergies...)
	cp.MedicalHistory = append([]string{}, p.MedicalHistory...)
	return &cp
}
