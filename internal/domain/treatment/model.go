package treatment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// General marks a procedure that is not tied to one tooth.
const General = 0

// Treatment is a completed clinical act. Records are never edited.
type Treatment struct {
	ID        uuid.UUID   `json:"id"`
	PatientID uuid.UUID   `json:"patient_id"`
	Tooth     int         `json:"tooth"`
	Procedure string      `json:"procedure"`
	Date      string      `json:"date"`
	Notes     string      `json:"notes"`
	Cost      money.Cents `json:"cost"`
	CreatedAt time.Time   `json:"created_at"`
}

// ValidTooth accepts 0 (general) or an FDI two-digit tooth number: permanent
// quadrants 1-4 with positions 1-8, deciduous quadrants 5-8 with positions 1-5.
func ValidTooth(n int) bool {
	if n == General {
		return true
	}
	quadrant, position := n/10, n%10
	switch {
	case quadrant >= 1 && quadrant <= 4:
		return position >= 1 && position <= 8
	case quadrant >= 5 && quadrant <= 8:
		return position >= 1 && position <= 5
	}
	return false
}

// ToothLabel is the printed tooth column of quotes and history.
func ToothLabel(n int) string {
	if n > 0 {
		return fmt.Sprintf("Dent n°%d", n)
	}
	return "Général"
}
