package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

type Status string

const (
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var validStatuses = map[Status]bool{
	StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true,
}

// Appointment is one booking on the calendar. PatientName and PatientAvatar
// are copied at booking time and not refreshed when the patient changes.
type Appointment struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	PatientAvatar string    `json:"patient_avatar"`
	DateTime      time.Time `json:"date_time"`
	Treatment     string    `json:"treatment"`
	Status        Status    `json:"status"`
	Conflict      bool      `json:"conflict"`
	Seq           int64     `json:"seq"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConflictPolicy decides what happens when two bookings share an instant.
type ConflictPolicy string

const (
	ConflictOff    ConflictPolicy = "off"
	ConflictFlag   ConflictPolicy = "flag"
	ConflictReject ConflictPolicy = "reject"
)

// ParseConflictPolicy reads a policy name; empty means flag.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case "":
		return ConflictFlag, nil
	case ConflictOff, ConflictFlag, ConflictReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown slot conflict policy %q", s)
	}
}

const dateLayout = "2006-01-02"

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock reads "H:MM" or "HH:MM" on a 24-hour clock.
func ParseClock(s string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, apperr.InvalidTimeFormat(s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, apperr.InvalidTimeFormat(s)
	}
	return hour, minute, nil
}

// ParseDay reads a YYYY-MM-DD calendar date at local midnight.
func ParseDay(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, apperr.Invalid("date", "date must be YYYY-MM-DD")
	}
	return d, nil
}

// ComposeDateTime places a wall-clock time on a calendar date in loc, with
// seconds zeroed. A time skipped by a daylight-saving jump is rejected.
func ComposeDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDay(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc)
	if t.Hour() != h || t.Minute() != m {
		return time.Time{}, apperr.SkippedLocalTime(clock, date)
	}
	return t, nil
}

// dayBounds returns [start of day, start of next day) in loc. Days are not
// assumed to be 24 hours long.
func dayBounds(d time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, day := d.In(loc).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc), time.Date(y, m, day+1, 0, 0, 0, 0, loc)
}
