package treatmentplan

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/money"
)

type Status string

const (
	StatusProposed   Status = "Proposed"
	StatusAccepted   Status = "Accepted"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// lifecycle is the only order a plan moves through.
var lifecycle = []Status{StatusProposed, StatusAccepted, StatusInProgress, StatusCompleted}

var statusLabels = map[Status]string{
	StatusProposed:   "Proposé",
	StatusAccepted:   "Accepté",
	StatusInProgress: "En cours",
	StatusCompleted:  "Terminé",
}

func (s Status) rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known plan status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// Next returns the following status, or false when s is final.
func (s Status) Next() (Status, bool) {
	r := s.rank()
	if r < 0 || r == len(lifecycle)-1 {
		return "", false
	}
	return lifecycle[r+1], true
}

// Label is the status as printed on quotes.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Billable plans can be invoiced.
func (s Status) Billable() bool {
	return s == StatusAccepted || s == StatusInProgress
}

type LineItem struct {
	Tooth     int         `json:"tooth"`
	Procedure string      `json:"procedure"`
	Cost      money.Cents `json:"cost"`
}

// Plan is a quoted set of procedures. TotalCost is what the patient agreed
// to and is never derived from the items.
type Plan struct {
	ID        uuid.UUID   `json:"id"`
	Number    string      `json:"number"`
	PatientID *uuid.UUID  `json:"patient_id,omitempty"`
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Status    Status      `json:"status"`
	TotalCost money.Cents `json:"total_cost"`
	Items     []LineItem  `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ItemizedTotal sums item costs for display next to the agreed total.
func (p *Plan) ItemizedTotal() money.Cents {
	var sum money.Cents
	for _, it := range p.Items {
		sum += it.Cost
	}
	return sum
}

func (p Plan) MarshalJSON() ([]byte, error) {
	type plain Plan
	return json.Marshal(struct {
		plain
		ItemizedTotal money.Cents `json:"itemized_total"`
	}{plain(p), p.ItemizedTotal()})
}

func (p *Plan) clone() *Plan {
	cp := *p
	cp.Items = append([]LineItem(nil), p.Items...)
	if p.PatientID != nil {
		id := *p.PatientID
		cp.PatientID = &id
	}
	return &cp
}

// ParseItems turns free text into line items, one per non-blank line. A
// leading "- " bullet is dropped. Tooth and cost are left at zero.
func ParseItems(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		if line == "" {
			continue
		}
		items = append(items, LineItem{Procedure: line})
	}
	return items
}
