package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// Status is derived from the amount/paid pair and never stored.
type Status string

const (
	StatusUnpaid  Status = "Unpaid"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
)

// DeriveStatus is the only source of invoice status.
func DeriveStatus(amount, paid money.Cents) Status {
	switch {
	case paid <= 0:
		return StatusUnpaid
	case paid >= amount:
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Invoice is a billing document. PaidAmount only grows, through payments.
type Invoice struct {
	ID          uuid.UUID   `json:"id"`
	Number      string      `json:"number"`
	PatientID   *uuid.UUID  `json:"patient_id,omitempty"`
	PlanID      *uuid.UUID  `json:"plan_id,omitempty"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`
	PaidAmount  money.Cents `json:"paid_amount"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (i *Invoice) Status() Status {
	return DeriveStatus(i.Amount, i.PaidAmount)
}

// Remaining is the balance still owed.
func (i *Invoice) Remaining() money.Cents {
	return i.Amount - i.PaidAmount
}

// MarshalJSON adds the derived status and remaining balance.
func (i Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	return json.Marshal(struct {
		plain
		Status    Status      `json:"status"`
		Remaining money.Cents `json:"remaining"`
	}{plain(i), i.Status(), i.Remaining()})
}

// Payment methods accepted at the front desk.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodCheque   = "cheque"
	MethodTransfer = "transfer"
)

var validMethods = map[string]bool{
	MethodCash: true, MethodCard: true, MethodCheque: true, MethodTransfer: true,
}

// Payment is an immutable ledger entry against one invoice.
type Payment struct {
	ID        uuid.UUID   `json:"id"`
	InvoiceID uuid.UUID   `json:"invoice_id"`
	Amount    money.Cents `json:"amount"`
	Method    string      `json:"method"`
	Note      string      `json:"note,omitempty"`
	PaidAt    time.Time   `json:"paid_at"`
}

// Balance aggregates a patient's invoices.
type Balance struct {
	PatientID uuid.UUID   `json:"patient_id"`
	Invoices  int         `json:"invoices"`
	Billed    money.Cents `json:"billed"`
	Paid      money.Cents `json:"paid"`
	Remaining money.Cents `json:"remaining"`
}

// DayRevenue is the money collected on one local calendar day.
type DayRevenue struct {
	Date     string      `json:"date"`
	Total    money.Cents `json:"total"`
	Payments int         `json:"payments"`
}

// Summary is the clinic-wide ledger position.
type Summary struct {
	Billed      money.Cents    `json:"billed"`
	Collected   money.Cents    `json:"collected"`
	Outstanding money.Cents    `json:"outstanding"`
	ByStatus    map[Status]int `json:"by_status"`
}
