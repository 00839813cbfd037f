package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/export"
	"github.com/dentdesk/dentdesk/internal/platform/metrics"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

const (
	dateLayout       = "2006-01-02"
	maxPaymentRetry  = 3
	maxRevenueDays   = 366
	exportBatchLimit = 1000
)

// PatientLookup resolves the patient an invoice is issued to.
type PatientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// PlanChecker reports whether a plan can be invoiced.
type PlanChecker interface {
	CheckBillable(ctx context.Context, planID uuid.UUID) error
}

type Service struct {
	invoices Repository
	patients PatientLookup
	plans    PlanChecker
	loc      *time.Location
	currency string
	now      func() time.Time
}

func NewService(repo Repository, patients PatientLookup, loc *time.Location, currency string) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{invoices: repo, patients: patients, loc: loc, currency: currency, now: time.Now}
}

// SetPlanChecker enables plan_id validation on new invoices.
func (s *Service) SetPlanChecker(p PlanChecker) {
	s.plans = p
}

// InvoiceInput is what the front desk types when issuing an invoice.
type InvoiceInput struct {
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`
	Date        string      `json:"date"`
	PatientID   *uuid.UUID  `json:"patient_id,omitempty"`
	PlanID      *uuid.UUID  `json:"plan_id,omitempty"`
}

// CreateInvoice issues a new unpaid invoice.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, apperr.Missing("description")
	}
	if in.Amount <= 0 {
		return nil, apperr.InvalidAmount("amount must be greater than zero")
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().In(s.loc).Format(dateLayout)
	} else if _, err := time.ParseInLocation(dateLayout, date, s.loc); err != nil {
		return nil, apperr.Invalid("date", "date must be YYYY-MM-DD")
	}
	if in.PatientID != nil {
		if _, err := s.patients.FindByID(ctx, *in.PatientID); err != nil {
			return nil, err
		}
	}
	if in.PlanID != nil {
		if s.plans == nil {
			return nil, apperr.Invalid("plan_id", "plans are not enabled")
		}
		if err := s.plans.CheckBillable(ctx, *in.PlanID); err != nil {
			return nil, err
		}
	}

	inv := &Invoice{
		PatientID:   in.PatientID,
		PlanID:      in.PlanID,
		Date:        date,
		Description: desc,
		Amount:      in.Amount,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// ParseAmount reads user input in currency units. Anything that is not a
// finite decimal is an invalid amount.
func ParseAmount(raw string) (money.Cents, error) {
	c, err := money.Parse(raw)
	if err != nil {
		return 0, apperr.InvalidAmount("amount %q: %v", raw, err)
	}
	return c, nil
}

// PaymentInput is a payment taken at the desk.
type PaymentInput struct {
	Amount money.Cents `json:"amount"`
	Method string      `json:"method"`
	Note   string      `json:"note"`
}

// ApplyPayment records a payment against an invoice. A rejected payment
// leaves the invoice and the payment log untouched.
func (s *Service) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, in PaymentInput) (*Invoice, error) {
	if in.Amount <= 0 {
		metrics.PaymentRejections.WithLabelValues("invalid_amount").Inc()
		return nil, apperr.InvalidAmount("amount must be greater than zero")
	}
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		method = MethodCash
	}
	if !validMethods[method] {
		return nil, apperr.Invalid("method", "unknown payment method %q", in.Method)
	}

	for attempt := 0; ; attempt++ {
		inv, err := s.invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if remaining := inv.Remaining(); in.Amount > remaining {
			metrics.PaymentRejections.WithLabelValues("overpayment").Inc()
			return nil, apperr.Overpayment("payment of %s exceeds the remaining balance of %s",
				in.Amount.Format(s.currency), remaining.Format(s.currency))
		}

		p := &Payment{
			InvoiceID: invoiceID,
			Amount:    in.Amount,
			Method:    method,
			Note:      strings.TrimSpace(in.Note),
			PaidAt:    s.now().UTC(),
		}
		updated, err := s.invoices.RecordPayment(ctx, p, inv.PaidAmount)
		if errors.Is(err, ErrStalePayment) && attempt < maxPaymentRetry {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record payment: %w", err)
		}
		metrics.PaymentsApplied.Inc()
		metrics.PaymentsCollected.Add(in.Amount.Units())
		return updated, nil
	}
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, patientID, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.invoices.ListPayments(ctx, invoiceID)
}

// PatientBalance totals every invoice issued to the patient.
func (s *Service) PatientBalance(ctx context.Context, patientID uuid.UUID) (*Balance, error) {
	if _, err := s.patients.FindByID(ctx, patientID); err != nil {
		return nil, err
	}
	invoices, err := s.allInvoices(ctx, &patientID)
	if err != nil {
		return nil, err
	}
	b := &Balance{PatientID: patientID, Invoices: len(invoices)}
	for _, inv := range invoices {
		b.Billed += inv.Amount
		b.Paid += inv.PaidAmount
	}
	b.Remaining = b.Billed - b.Paid
	return b, nil
}

// Outstanding is the patient's unpaid total.
func (s *Service) Outstanding(ctx context.Context, patientID uuid.UUID) (money.Cents, error) {
	invoices, err := s.allInvoices(ctx, &patientID)
	if err != nil {
		return 0, err
	}
	var owed money.Cents
	for _, inv := range invoices {
		owed += inv.Remaining()
	}
	return owed, nil
}

// BilledForPlan sums the amounts of invoices linked to the plan.
func (s *Service) BilledForPlan(ctx context.Context, planID uuid.UUID) (money.Cents, error) {
	invoices, err := s.invoices.ListByPlan(ctx, planID)
	if err != nil {
		return 0, err
	}
	var billed money.Cents
	for _, inv := range invoices {
		billed += inv.Amount
	}
	return billed, nil
}

// DailyRevenue buckets payments by local calendar day, from and to inclusive.
// Days without payments are reported with a zero total.
func (s *Service) DailyRevenue(ctx context.Context, from, to string) ([]DayRevenue, error) {
	start, err := time.ParseInLocation(dateLayout, from, s.loc)
	if err != nil {
		return nil, apperr.Invalid("from", "from must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dateLayout, to, s.loc)
	if err != nil {
		return nil, apperr.Invalid("to", "to must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, apperr.Invalid("to", "to must not be before from")
	}

	var days []DayRevenue
	index := make(map[string]int)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(days) == maxRevenueDays {
			return nil, apperr.Invalid("to", "range is limited to %d days", maxRevenueDays)
		}
		key := d.Format(dateLayout)
		index[key] = len(days)
		days = append(days, DayRevenue{Date: key})
	}

	payments, err := s.invoices.PaymentsBetween(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		i, ok := index[p.PaidAt.In(s.loc).Format(dateLayout)]
		if !ok {
			continue
		}
		days[i].Total += p.Amount
		days[i].Payments++
	}
	return days, nil
}

// Summary reports the clinic-wide ledger position.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	invoices, err := s.allInvoices(ctx, nil)
	if err != nil {
		return nil, err
	}
	sum := &Summary{ByStatus: map[Status]int{StatusUnpaid: 0, StatusPartial: 0, StatusPaid: 0}}
	for _, inv := range invoices {
		sum.Billed += inv.Amount
		sum.Collected += inv.PaidAmount
		sum.ByStatus[inv.Status()]++
	}
	sum.Outstanding = sum.Billed - sum.Collected
	return sum, nil
}

// ExportWorkbook writes every invoice and its payments to an XLSX workbook.
func (s *Service) ExportWorkbook(ctx context.Context) ([]byte, error) {
	invoices, err := s.allInvoices(ctx, nil)
	if err != nil {
		return nil, err
	}
	var invRows []export.InvoiceRow
	var payRows []export.PaymentRow
	names := make(map[uuid.UUID]string)
	for _, inv := range invoices {
		name := ""
		if inv.PatientID != nil {
			if n, ok := names[*inv.PatientID]; ok {
				name = n
			} else if p, err := s.patients.FindByID(ctx, *inv.PatientID); err == nil {
				names[*inv.PatientID] = p.Name
				name = p.Name
			}
		}
		invRows = append(invRows, export.InvoiceRow{
			Number:      inv.Number,
			Date:        inv.Date,
			Patient:     name,
			Description: inv.Description,
			Status:      string(inv.Status()),
			Amount:      inv.Amount.Units(),
			Paid:        inv.PaidAmount.Units(),
			Remaining:   inv.Remaining().Units(),
		})
		payments, err := s.invoices.ListPayments(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			payRows = append(payRows, export.PaymentRow{
				Invoice: inv.Number,
				PaidAt:  p.PaidAt.In(s.loc).Format("2006-01-02 15:04"),
				Method:  p.Method,
				Amount:  p.Amount.Units(),
				Note:    p.Note,
			})
		}
	}
	return export.LedgerWorkbook(invRows, payRows)
}

func (s *Service) allInvoices(ctx context.Context, patientID *uuid.UUID) ([]*Invoice, error) {
	var all []*Invoice
	for offset := 0; ; offset += exportBatchLimit {
		page, total, err := s.invoices.List(ctx, patientID, exportBatchLimit, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			return all, nil
		}
	}
}
