package treatmentplan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/domain/ledger"
	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/domain/treatment"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/export"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// PatientLookup resolves the patient a plan is drawn up for.
type PatientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Billing issues invoices against plans. The ledger service implements it.
type Billing interface {
	CreateInvoice(ctx context.Context, in ledger.InvoiceInput) (*ledger.Invoice, error)
	BilledForPlan(ctx context.Context, planID uuid.UUID) (money.Cents, error)
}

type Service struct {
	plans     Repository
	patients  PatientLookup
	billing   Billing
	renderers map[string]export.Renderer
	clinic    export.Clinic
	currency  string
	loc       *time.Location
	now       func() time.Time
}

func NewService(repo Repository, patients PatientLookup, clinic export.Clinic, currency string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		plans:    repo,
		patients: patients,
		renderers: map[string]export.Renderer{
			"txt":  export.TextRenderer{},
			"xlsx": export.XLSXRenderer{},
		},
		clinic:   clinic,
		currency: currency,
		loc:      loc,
		now:      time.Now,
	}
}

// SetBilling enables BillPlan.
func (s *Service) SetBilling(b Billing) {
	s.billing = b
}

// RegisterRenderer adds or replaces an export format.
func (s *Service) RegisterRenderer(format string, r export.Renderer) {
	s.renderers[format] = r
}

// PlanInput creates a plan from either free text or structured items.
type PlanInput struct {
	PatientID *uuid.UUID
	Title     string
	TotalCost money.Cents
	ItemsText string
	Items     []LineItem
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*Plan, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Missing("title")
	}
	if in.TotalCost <= 0 {
		return nil, apperr.InvalidAmount("total_cost must be greater than zero")
	}
	items, err := s.resolveItems(in.ItemsText, in.Items)
	if err != nil {
		return nil, err
	}
	if in.PatientID != nil {
		if _, err := s.patients.FindByID(ctx, *in.PatientID); err != nil {
			return nil, err
		}
	}

	p := &Plan{
		PatientID: in.PatientID,
		Title:     title,
		Date:      s.now().In(s.loc).Format("2006-01-02"),
		Status:    StatusProposed,
		TotalCost: in.TotalCost,
		Items:     items,
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return p, nil
}

func (s *Service) resolveItems(text string, items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil, apperr.Missing("items")
		}
		parsed := ParseItems(text)
		if len(parsed) == 0 {
			return nil, apperr.Missing("items")
		}
		return parsed, nil
	}
	out := make([]LineItem, 0, len(items))
	for i, it := range items {
		it.Procedure = strings.TrimSpace(it.Procedure)
		if it.Procedure == "" {
			return nil, apperr.Invalid("items", "item %d: procedure is required", i+1)
		}
		if it.Cost < 0 {
			return nil, apperr.InvalidAmount("item %d: cost must not be negative", i+1)
		}
		if !treatment.ValidTooth(it.Tooth) {
			return nil, apperr.Invalid("items", "item %d: invalid tooth number %d", i+1, it.Tooth)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Plan, int, error) {
	return s.plans.List(ctx, patientID, limit, offset)
}

// AdvanceStatus moves the plan exactly one step forward.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := p.Status.Next()
	if !ok {
		return nil, apperr.InvalidTransition(string(p.Status), "next status")
	}
	p.Status = next
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetStatus jumps to any later status. Moving back is refused.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Plan, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "unknown plan status %q", status)
	}
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == p.Status {
		return p, nil
	}
	if status.rank() < p.Status.rank() {
		return nil, apperr.InvalidTransition(string(p.Status), string(status))
	}
	p.Status = status
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateItems replaces the item list. The agreed total is left as is.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, text string, items []LineItem) (*Plan, error) {
	resolved, err := s.resolveItems(text, items)
	if err != nil {
		return nil, err
	}
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted {
		return nil, apperr.Invalid("status", "completed plans cannot be edited")
	}
	p.Items = resolved
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckBillable fails unless the plan exists and is Accepted or In Progress.
func (s *Service) CheckBillable(ctx context.Context, id uuid.UUID) error {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.Status.Billable() {
		return apperr.Invalid("plan_id", "plan %s is %s and cannot be invoiced", p.Number, p.Status)
	}
	return nil
}

// BillInput overrides the defaults of BillPlan.
type BillInput struct {
	Description string
	Amount      money.Cents
}

// BillPlan invoices part or all of what is left unbilled on the plan. A zero
// amount bills the whole remainder.
func (s *Service) BillPlan(ctx context.Context, id uuid.UUID, in BillInput) (*ledger.Invoice, error) {
	if s.billing == nil {
		return nil, apperr.Invalid("plan_id", "billing is not enabled")
	}
	var inv *ledger.Invoice
	err := s.plans.WithBillingLock(ctx, id, func(ctx context.Context) error {
		p, err := s.plans.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.Billable() {
			return apperr.Invalid("plan_id", "plan %s is %s and cannot be invoiced", p.Number, p.Status)
		}
		billed, err := s.billing.BilledForPlan(ctx, id)
		if err != nil {
			return err
		}
		left := p.TotalCost - billed
		if left <= 0 {
			return apperr.Invalid("plan_id", "plan %s is fully billed", p.Number)
		}
		amount := in.Amount
		if amount == 0 {
			amount = left
		}
		if amount < 0 {
			return apperr.InvalidAmount("amount must be greater than zero")
		}
		if amount > left {
			return apperr.InvalidAmount("amount %s exceeds the unbilled %s",
				amount.Format(s.currency), left.Format(s.currency))
		}
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			desc = fmt.Sprintf("%s - %s", p.Number, p.Title)
		}
		inv, err = s.billing.CreateInvoice(ctx, ledger.InvoiceInput{
			Description: desc,
			Amount:      amount,
			PatientID:   p.PatientID,
			PlanID:      &p.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// BuildQuote lays a plan out as a printable quote. The total printed is the
// agreed TotalCost.
func (s *Service) BuildQuote(p *Plan, patientName string) *export.Quote {
	q := &export.Quote{
		Clinic:      s.clinic,
		Number:      p.Number,
		Title:       p.Title,
		Date:        p.Date,
		Status:      p.Status.Label(),
		PatientName: patientName,
		Total:       p.TotalCost.Format(s.currency),
	}
	for _, it := range p.Items {
		cost := "N/A"
		if it.Cost > 0 {
			cost = it.Cost.Format(s.currency)
		}
		q.Lines = append(q.Lines, export.QuoteLine{
			Tooth:     treatment.ToothLabel(it.Tooth),
			Procedure: it.Procedure,
			Cost:      cost,
		})
	}
	return q
}

// ExportPlan renders the plan in the requested format ("txt" or "xlsx").
func (s *Service) ExportPlan(ctx context.Context, id uuid.UUID, format string) ([]byte, export.Renderer, error) {
	if format == "" {
		format = "txt"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, nil, apperr.Invalid("format", "unsupported export format %q", format)
	}
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	name := ""
	if p.PatientID != nil {
		pt, err := s.patients.FindByID(ctx, *p.PatientID)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, nil, err
		}
		if pt != nil {
			name = pt.Name
		}
	}
	data, err := r.Render(ctx, s.BuildQuote(p, name))
	if err != nil {
		return nil, nil, fmt.Errorf("render plan %s: %w", p.Number, err)
	}
	return data, r, nil
}
