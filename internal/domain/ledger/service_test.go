package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

type mockPatients struct {
	items map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) FindByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	return p, nil
}

type mockPlans struct {
	billable map[uuid.UUID]bool
}

func (m *mockPlans) CheckBillable(_ context.Context, id uuid.UUID) error {
	ok, known := m.billable[id]
	if !known {
		return apperr.NotFound("treatment plan")
	}
	if !ok {
		return apperr.Invalid("plan_id", "plan is not accepted")
	}
	return nil
}

// staleOnce makes the first RecordPayment lose a race.
type staleOnce struct {
	Repository
	tripped bool
}

func (s *staleOnce) RecordPayment(ctx context.Context, p *Payment, expected money.Cents) (*Invoice, error) {
	if !s.tripped {
		s.tripped = true
		return nil, ErrStalePayment
	}
	return s.Repository.RecordPayment(ctx, p, expected)
}

func newTestService() (*Service, uuid.UUID) {
	pid := uuid.New()
	patients := &mockPatients{items: map[uuid.UUID]*patient.Patient{
		pid: {ID: pid, Name: "Youssef El Amrani"},
	}}
	return NewService(NewMemRepo(), patients, time.UTC, "MAD"), pid
}

func mustInvoice(t *testing.T, svc *Service, amount string) *Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		Description: "Couronne céramique",
		Amount:      money.MustParse(amount),
		Date:        "2024-03-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return inv
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		amount, paid string
		want         Status
	}{
		{"400", "0", StatusUnpaid},
		{"400", "0.01", StatusPartial},
		{"3500", "1500", StatusPartial},
		{"400", "400", StatusPaid},
	}
	for _, tt := range tests {
		got := DeriveStatus(money.MustParse(tt.amount), money.MustParse(tt.paid))
		if got != tt.want {
			t.Errorf("DeriveStatus(%s, %s) = %s, want %s", tt.amount, tt.paid, got, tt.want)
		}
	}
}

func TestCreateInvoice(t *testing.T) {
	svc, _ := newTestService()
	inv := mustInvoice(t, svc, "3500")
	if inv.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if inv.Number != "INV-001" {
		t.Errorf("expected INV-001, got %s", inv.Number)
	}
	if inv.PaidAmount != 0 || inv.Status() != StatusUnpaid {
		t.Errorf("expected unpaid invoice, got paid=%s status=%s", inv.PaidAmount, inv.Status())
	}
	second := mustInvoice(t, svc, "500")
	if second.Number != "INV-002" {
		t.Errorf("expected INV-002, got %s", second.Number)
	}
}

func TestCreateInvoice_DefaultsDateToToday(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 23, 30, 0, 0, time.UTC) }
	inv, err := svc.CreateInvoice(context.Background(), InvoiceInput{Description: "Détartrage", Amount: money.MustParse("400")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Date != "2024-06-15" {
		t.Errorf("expected 2024-06-15, got %s", inv.Date)
	}
}

func TestCreateInvoice_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unknown := uuid.New()

	tests := []struct {
		name string
		in   InvoiceInput
		kind error
	}{
		{"empty description", InvoiceInput{Description: "  ", Amount: 100}, apperr.ErrValidation},
		{"zero amount", InvoiceInput{Description: "x", Amount: 0}, apperr.ErrInvalidAmount},
		{"negative amount", InvoiceInput{Description: "x", Amount: -100}, apperr.ErrInvalidAmount},
		{"bad date", InvoiceInput{Description: "x", Amount: 100, Date: "01/03/2024"}, apperr.ErrValidation},
		{"unknown patient", InvoiceInput{Description: "x", Amount: 100, PatientID: &unknown}, apperr.ErrNotFound},
		{"plans disabled", InvoiceInput{Description: "x", Amount: 100, PlanID: &unknown}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInvoice(ctx, tt.in)
			if !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestCreateInvoice_PlanMustBeBillable(t *testing.T) {
	svc, _ := newTestService()
	accepted, proposed := uuid.New(), uuid.New()
	svc.SetPlanChecker(&mockPlans{billable: map[uuid.UUID]bool{accepted: true, proposed: false}})
	ctx := context.Background()

	if _, err := svc.CreateInvoice(ctx, InvoiceInput{Description: "Plan", Amount: 100, PlanID: &proposed}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	inv, err := svc.CreateInvoice(ctx, InvoiceInput{Description: "Plan", Amount: 100, PlanID: &accepted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	billed, err := svc.BilledForPlan(ctx, accepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if billed != inv.Amount {
		t.Errorf("expected billed %s, got %s", inv.Amount, billed)
	}
}

func TestApplyPayment_PartialThenOverpaymentThenPaid(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "3500")

	inv, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("1500")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status() != StatusPartial {
		t.Errorf("expected Partial, got %s", inv.Status())
	}

	_, err = svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("2500")})
	if !errors.Is(err, apperr.ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}
	if want := "payment of 2500.00 MAD exceeds the remaining balance of 2000.00 MAD"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	after, _ := svc.GetInvoice(ctx, inv.ID)
	if after.PaidAmount != money.MustParse("1500") {
		t.Errorf("rejected payment changed paid amount to %s", after.PaidAmount)
	}

	inv, err = svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("2000"), Method: "card"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status() != StatusPaid || inv.Remaining() != 0 {
		t.Errorf("expected Paid with nothing remaining, got %s remaining %s", inv.Status(), inv.Remaining())
	}

	payments, err := svc.ListPayments(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	var sum money.Cents
	for _, p := range payments {
		sum += p.Amount
	}
	if sum != inv.PaidAmount {
		t.Errorf("payment log sums to %s, paid amount is %s", sum, inv.PaidAmount)
	}
	if payments[0].Method != MethodCash || payments[1].Method != MethodCard {
		t.Errorf("unexpected methods %s, %s", payments[0].Method, payments[1].Method)
	}
}

func TestApplyPayment_PaidInvoiceRejectsMore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "400")
	if _, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("400")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("0.01")})
	if !errors.Is(err, apperr.ErrOverpayment) {
		t.Errorf("expected overpayment, got %v", err)
	}
}

func TestApplyPayment_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "500")

	if _, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: 0}); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Errorf("expected invalid amount for zero, got %v", err)
	}
	if _, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: -50}); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Errorf("expected invalid amount for negative, got %v", err)
	}
	if _, err := svc.ApplyPayment(ctx, uuid.New(), PaymentInput{Amount: 100}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: 100, Method: "bitcoin"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for method, got %v", err)
	}
	payments, _ := svc.ListPayments(ctx, inv.ID)
	if len(payments) != 0 {
		t.Errorf("failed payments must not be logged, got %d", len(payments))
	}
}

func TestApplyPayment_RoundsHalfUp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "100")

	amount, err := ParseAmount("99.995")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, err = svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: amount})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status() != StatusPaid {
		t.Errorf("expected 99.995 to round to 100.00 and settle, got %s", inv.Status())
	}
}

func TestParseAmount_RejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Infinity", "abc", ""} {
		if _, err := ParseAmount(raw); !errors.Is(err, apperr.ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q): expected invalid amount, got %v", raw, err)
		}
	}
}

func TestApplyPayment_RetriesStaleWrite(t *testing.T) {
	repo := &staleOnce{Repository: NewMemRepo()}
	svc := NewService(repo, &mockPatients{}, time.UTC, "MAD")
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, InvoiceInput{Description: "Extraction", Amount: money.MustParse("800")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, err = svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("300")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.PaidAmount != money.MustParse("300") {
		t.Errorf("expected 300.00 paid, got %s", inv.PaidAmount)
	}
}

func TestApplyPayment_ConcurrentNeverOverpays(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("100")})
		}()
	}
	wg.Wait()

	final, _ := svc.GetInvoice(ctx, inv.ID)
	if final.PaidAmount > final.Amount {
		t.Fatalf("paid %s exceeds amount %s", final.PaidAmount, final.Amount)
	}
	payments, _ := svc.ListPayments(ctx, inv.ID)
	var sum money.Cents
	for _, p := range payments {
		sum += p.Amount
	}
	if sum != final.PaidAmount {
		t.Errorf("payment log sums to %s, paid amount is %s", sum, final.PaidAmount)
	}
}

func TestPatientBalanceAndOutstanding(t *testing.T) {
	svc, pid := newTestService()
	ctx := context.Background()
	for _, amount := range []string{"3500", "500"} {
		if _, err := svc.CreateInvoice(ctx, InvoiceInput{Description: "Soin", Amount: money.MustParse(amount), PatientID: &pid}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	mustInvoice(t, svc, "900")
	invs, _, _ := svc.ListInvoices(ctx, &pid, 20, 0)
	if len(invs) != 2 {
		t.Fatalf("expected 2 invoices for patient, got %d", len(invs))
	}
	if _, err := svc.ApplyPayment(ctx, invs[0].ID, PaymentInput{Amount: money.MustParse("200")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := svc.PatientBalance(ctx, pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Invoices != 2 || b.Billed != money.MustParse("4000") || b.Paid != money.MustParse("200") || b.Remaining != money.MustParse("3800") {
		t.Errorf("unexpected balance %+v", b)
	}
	owed, err := svc.Outstanding(ctx, pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owed != b.Remaining {
		t.Errorf("expected outstanding %s, got %s", b.Remaining, owed)
	}
	if _, err := svc.PatientBalance(ctx, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDailyRevenue(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := mustInvoice(t, svc, "3500")

	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("1000")})
	svc.now = func() time.Time { return time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC) }
	svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("500")})
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) }
	svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("250")})

	days, err := svc.DailyRevenue(ctx, "2024-03-01", "2024-03-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if days[0].Total != money.MustParse("1000") || days[1].Total != 0 || days[2].Total != money.MustParse("500") {
		t.Errorf("unexpected revenue %+v", days)
	}
	if days[2].Payments != 1 {
		t.Errorf("expected 1 payment on 03-03, got %d", days[2].Payments)
	}

	if _, err := svc.DailyRevenue(ctx, "2024-03-03", "2024-03-01"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for reversed range, got %v", err)
	}
	if _, err := svc.DailyRevenue(ctx, "2023-01-01", "2024-12-31"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for long range, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	paid := mustInvoice(t, svc, "400")
	partial := mustInvoice(t, svc, "3500")
	mustInvoice(t, svc, "500")
	svc.ApplyPayment(ctx, paid.ID, PaymentInput{Amount: money.MustParse("400")})
	svc.ApplyPayment(ctx, partial.ID, PaymentInput{Amount: money.MustParse("1500")})

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Billed != money.MustParse("4400") || sum.Collected != money.MustParse("1900") || sum.Outstanding != money.MustParse("2500") {
		t.Errorf("unexpected totals %+v", sum)
	}
	for status, want := range map[Status]int{StatusPaid: 1, StatusPartial: 1, StatusUnpaid: 1} {
		if sum.ByStatus[status] != want {
			t.Errorf("expected %d %s, got %d", want, status, sum.ByStatus[status])
		}
	}
}

func TestExportWorkbook(t *testing.T) {
	svc, pid := newTestService()
	ctx := context.Background()
	inv, _ := svc.CreateInvoice(ctx, InvoiceInput{Description: "Blanchiment", Amount: money.MustParse("2000"), PatientID: &pid})
	svc.ApplyPayment(ctx, inv.ID, PaymentInput{Amount: money.MustParse("500")})

	data, err := svc.ExportWorkbook(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected workbook bytes")
	}
}
