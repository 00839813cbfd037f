package fixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentdesk/dentdesk/internal/domain/inventory"
	"github.com/dentdesk/dentdesk/internal/domain/ledger"
	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/domain/scheduling"
	"github.com/dentdesk/dentdesk/internal/domain/treatment"
	"github.com/dentdesk/dentdesk/internal/domain/treatmentplan"
	"github.com/dentdesk/dentdesk/internal/platform/export"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

func newMemServices() Services {
	loc := time.UTC
	patients := patient.NewService(patient.NewMemRepo(), "MA")
	led := ledger.NewService(ledger.NewMemRepo(), patients, loc, "MAD")
	plans := treatmentplan.NewService(treatmentplan.NewMemRepo(), patients, export.Clinic{Name: "Cabinet Atlas"}, "MAD", loc)
	plans.SetBilling(led)
	led.SetPlanChecker(plans)
	patients.SetBalanceChecker(led)
	return Services{
		Patients:     patients,
		Treatments:   treatment.NewService(treatment.NewMemRepo(), patients, loc),
		Ledger:       led,
		Plans:        plans,
		Appointments: scheduling.NewService(scheduling.NewMemRepo(), patients, loc, scheduling.ConflictFlag),
		Inventory:    inventory.NewService(inventory.NewMemRepo()),
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	svc := newMemServices()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	res, err := Load(ctx, svc, now, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Patients != 5 || res.Appointments != 4 || res.Invoices != 3 || res.Plans != 2 || res.Items != 6 {
		t.Errorf("unexpected counts: %+v", res)
	}

	day, err := svc.Appointments.ListForDay(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTimes := []string{"09:30", "11:00", "14:00", "15:30"}
	if len(day) != len(wantTimes) {
		t.Fatalf("expected %d appointments, got %d", len(wantTimes), len(day))
	}
	for i, a := range day {
		if got := a.DateTime.Format("15:04"); got != wantTimes[i] {
			t.Errorf("appointment %d: expected %s, got %s", i, wantTimes[i], got)
		}
	}

	invoices, total, err := svc.Ledger.ListInvoices(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 invoices, got %d", total)
	}
	byNumber := map[string]*ledger.Invoice{}
	for _, inv := range invoices {
		byNumber[inv.Number] = inv
	}
	if s := byNumber["INV-001"].Status(); s != ledger.StatusPaid {
		t.Errorf("INV-001: expected Paid, got %s", s)
	}
	if inv := byNumber["INV-002"]; inv.Status() != ledger.StatusPartial || inv.PaidAmount != money.MustParse("1500") {
		t.Errorf("INV-002: expected Partial with 1500 paid, got %s with %s", inv.Status(), inv.PaidAmount)
	}
	if s := byNumber["INV-003"].Status(); s != ledger.StatusUnpaid {
		t.Errorf("INV-003: expected Unpaid, got %s", s)
	}

	plans, _, err := svc.Plans.List(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range plans {
		if p.TotalCost != p.ItemizedTotal() {
			t.Errorf("%s: total %s does not match items %s", p.Number, p.TotalCost, p.ItemizedTotal())
		}
		switch p.Number {
		case "PLAN-001":
			if p.Status != treatmentplan.StatusAccepted {
				t.Errorf("PLAN-001: expected Accepted, got %s", p.Status)
			}
		case "PLAN-002":
			if p.Status != treatmentplan.StatusProposed {
				t.Errorf("PLAN-002: expected Proposed, got %s", p.Status)
			}
		}
	}

	low, err := svc.Inventory.LowStock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(low) == 0 {
		t.Error("expected some low stock items")
	}
}

func TestLoad_Twice(t *testing.T) {
	ctx := context.Background()
	svc := newMemServices()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	if _, err := Load(ctx, svc, now, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(ctx, svc, now, zerolog.Nop()); !errors.Is(err, ErrAlreadySeeded) {
		t.Fatalf("expected ErrAlreadySeeded, got %v", err)
	}
}
