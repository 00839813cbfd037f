package inventory

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

func newTestService() *Service {
	return NewService(NewMemRepo())
}

func TestItemStatus(t *testing.T) {
	tests := []struct {
		stock, max int
		want       StockStatus
	}{
		{0, 100, OutOfStock},
		{10, 100, LowStock},
		{25, 100, LowStock},
		{26, 100, InStock},
		{1, 4, LowStock},
		{2, 4, InStock},
	}
	for _, tt := range tests {
		it := &Item{Stock: tt.stock, MaxStock: tt.max}
		if got := it.Status(); got != tt.want {
			t.Errorf("stock %d/%d: expected %s, got %s", tt.stock, tt.max, tt.want, got)
		}
	}
}

func TestCreate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	it := &Item{Name: "Gants en latex (boîte)", Stock: 15, MaxStock: 100}
	if err := svc.Create(ctx, it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}

	bad := []*Item{
		{Name: "", Stock: 1, MaxStock: 10},
		{Name: "x", Stock: 1, MaxStock: 0},
		{Name: "x", Stock: -1, MaxStock: 10},
		{Name: "x", Stock: 11, MaxStock: 10},
	}
	for _, b := range bad {
		if err := svc.Create(ctx, b); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", b, err)
		}
	}
}

func TestAdjust(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	it := &Item{Name: "Anesthésique local", Stock: 20, MaxStock: 50}
	svc.Create(ctx, it)

	got, err := svc.Adjust(ctx, it.ID, -20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stock != 0 || got.Status() != OutOfStock {
		t.Errorf("expected empty stock, got %d %s", got.Stock, got.Status())
	}
	if _, err := svc.Adjust(ctx, it.ID, -1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error below zero, got %v", err)
	}
	got, err = svc.Adjust(ctx, it.ID, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stock != 50 {
		t.Errorf("expected stock capped at 50, got %d", got.Stock)
	}
	if _, err := svc.Adjust(ctx, uuid.New(), 1); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAdjust_ExtremeDeltas(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	it := &Item{Name: "Compresses", Stock: 10, MaxStock: 40}
	svc.Create(ctx, it)

	got, err := svc.Adjust(ctx, it.ID, math.MaxInt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stock != 40 {
		t.Errorf("expected stock capped at 40, got %d", got.Stock)
	}

	_, err = svc.Adjust(ctx, it.ID, math.MinInt)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "only 40 Compresses left") {
		t.Errorf("expected remaining stock in message, got %q", err.Error())
	}
	got, _ = svc.Get(ctx, it.ID)
	if got.Stock != 40 {
		t.Errorf("expected stock unchanged, got %d", got.Stock)
	}
}

func TestLowStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Create(ctx, &Item{Name: "Masques chirurgicaux", Stock: 80, MaxStock: 100})
	svc.Create(ctx, &Item{Name: "Gants", Stock: 15, MaxStock: 100})
	svc.Create(ctx, &Item{Name: "Fil de suture", Stock: 0, MaxStock: 30})

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 low items, got %d", len(low))
	}
	if low[0].Name != "Fil de suture" || low[1].Name != "Gants" {
		t.Errorf("expected items sorted by name, got %s, %s", low[0].Name, low[1].Name)
	}
}
