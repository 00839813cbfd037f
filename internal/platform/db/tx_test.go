package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil tx for wrong value type")
	}
}

func TestWithTx_NoPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoPool) {
		t.Fatalf("expected ErrNoPool, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestNoRows(t *testing.T) {
	err := NoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows), "invoice")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "invoice not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	other := errors.New("timeout")
	if NoRows(other, "invoice") != other {
		t.Error("expected other errors to pass through")
	}
}
