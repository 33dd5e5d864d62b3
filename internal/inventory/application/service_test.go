package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukkan/commerce-core/internal/inventory/domain"
	"github.com/google/uuid"
)

type fakeProductRepo struct {
	get         func(ctx context.Context, id uuid.UUID) (domain.Product, error)
	adjustStock func(ctx context.Context, id uuid.UUID, delta int) (bool, error)
}

func (f *fakeProductRepo) Get(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	return f.get(ctx, id)
}

func (f *fakeProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	return f.adjustStock(ctx, id, delta)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReduceStock(t *testing.T) {
	var gotDelta int
	repo := &fakeProductRepo{
		adjustStock: func(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
			gotDelta = delta
			return true, nil
		},
	}

	svc := NewService(testLogger(), repo)
	if err := svc.ReduceStock(context.Background(), uuid.New(), 3); err != nil {
		t.Fatalf("ReduceStock: %v", err)
	}
	if gotDelta != -3 {
		t.Errorf("delta = %d, want -3", gotDelta)
	}
}

func TestReduceStockInsufficient(t *testing.T) {
	repo := &fakeProductRepo{
		adjustStock: func(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
			return false, nil
		},
	}

	svc := NewService(testLogger(), repo)
	err := svc.ReduceStock(context.Background(), uuid.New(), 10)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestReduceStockRejectsNonPositiveQuantity(t *testing.T) {
	repo := &fakeProductRepo{
		adjustStock: func(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
			t.Error("repo must not be called for invalid quantity")
			return false, nil
		},
	}

	svc := NewService(testLogger(), repo)
	for _, qty := range []int{0, -5} {
		if err := svc.ReduceStock(context.Background(), uuid.New(), qty); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("quantity %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
		if err := svc.RestoreStock(context.Background(), uuid.New(), qty); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("restore quantity %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestRestoreStockUnknownProduct(t *testing.T) {
	repo := &fakeProductRepo{
		adjustStock: func(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
			return false, nil
		},
	}

	svc := NewService(testLogger(), repo)
	err := svc.RestoreStock(context.Background(), uuid.New(), 2)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
