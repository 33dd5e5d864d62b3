package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukkan/commerce-core/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeInventory struct {
	getProduct   func(ctx context.Context, productID uuid.UUID) (ProductSnapshot, error)
	reduceStock  func(ctx context.Context, productID uuid.UUID, quantity int) error
	restoreStock func(ctx context.Context, productID uuid.UUID, quantity int) error
}

func (f *fakeInventory) GetProduct(ctx context.Context, productID uuid.UUID) (ProductSnapshot, error) {
	return f.getProduct(ctx, productID)
}

func (f *fakeInventory) ReduceStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	return f.reduceStock(ctx, productID, quantity)
}

func (f *fakeInventory) RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	return f.restoreStock(ctx, productID, quantity)
}

type fakeOrderRepo struct {
	saveWithOutbox   func(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error
	updateWithOutbox func(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error
	get              func(ctx context.Context, id uuid.UUID) (domain.Order, error)
	listByUser       func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Order, error)
}

func (f *fakeOrderRepo) SaveWithOutbox(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error {
	return f.saveWithOutbox(ctx, o, eventType, payload, traceparent)
}

func (f *fakeOrderRepo) UpdateWithOutbox(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error {
	return f.updateWithOutbox(ctx, o, eventType, payload, traceparent)
}

func (f *fakeOrderRepo) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return f.get(ctx, id)
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Order, error) {
	return f.listByUser(ctx, userID, limit, offset)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(id uuid.UUID, stock int) ProductSnapshot {
	return ProductSnapshot{
		ID:            id,
		SKU:           "SKU-1",
		Name:          "Widget",
		Price:         decimal.RequireFromString("100.00"),
		StockQuantity: stock,
		IsActive:      true,
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	productID := uuid.New()
	userID := uuid.New()

	var reduced int
	var saved *domain.Order
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			return snapshot(id, 5), nil
		},
		reduceStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			reduced += qty
			return nil
		},
		restoreStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			t.Error("restore should not run on success")
			return nil
		},
	}
	repo := &fakeOrderRepo{
		saveWithOutbox: func(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error {
			if eventType != "OrderPlaced" {
				t.Errorf("eventType = %s, want OrderPlaced", eventType)
			}
			saved = o
			return nil
		},
	}

	svc := NewService(testLogger(), repo, inv, false)
	order, err := svc.PlaceOrder(context.Background(), userID, []ItemRequest{{ProductID: productID, Quantity: 1}})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if reduced != 1 {
		t.Errorf("reduced = %d, want 1", reduced)
	}
	if saved == nil {
		t.Fatal("order was not persisted")
	}
	if order.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if want := decimal.RequireFromString("100.00"); !order.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", order.TotalAmount, want)
	}
}

func TestPlaceOrderEmptyItems(t *testing.T) {
	svc := NewService(testLogger(), &fakeOrderRepo{}, &fakeInventory{}, false)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), nil)
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("err = %v, want ErrEmptyOrder", err)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			return snapshot(id, 5), nil
		},
		reduceStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			t.Error("stock should not be reduced when validation fails")
			return nil
		},
	}
	repo := &fakeOrderRepo{
		saveWithOutbox: func(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error {
			t.Error("order should not be persisted")
			return nil
		},
	}

	svc := NewService(testLogger(), repo, inv, false)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []ItemRequest{{ProductID: uuid.New(), Quantity: 10}})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

// A malformed quantity anywhere in the request aborts before the first
// inventory call: no lookups, no reductions.
func TestPlaceOrderInvalidQuantityBeforeInventoryCalls(t *testing.T) {
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			t.Error("inventory must not be consulted for a malformed request")
			return ProductSnapshot{}, nil
		},
		reduceStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			t.Error("stock must not be reduced for a malformed request")
			return nil
		},
	}

	svc := NewService(testLogger(), &fakeOrderRepo{}, inv, false)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []ItemRequest{
		{ProductID: uuid.New(), Quantity: 2},
		{ProductID: uuid.New(), Quantity: 0},
	})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestPlaceOrderInactiveProduct(t *testing.T) {
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			s := snapshot(id, 5)
			s.IsActive = false
			return s, nil
		},
	}
	svc := NewService(testLogger(), &fakeOrderRepo{}, inv, false)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []ItemRequest{{ProductID: uuid.New(), Quantity: 1}})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("err = %v, want ErrProductUnavailable", err)
	}
}

// A failure on the second item leaves the first item's reduction in place
// when compensation is off.
func TestPlaceOrderNoRollbackByDefault(t *testing.T) {
	okID, badID := uuid.New(), uuid.New()

	var restored int
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			if id == badID {
				return snapshot(id, 0), nil
			}
			return snapshot(id, 5), nil
		},
		reduceStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			return nil
		},
		restoreStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			restored += qty
			return nil
		},
	}

	svc := NewService(testLogger(), &fakeOrderRepo{}, inv, false)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []ItemRequest{
		{ProductID: okID, Quantity: 2},
		{ProductID: badID, Quantity: 1},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if restored != 0 {
		t.Errorf("restored = %d, want 0 with compensation disabled", restored)
	}
}

func TestPlaceOrderCompensatesWhenEnabled(t *testing.T) {
	okID, badID := uuid.New(), uuid.New()

	var restores []uuid.UUID
	inv := &fakeInventory{
		getProduct: func(ctx context.Context, id uuid.UUID) (ProductSnapshot, error) {
			if id == badID {
				return snapshot(id, 0), nil
			}
			return snapshot(id, 5), nil
		},
		reduceStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			return nil
		},
		restoreStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			restores = append(restores, id)
			return nil
		},
	}

	svc := NewService(testLogger(), &fakeOrderRepo{}, inv, true)
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []ItemRequest{
		{ProductID: okID, Quantity: 2},
		{ProductID: badID, Quantity: 1},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if len(restores) != 1 || restores[0] != okID {
		t.Errorf("restores = %v, want exactly the first product", restores)
	}
}

func TestCancelOrderUnauthorized(t *testing.T) {
	owner := uuid.New()
	repo := &fakeOrderRepo{
		get: func(ctx context.Context, id uuid.UUID) (domain.Order, error) {
			o := domain.NewOrder(owner)
			o.ID = id
			return *o, nil
		},
	}

	svc := NewService(testLogger(), repo, &fakeInventory{}, false)
	_, err := svc.CancelOrder(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCancelOrderInvalidState(t *testing.T) {
	owner := uuid.New()
	repo := &fakeOrderRepo{
		get: func(ctx context.Context, id uuid.UUID) (domain.Order, error) {
			o := domain.NewOrder(owner)
			o.ID = id
			o.Status = domain.StatusShipped
			return *o, nil
		},
	}

	svc := NewService(testLogger(), repo, &fakeInventory{}, false)
	_, err := svc.CancelOrder(context.Background(), owner, uuid.New())
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

// Cancellation never calls the inventory service: stock reduced at placement
// is not returned.
func TestCancelOrderDoesNotRestoreStock(t *testing.T) {
	owner := uuid.New()
	inv := &fakeInventory{
		restoreStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			t.Error("cancel must not restore stock")
			return nil
		},
	}
	repo := &fakeOrderRepo{
		get: func(ctx context.Context, id uuid.UUID) (domain.Order, error) {
			o := domain.NewOrder(owner)
			o.ID = id
			return *o, nil
		},
		updateWithOutbox: func(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error {
			if eventType != "OrderCancelled" {
				t.Errorf("eventType = %s, want OrderCancelled", eventType)
			}
			return nil
		},
	}

	svc := NewService(testLogger(), repo, inv, true)
	order, err := svc.CancelOrder(context.Background(), owner, uuid.New())
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", order.Status)
	}
}
