package application

import (
	"context"

	"github.com/dukkan/commerce-core/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is what the inventory service reports about a product at
// the moment an order is being built.
type ProductSnapshot struct {
	ID            uuid.UUID
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

type InventoryClient interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (ProductSnapshot, error)
	ReduceStock(ctx context.Context, productID uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

type OrderRepository interface {
	// SaveWithOutbox persists the order, its items, and the given event in a
	// single local transaction.
	SaveWithOutbox(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error
	UpdateWithOutbox(ctx context.Context, o *domain.Order, eventType string, payload []byte, traceparent string) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Order, error)
}
