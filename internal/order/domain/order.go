package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrUnauthorized    = errors.New("order: caller does not own this order")
	ErrInvalidState    = errors.New("order: operation not allowed in current status")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// OrderItem is a purchase-time snapshot of a product. Name, SKU and unit
// price are copied from the product record and never re-linked to it.
// Subtotal is derived exactly once, at construction.
type OrderItem struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	ProductSKU      string
	Quantity        int
	PriceAtPurchase decimal.Decimal
	Subtotal        decimal.Decimal
}

func NewOrderItem(productID uuid.UUID, name, sku string, quantity int, price decimal.Decimal) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, ErrInvalidQuantity
	}
	return OrderItem{
		ID:              uuid.New(),
		ProductID:       productID,
		ProductName:     name,
		ProductSKU:      sku,
		Quantity:        quantity,
		PriceAtPurchase: price,
		Subtotal:        price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

type Order struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	OrderNumber string
	Status      Status
	TotalAmount decimal.Decimal
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(userID uuid.UUID) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:          uuid.New(),
		UserID:      userID,
		OrderNumber: generateOrderNumber(),
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
}

// CalculateTotal sums item subtotals. Called once, right before the order is
// persisted; the total is never recomputed afterwards.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.TotalAmount = total
}

func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

func (o *Order) Cancel() error {
	if !o.CanBeCancelled() {
		return fmt.Errorf("%w: cannot cancel order in %s status", ErrInvalidState, o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// generateOrderNumber builds the human-readable external identifier. The
// random suffix keeps concurrent placements within the same millisecond from
// colliding on the unique index.
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}
