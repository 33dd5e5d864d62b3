package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewOrderItemSubtotal(t *testing.T) {
	price := decimal.RequireFromString("19.99")
	item, err := NewOrderItem(uuid.New(), "Mechanical Keyboard", "KB-01", 3, price)
	if err != nil {
		t.Fatalf("NewOrderItem: %v", err)
	}
	if want := decimal.RequireFromString("59.97"); !item.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", item.Subtotal, want)
	}
}

func TestNewOrderItemRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -1} {
		_, err := NewOrderItem(uuid.New(), "Keyboard", "KB-01", qty, decimal.RequireFromString("10.00"))
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("quantity %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestCalculateTotalSumsSubtotals(t *testing.T) {
	order := NewOrder(uuid.New())

	add := func(qty int, price string) {
		t.Helper()
		item, err := NewOrderItem(uuid.New(), "p", "sku", qty, decimal.RequireFromString(price))
		if err != nil {
			t.Fatalf("NewOrderItem: %v", err)
		}
		order.AddItem(item)
	}
	add(2, "10.50")
	add(1, "0.01")
	add(3, "33.33")

	order.CalculateTotal()
	if want := decimal.RequireFromString("121.00"); !order.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", order.TotalAmount, want)
	}
}

func TestCancelTransitions(t *testing.T) {
	tests := []struct {
		status  Status
		wantErr bool
	}{
		{StatusPending, false},
		{StatusConfirmed, false},
		{StatusProcessing, true},
		{StatusShipped, true},
		{StatusDelivered, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order := NewOrder(uuid.New())
			order.Status = tt.status

			err := order.Cancel()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("err = %v, want ErrInvalidState", err)
				}
				if order.Status != tt.status {
					t.Errorf("status mutated to %s on failed cancel", order.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel: %v", err)
			}
			if order.Status != StatusCancelled {
				t.Errorf("status = %s, want CANCELLED", order.Status)
			}
		})
	}
}

func TestOrderNumberFormat(t *testing.T) {
	order := NewOrder(uuid.New())
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("order number %q missing ORD- prefix", order.OrderNumber)
	}
	if parts := strings.Split(order.OrderNumber, "-"); len(parts) != 3 || len(parts[2]) != 8 {
		t.Errorf("order number %q not in ORD-<millis>-<suffix> form", order.OrderNumber)
	}
}
