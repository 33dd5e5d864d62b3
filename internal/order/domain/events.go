package domain

import "github.com/google/uuid"

type OrderPlacedItem struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	Subtotal  string    `json:"subtotal"`
}

type OrderPlaced struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	TotalAmount string            `json:"total_amount"`
	Items       []OrderPlacedItem `json:"items"`
}

type OrderCancelled struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
}
