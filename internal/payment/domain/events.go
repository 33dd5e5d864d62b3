package domain

import "github.com/google/uuid"

type PaymentCompleted struct {
	PaymentID             uuid.UUID `json:"payment_id"`
	PaymentReference      string    `json:"payment_reference"`
	OrderID               uuid.UUID `json:"order_id"`
	Amount                string    `json:"amount"`
	Currency              string    `json:"currency"`
	ProviderTransactionID string    `json:"provider_transaction_id"`
}

type PaymentFailed struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	PaymentReference string    `json:"payment_reference"`
	OrderID          uuid.UUID `json:"order_id"`
	Reason           string    `json:"reason"`
}

type PaymentRefunded struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	PaymentReference string    `json:"payment_reference"`
	OrderID          uuid.UUID `json:"order_id"`
	Amount           string    `json:"amount"`
	Partial          bool      `json:"partial"`
	Reason           string    `json:"reason"`
}
