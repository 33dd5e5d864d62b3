package application

import (
	"context"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/google/uuid"
)

type PaymentRepository interface {
	Save(ctx context.Context, p domain.Payment) error
	// Update persists the payment only if the stored row is still in the
	// status the in-memory transition started from. A lost race surfaces as
	// domain.ErrInvalidStateTransition.
	Update(ctx context.Context, p domain.Payment, from domain.Status) error
	// UpdateWithOutbox persists the payment and the given event in one local
	// transaction, under the same compare-and-set guard as Update.
	UpdateWithOutbox(ctx context.Context, p domain.Payment, from domain.Status, eventType string, payload []byte, traceparent string) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetByReference(ctx context.Context, reference string) (domain.Payment, error)
	GetByProviderTransactionID(ctx context.Context, transactionID string) (domain.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error)
	ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Payment, error)
	ListRetryable(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error)
}

// DedupeStore suppresses duplicate deliveries of the same provider callback.
// Seen only reads; Mark is called once the callback's effect is persisted.
type DedupeStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
