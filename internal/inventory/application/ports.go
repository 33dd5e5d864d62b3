package application

import (
	"context"

	"github.com/dukkan/commerce-core/internal/inventory/domain"
	"github.com/google/uuid"
)

type ProductRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Product, error)
	// AdjustStock applies a delta to stock_quantity as a single conditional
	// row update and reports whether the row qualified.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
}
