package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukkan/commerce-core/internal/inventory/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var p domain.Product
	var price string
	err := r.pool.QueryRow(ctx, `
		SELECT id, sku, name, price, stock_quantity, is_active, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &price, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// AdjustStock is a single conditional row update. A negative delta only
// applies when enough stock remains; this is the persistence-level guard the
// stock check-then-act flow relies on.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0`, id, delta)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
