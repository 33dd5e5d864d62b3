package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/dukkan/commerce-core/pkg/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const paymentColumns = `
	id, payment_reference, order_id, user_id, amount, currency, status,
	provider, method, provider_transaction_id, provider_response,
	failure_reason, customer_email, created_at, updated_at, completed_at, failed_at`

func (r *Repository) Save(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		p.ID, p.PaymentReference, p.OrderID, p.UserID, p.Amount.StringFixed(2), p.Currency, p.Status,
		p.Provider, p.Method, nullable(p.ProviderTransactionID), nullable(p.ProviderResponse),
		nullable(p.FailureReason), p.CustomerEmail, p.CreatedAt, p.UpdatedAt, p.CompletedAt, p.FailedAt)
	return err
}

func (r *Repository) Update(ctx context.Context, p domain.Payment, from domain.Status) error {
	return r.update(ctx, r.pool, p, from)
}

func (r *Repository) UpdateWithOutbox(ctx context.Context, p domain.Payment, from domain.Status, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = r.update(ctx, tx, p, from); err != nil {
		return err
	}
	if err = outbox.Append(ctx, tx, "payment", p.ID.String(), eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// update is a single-row compare-and-set: the write only lands if the stored
// row is still in the status the in-memory transition started from. Two
// racing writers cannot both succeed; the loser sees the row gone from its
// expected status and reports an invalid transition instead of overwriting.
func (r *Repository) update(ctx context.Context, q execer, p domain.Payment, from domain.Status) error {
	ct, err := q.Exec(ctx, `
		UPDATE payments SET
			status=$2, provider_transaction_id=$3, provider_response=$4,
			failure_reason=$5, updated_at=$6, completed_at=$7, failed_at=$8
		WHERE id=$1 AND status=$9`,
		p.ID, p.Status, nullable(p.ProviderTransactionID), nullable(p.ProviderResponse),
		nullable(p.FailureReason), p.UpdatedAt, p.CompletedAt, p.FailedAt, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var current domain.Status
		err := r.pool.QueryRow(ctx, `SELECT status FROM payments WHERE id=$1`, p.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: payment is %s, expected %s", domain.ErrInvalidStateTransition, current, from)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	return scanPayment(row)
}

func (r *Repository) GetByReference(ctx context.Context, reference string) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_reference=$1`, reference)
	return scanPayment(row)
}

func (r *Repository) GetByProviderTransactionID(ctx context.Context, transactionID string) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_transaction_id=$1`, transactionID)
	return scanPayment(row)
}

func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *Repository) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *Repository) ListRetryable(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id=$1 AND status IN ('FAILED','CANCELLED')
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var amount string
	var txID, resp, reason *string
	err := row.Scan(&p.ID, &p.PaymentReference, &p.OrderID, &p.UserID, &amount, &p.Currency, &p.Status,
		&p.Provider, &p.Method, &txID, &resp, &reason, &p.CustomerEmail,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &p.FailedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Payment{}, err
	}
	p.ProviderTransactionID = deref(txID)
	p.ProviderResponse = deref(resp)
	p.FailureReason = deref(reason)
	return p, nil
}

func scanPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
