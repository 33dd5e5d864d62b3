package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/dukkan/commerce-core/internal/payment/provider"
	"github.com/dukkan/commerce-core/pkg/tracing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProviderNotSupported = errors.New("payment: provider not supported")
	ErrMethodNotSupported   = errors.New("payment: method not supported by provider")
	ErrProviderProcessing   = errors.New("payment: provider processing error")
)

// Service drives the payment lifecycle. Provider failures during initiation
// are absorbed into the payment's FAILED state and returned as data; provider
// failures during refund are hard errors. This asymmetry is intentional.
type Service struct {
	log      *slog.Logger
	repo     PaymentRepository
	registry *provider.Registry
	dedupe   DedupeStore
}

func NewService(log *slog.Logger, repo PaymentRepository, registry *provider.Registry, dedupe DedupeStore) *Service {
	return &Service{log: log, repo: repo, registry: registry, dedupe: dedupe}
}

type InitiatePaymentInput struct {
	OrderID        uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Provider       domain.Provider
	Method         domain.Method
	CustomerEmail  string
	CustomerName   string
	Card           *provider.CardDetails
	BillingAddress *provider.BillingAddress
	CallbackURL    string
	IPAddress      string
}

func (s *Service) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (domain.Payment, error) {
	adapter, ok := s.registry.Get(in.Provider)
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: %s", ErrProviderNotSupported, in.Provider)
	}
	if !adapter.SupportsMethod(in.Method) {
		return domain.Payment{}, fmt.Errorf("%w: %s via %s", ErrMethodNotSupported, in.Method, in.Provider)
	}

	payment, err := domain.New(in.OrderID, in.UserID, in.Amount, in.Currency, in.Provider, in.Method, in.CustomerEmail)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.Save(ctx, payment); err != nil {
		return domain.Payment{}, err
	}

	payment, err = payment.MarkProcessing()
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.Update(ctx, payment, domain.StatusPending); err != nil {
		return domain.Payment{}, err
	}

	resp, callErr := adapter.ProcessPayment(ctx, provider.Request{
		PaymentReference: payment.PaymentReference,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		Method:           payment.Method,
		CustomerEmail:    in.CustomerEmail,
		CustomerName:     in.CustomerName,
		Card:             in.Card,
		BillingAddress:   in.BillingAddress,
		CallbackURL:      in.CallbackURL,
		IPAddress:        in.IPAddress,
	})

	switch {
	case callErr != nil:
		// adapter errors are recorded on the payment, not raised
		return s.fail(ctx, payment, "payment processing error: "+callErr.Error(), "")
	case resp.Success:
		return s.complete(ctx, payment, resp)
	default:
		reason := resp.ErrorMessage
		if reason == "" {
			reason = "payment failed"
		}
		return s.fail(ctx, payment, reason, resp.RawResponse)
	}
}

func (s *Service) RefundPayment(ctx context.Context, reference string, amount decimal.Decimal, reason string) (domain.Payment, error) {
	payment, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return domain.Payment{}, err
	}

	if !payment.IsRefundable() {
		return domain.Payment{}, fmt.Errorf("%w: cannot refund payment in %s status", domain.ErrInvalidState, payment.Status)
	}
	if !amount.IsPositive() {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	if amount.GreaterThan(payment.Amount) {
		return domain.Payment{}, fmt.Errorf("%w: refund amount exceeds original payment amount", domain.ErrInvalidState)
	}

	adapter, ok := s.registry.Get(payment.Provider)
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: %s", ErrProviderNotSupported, payment.Provider)
	}

	resp, err := adapter.RefundPayment(ctx, payment.ProviderTransactionID, amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("%w: %v", ErrProviderProcessing, err)
	}
	if !resp.Success {
		return domain.Payment{}, fmt.Errorf("%w: refund failed: %s", ErrProviderProcessing, resp.ErrorMessage)
	}

	from := payment.Status
	full := payment.Status == domain.StatusCompleted && amount.Equal(payment.Amount)
	if full {
		payment, err = payment.Refund(reason)
	} else {
		payment, err = payment.PartialRefund(reason)
	}
	if err != nil {
		return domain.Payment{}, err
	}

	payload, err := json.Marshal(domain.PaymentRefunded{
		PaymentID:        payment.ID,
		PaymentReference: payment.PaymentReference,
		OrderID:          payment.OrderID,
		Amount:           amount.StringFixed(2),
		Partial:          !full,
		Reason:           reason,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.UpdateWithOutbox(ctx, payment, from, "PaymentRefunded", payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}

	s.log.InfoContext(ctx, "refund processed", "reference", payment.PaymentReference, "amount", amount, "partial", !full)
	return payment, nil
}

// HandleCallback applies an asynchronous provider result. Replayed or late
// callbacks are a no-op: only a payment still in PROCESSING is mutated. The
// dedupe key is marked after the outcome is persisted, never before, so a
// transient persistence failure leaves the retried delivery processable.
func (s *Service) HandleCallback(ctx context.Context, providerTransactionID, rawPayload string) (domain.Payment, error) {
	payment, err := s.repo.GetByProviderTransactionID(ctx, providerTransactionID)
	if err != nil {
		return domain.Payment{}, err
	}

	if payment.Status != domain.StatusProcessing {
		return payment, nil
	}

	dedupeKey := fmt.Sprintf("idem:callback:%s:%s", payment.Provider, providerTransactionID)
	if s.dedupe != nil {
		seen, err := s.dedupe.Seen(ctx, dedupeKey)
		if err != nil {
			s.log.WarnContext(ctx, "callback dedupe unavailable", "err", err)
		} else if seen {
			return payment, nil
		}
	}

	from := payment.Status

	// The provider callback payload is matched by marker substrings; see the
	// callback parsing note in DESIGN.md before changing this.
	switch {
	case strings.Contains(rawPayload, "SUCCESS") || strings.Contains(rawPayload, "COMPLETED"):
		payment, err = payment.Complete(providerTransactionID, rawPayload)
		if err != nil {
			return domain.Payment{}, err
		}
		payment, err = s.persistCompleted(ctx, payment, from)
	case strings.Contains(rawPayload, "FAILED"):
		payment, err = payment.Fail("payment failed from provider callback", rawPayload)
		if err != nil {
			return domain.Payment{}, err
		}
		payment, err = s.persistFailed(ctx, payment, from)
	default:
		return payment, nil
	}
	if err != nil {
		return domain.Payment{}, err
	}

	if s.dedupe != nil {
		if err := s.dedupe.Mark(ctx, dedupeKey); err != nil {
			s.log.WarnContext(ctx, "callback dedupe mark failed", "err", err)
		}
	}
	return payment, nil
}

// RetryPayments re-runs the initiation flow for the user's failed and
// cancelled payments. Each retry creates a fresh payment with a new
// reference; card details are not stored, so retried charges rely on the
// provider's stored-card support or fail at the gateway.
func (s *Service) RetryPayments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	eligible, err := s.repo.ListRetryable(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Payment, 0, len(eligible))
	for _, old := range eligible {
		retried, err := s.InitiatePayment(ctx, InitiatePaymentInput{
			OrderID:       old.OrderID,
			UserID:        old.UserID,
			Amount:        old.Amount,
			Currency:      old.Currency,
			Provider:      old.Provider,
			Method:        old.Method,
			CustomerEmail: old.CustomerEmail,
		})
		if err != nil {
			s.log.WarnContext(ctx, "payment retry skipped", "reference", old.PaymentReference, "err", err)
			continue
		}
		results = append(results, retried)
	}
	return results, nil
}

// CancelPayment abandons a payment that has not completed. Cancelled payments
// stay eligible for retry.
func (s *Service) CancelPayment(ctx context.Context, reference string) (domain.Payment, error) {
	payment, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return domain.Payment{}, err
	}
	from := payment.Status
	payment, err = payment.Cancel()
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.Update(ctx, payment, from); err != nil {
		return domain.Payment{}, err
	}
	s.log.InfoContext(ctx, "payment cancelled", "reference", payment.PaymentReference)
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPaymentByReference(ctx context.Context, reference string) (domain.Payment, error) {
	return s.repo.GetByReference(ctx, reference)
}

func (s *Service) ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) ListUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListPaymentsByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Payment, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) ListRetryablePayments(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	return s.repo.ListRetryable(ctx, userID)
}

func (s *Service) complete(ctx context.Context, payment domain.Payment, resp provider.Response) (domain.Payment, error) {
	from := payment.Status
	payment, err := payment.Complete(resp.TransactionID, resp.RawResponse)
	if err != nil {
		return domain.Payment{}, err
	}
	return s.persistCompleted(ctx, payment, from)
}

func (s *Service) persistCompleted(ctx context.Context, payment domain.Payment, from domain.Status) (domain.Payment, error) {
	payload, err := json.Marshal(domain.PaymentCompleted{
		PaymentID:             payment.ID,
		PaymentReference:      payment.PaymentReference,
		OrderID:               payment.OrderID,
		Amount:                payment.Amount.StringFixed(2),
		Currency:              payment.Currency,
		ProviderTransactionID: payment.ProviderTransactionID,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.UpdateWithOutbox(ctx, payment, from, "PaymentCompleted", payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}
	s.log.InfoContext(ctx, "payment completed", "reference", payment.PaymentReference, "transaction_id", payment.ProviderTransactionID)
	return payment, nil
}

func (s *Service) fail(ctx context.Context, payment domain.Payment, reason, rawResponse string) (domain.Payment, error) {
	from := payment.Status
	payment, err := payment.Fail(reason, rawResponse)
	if err != nil {
		return domain.Payment{}, err
	}
	return s.persistFailed(ctx, payment, from)
}

func (s *Service) persistFailed(ctx context.Context, payment domain.Payment, from domain.Status) (domain.Payment, error) {
	payload, err := json.Marshal(domain.PaymentFailed{
		PaymentID:        payment.ID,
		PaymentReference: payment.PaymentReference,
		OrderID:          payment.OrderID,
		Reason:           payment.FailureReason,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.UpdateWithOutbox(ctx, payment, from, "PaymentFailed", payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}
	s.log.WarnContext(ctx, "payment failed", "reference", payment.PaymentReference, "reason", payment.FailureReason)
	return payment, nil
}
