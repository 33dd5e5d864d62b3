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
	ErrNotFound               = errors.New("payment: not found")
	ErrInvalidStateTransition = errors.New("payment: invalid state transition")
	ErrInvalidState           = errors.New("payment: operation not allowed in current status")
	ErrInvalidAmount          = errors.New("payment: amount must be greater than zero")
	ErrInvalidCurrency        = errors.New("payment: currency must be a 3-letter ISO code")
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusProcessing    Status = "PROCESSING"
	StatusCompleted     Status = "COMPLETED"
	StatusFailed        Status = "FAILED"
	StatusCancelled     Status = "CANCELLED"
	StatusRefunded      Status = "REFUNDED"
	StatusPartialRefund Status = "PARTIAL_REFUND"
)

type Provider string

const (
	ProviderIyzico Provider = "IYZICO"
	ProviderStripe Provider = "STRIPE"
	ProviderPaypal Provider = "PAYPAL"
)

type Method string

const (
	MethodCreditCard     Method = "CREDIT_CARD"
	MethodDebitCard      Method = "DEBIT_CARD"
	MethodBankTransfer   Method = "BANK_TRANSFER"
	MethodDigitalWallet  Method = "DIGITAL_WALLET"
	MethodCashOnDelivery Method = "CASH_ON_DELIVERY"
)

// Payment is an immutable snapshot of a payment's lifecycle state. All
// transitions are value-receiver methods returning the next state or an
// error, which keeps the state machine independent of persistence.
type Payment struct {
	ID                    uuid.UUID
	PaymentReference      string
	OrderID               uuid.UUID
	UserID                uuid.UUID
	Amount                decimal.Decimal
	Currency              string
	Status                Status
	Provider              Provider
	Method                Method
	ProviderTransactionID string
	ProviderResponse      string
	FailureReason         string
	CustomerEmail         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
	FailedAt              *time.Time
}

func New(orderID, userID uuid.UUID, amount decimal.Decimal, currency string, prov Provider, method Method, customerEmail string) (Payment, error) {
	if !amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	if len(currency) != 3 {
		return Payment{}, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	return Payment{
		ID:               uuid.New(),
		PaymentReference: NewReference(),
		OrderID:          orderID,
		UserID:           userID,
		Amount:           amount,
		Currency:         strings.ToUpper(currency),
		Status:           StatusPending,
		Provider:         prov,
		Method:           method,
		CustomerEmail:    customerEmail,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewReference generates the external payment identifier. The UUID fragment
// keeps references unique even when two payments are created in the same
// millisecond.
func NewReference() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("PAY-%d-%s", time.Now().UnixMilli(), suffix)
}

func (p Payment) MarkProcessing() (Payment, error) {
	if p.Status != StatusPending {
		return Payment{}, transitionErr(p.Status, StatusProcessing)
	}
	p.Status = StatusProcessing
	p.touch()
	return p, nil
}

func (p Payment) Complete(providerTransactionID, rawResponse string) (Payment, error) {
	if p.Status != StatusProcessing {
		return Payment{}, transitionErr(p.Status, StatusCompleted)
	}
	now := time.Now().UTC()
	p.Status = StatusCompleted
	p.ProviderTransactionID = providerTransactionID
	p.ProviderResponse = rawResponse
	p.CompletedAt = &now
	p.touch()
	return p, nil
}

func (p Payment) Fail(reason, rawResponse string) (Payment, error) {
	if p.Status == StatusCompleted || p.Status == StatusRefunded {
		return Payment{}, transitionErr(p.Status, StatusFailed)
	}
	now := time.Now().UTC()
	p.Status = StatusFailed
	p.FailureReason = reason
	p.ProviderResponse = rawResponse
	p.FailedAt = &now
	p.touch()
	return p, nil
}

func (p Payment) Cancel() (Payment, error) {
	if p.Status == StatusCompleted || p.Status == StatusRefunded {
		return Payment{}, transitionErr(p.Status, StatusCancelled)
	}
	p.Status = StatusCancelled
	p.touch()
	return p, nil
}

// Refund moves a completed payment to REFUNDED. The reason lands in
// FailureReason, which doubles as the refund-reason field.
func (p Payment) Refund(reason string) (Payment, error) {
	if p.Status != StatusCompleted {
		return Payment{}, transitionErr(p.Status, StatusRefunded)
	}
	p.Status = StatusRefunded
	p.FailureReason = reason
	p.touch()
	return p, nil
}

func (p Payment) PartialRefund(reason string) (Payment, error) {
	if p.Status != StatusCompleted && p.Status != StatusPartialRefund {
		return Payment{}, transitionErr(p.Status, StatusPartialRefund)
	}
	p.Status = StatusPartialRefund
	p.FailureReason = reason
	p.touch()
	return p, nil
}

func (p Payment) IsFinal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

func (p Payment) IsSuccessful() bool {
	return p.Status == StatusCompleted
}

func (p Payment) CanRetry() bool {
	return p.Status == StatusFailed || p.Status == StatusCancelled
}

// IsRefundable reports whether a refund call may proceed: the original
// completion, or further partial refunds.
func (p Payment) IsRefundable() bool {
	return p.Status == StatusCompleted || p.Status == StatusPartialRefund
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
}
