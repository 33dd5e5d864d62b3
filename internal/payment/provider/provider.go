package provider

import (
	"context"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type CardDetails struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpireMonth string `json:"expireMonth"`
	ExpireYear  string `json:"expireYear"`
	CVC         string `json:"cvc"`
}

type BillingAddress struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

// Request is the provider-agnostic payment request. Each adapter translates
// it into its gateway's wire format.
type Request struct {
	PaymentReference string
	Amount           decimal.Decimal
	Currency         string
	Method           domain.Method
	CustomerEmail    string
	CustomerName     string
	Card             *CardDetails
	BillingAddress   *BillingAddress
	CallbackURL      string
	IPAddress        string
}

// Response is the provider-agnostic result. RawResponse keeps the gateway's
// full reply for auditing and callback matching.
type Response struct {
	Success       bool
	TransactionID string
	Status        string
	Message       string
	ErrorCode     string
	ErrorMessage  string
	RawResponse   string
}

// Provider is the uniform contract over heterogeneous payment gateways.
// Implementations must catch gateway-specific failures and surface them as
// plain errors; provider SDK types never cross this boundary.
type Provider interface {
	ProcessPayment(ctx context.Context, req Request) (Response, error)
	RefundPayment(ctx context.Context, providerTransactionID string, amount decimal.Decimal) (Response, error)
	Name() domain.Provider
	SupportsMethod(method domain.Method) bool
}
