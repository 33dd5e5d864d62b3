package iyzico

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/dukkan/commerce-core/internal/payment/provider"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	localeTR       = "tr"
	statusSuccess  = "success"
	paymentChannel = "WEB"
	paymentGroup   = "PRODUCT"
)

type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
}

// Adapter translates the generic payment contract into iyzico's REST wire
// format (non-3DS auth and refund endpoints).
type Adapter struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

func New(log *slog.Logger, cfg Config) *Adapter {
	return &Adapter{
		log:  log,
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) Name() domain.Provider { return domain.ProviderIyzico }

func (a *Adapter) SupportsMethod(method domain.Method) bool {
	return method == domain.MethodCreditCard || method == domain.MethodDebitCard
}

type paymentCard struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	Cvc            string `json:"cvc"`
}

type buyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
	ZipCode             string `json:"zipCode"`
}

type address struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

type basketItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	ItemType  string `json:"itemType"`
	Price     string `json:"price"`
}

type createPaymentRequest struct {
	Locale          string       `json:"locale"`
	ConversationID  string       `json:"conversationId"`
	Price           string       `json:"price"`
	PaidPrice       string       `json:"paidPrice"`
	Currency        string       `json:"currency"`
	Installment     int          `json:"installment"`
	BasketID        string       `json:"basketId"`
	PaymentChannel  string       `json:"paymentChannel"`
	PaymentGroup    string       `json:"paymentGroup"`
	PaymentCard     *paymentCard `json:"paymentCard,omitempty"`
	Buyer           buyer        `json:"buyer"`
	ShippingAddress address      `json:"shippingAddress"`
	BillingAddress  address      `json:"billingAddress"`
	BasketItems     []basketItem `json:"basketItems"`
	CallbackURL     string       `json:"callbackUrl,omitempty"`
}

type createRefundRequest struct {
	Locale               string `json:"locale"`
	ConversationID       string `json:"conversationId"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	Price                string `json:"price"`
	Currency             string `json:"currency"`
	IP                   string `json:"ip"`
}

type itemTransaction struct {
	PaymentTransactionID string `json:"paymentTransactionId"`
}

type apiResponse struct {
	Status           string            `json:"status"`
	PaymentID        string            `json:"paymentId"`
	ErrorCode        string            `json:"errorCode"`
	ErrorMessage     string            `json:"errorMessage"`
	ItemTransactions []itemTransaction `json:"itemTransactions"`
}

func (a *Adapter) ProcessPayment(ctx context.Context, req provider.Request) (provider.Response, error) {
	a.log.InfoContext(ctx, "processing iyzico payment", "reference", req.PaymentReference)

	body := createPaymentRequest{
		Locale:         localeTR,
		ConversationID: req.PaymentReference,
		Price:          req.Amount.StringFixed(2),
		PaidPrice:      req.Amount.StringFixed(2),
		Currency:       req.Currency,
		Installment:    1,
		BasketID:       uuid.NewString()[:8],
		PaymentChannel: paymentChannel,
		PaymentGroup:   paymentGroup,
		CallbackURL:    req.CallbackURL,
		BasketItems: []basketItem{{
			ID:        "ITEM1",
			Name:      "Order Payment",
			Category1: "General",
			ItemType:  "PHYSICAL",
			Price:     req.Amount.StringFixed(2),
		}},
	}

	if req.Card != nil {
		body.PaymentCard = &paymentCard{
			CardHolderName: req.Card.HolderName,
			CardNumber:     req.Card.Number,
			ExpireMonth:    req.Card.ExpireMonth,
			ExpireYear:     req.Card.ExpireYear,
			Cvc:            req.Card.CVC,
		}
	}

	ip := req.IPAddress
	if ip == "" {
		ip = "127.0.0.1"
	}
	if req.BillingAddress != nil {
		addr := address{
			ContactName: req.BillingAddress.ContactName,
			City:        req.BillingAddress.City,
			Country:     req.BillingAddress.Country,
			Address:     req.BillingAddress.Address,
			ZipCode:     req.BillingAddress.ZipCode,
		}
		body.BillingAddress = addr
		// shipping mirrors billing; separate shipping addresses are not collected
		body.ShippingAddress = addr
		body.Buyer = buyer{
			ID:                  uuid.NewString()[:8],
			Name:                firstName(addr.ContactName),
			Surname:             lastName(addr.ContactName),
			Email:               req.CustomerEmail,
			IdentityNumber:      "11111111111",
			RegistrationAddress: addr.Address,
			IP:                  ip,
			City:                addr.City,
			Country:             addr.Country,
			ZipCode:             addr.ZipCode,
		}
	}

	resp, raw, err := a.post(ctx, "/payment/auth", body)
	if err != nil {
		return provider.Response{}, fmt.Errorf("iyzico payment request failed: %w", err)
	}

	return buildResponse(resp, raw), nil
}

func (a *Adapter) RefundPayment(ctx context.Context, providerTransactionID string, amount decimal.Decimal) (provider.Response, error) {
	a.log.InfoContext(ctx, "processing iyzico refund", "transaction_id", providerTransactionID, "amount", amount)

	body := createRefundRequest{
		Locale:               localeTR,
		ConversationID:       uuid.NewString(),
		PaymentTransactionID: providerTransactionID,
		Price:                amount.StringFixed(2),
		Currency:             "TRY",
		IP:                   "127.0.0.1",
	}

	resp, raw, err := a.post(ctx, "/payment/refund", body)
	if err != nil {
		return provider.Response{}, fmt.Errorf("iyzico refund request failed: %w", err)
	}

	out := buildResponse(resp, raw)
	// refunds keep referring to the original transaction
	out.TransactionID = providerTransactionID
	return out, nil
}

func (a *Adapter) post(ctx context.Context, path string, payload any) (apiResponse, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, "", err
	}
	rnd := randomKey()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.authorization(rnd, body))
	req.Header.Set("x-iyzi-rnd", rnd)

	resp, err := a.http.Do(req)
	if err != nil {
		return apiResponse{}, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, "", err
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return apiResponse{}, "", fmt.Errorf("unexpected iyzico response: %w", err)
	}
	return parsed, string(raw), nil
}

// authorization builds the IYZWS v1 header: base64(sha1(apiKey + rnd +
// secretKey + body)).
func (a *Adapter) authorization(rnd string, body []byte) string {
	h := sha1.New()
	h.Write([]byte(a.cfg.APIKey))
	h.Write([]byte(rnd))
	h.Write([]byte(a.cfg.SecretKey))
	h.Write(body)
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("IYZWS %s:%s", a.cfg.APIKey, digest)
}

func randomKey() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func buildResponse(resp apiResponse, raw string) provider.Response {
	success := resp.Status == statusSuccess

	out := provider.Response{
		Success:     success,
		Status:      resp.Status,
		RawResponse: raw,
	}
	if success {
		// iyzico reports the refundable transaction id per basket item
		out.TransactionID = resp.PaymentID
		if len(resp.ItemTransactions) > 0 {
			out.TransactionID = resp.ItemTransactions[0].PaymentTransactionID
		}
		out.Message = "Payment completed successfully"
	} else {
		out.ErrorCode = resp.ErrorCode
		out.ErrorMessage = resp.ErrorMessage
		out.Message = "Payment failed: " + resp.ErrorMessage
	}
	return out
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[0]
}

func lastName(full string) string {
	fields := strings.Fields(full)
	if len(fields) < 2 {
		return "Unknown"
	}
	return fields[len(fields)-1]
}
