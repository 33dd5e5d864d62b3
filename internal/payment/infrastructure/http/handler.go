package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukkan/commerce-core/internal/payment/application"
	"github.com/dukkan/commerce-core/internal/payment/domain"
	"github.com/dukkan/commerce-core/internal/payment/provider"
	"github.com/dukkan/commerce-core/pkg/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// userIDHeader carries the authenticated user id, injected by the gateway.
const userIDHeader = "X-User-Id"

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/payments", h.initiatePayment)
	r.Get("/api/v1/payments", h.listUserPayments)
	r.Post("/api/v1/payments/callback", h.handleCallback)
	r.Get("/api/v1/payments/retryable", h.listRetryable)
	r.Post("/api/v1/payments/retry", h.retryPayments)
	r.Get("/api/v1/payments/id/{id}", h.getPaymentByID)
	r.Get("/api/v1/payments/order/{orderId}", h.listOrderPayments)
	r.Get("/api/v1/payments/status/{status}", h.listByStatus)
	r.Get("/api/v1/payments/{reference}", h.getPayment)
	r.Post("/api/v1/payments/{reference}/refund", h.refundPayment)
	r.Post("/api/v1/payments/{reference}/cancel", h.cancelPayment)

	return r
}

type cardReq struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpireMonth string `json:"expireMonth"`
	ExpireYear  string `json:"expireYear"`
	CVC         string `json:"cvc"`
}

type billingAddressReq struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

type initiatePaymentReq struct {
	OrderID        uuid.UUID          `json:"orderId"`
	Amount         string             `json:"amount"`
	Currency       string             `json:"currency"`
	Provider       string             `json:"provider"`
	Method         string             `json:"method"`
	CustomerEmail  string             `json:"customerEmail"`
	CustomerName   string             `json:"customerName"`
	Card           *cardReq           `json:"card,omitempty"`
	BillingAddress *billingAddressReq `json:"billingAddress,omitempty"`
	CallbackURL    string             `json:"callbackUrl,omitempty"`
}

type refundReq struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type callbackReq struct {
	ProviderTransactionID string `json:"providerTransactionId"`
	Payload               string `json:"payload"`
}

type paymentDTO struct {
	ID               uuid.UUID  `json:"id"`
	PaymentReference string     `json:"paymentReference"`
	OrderID          uuid.UUID  `json:"orderId"`
	UserID           uuid.UUID  `json:"userId"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	Provider         string     `json:"provider"`
	Method           string     `json:"method"`
	FailureReason    string     `json:"failureReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
}

func toDTO(p domain.Payment) paymentDTO {
	return paymentDTO{
		ID:               p.ID,
		PaymentReference: p.PaymentReference,
		OrderID:          p.OrderID,
		UserID:           p.UserID,
		Amount:           p.Amount.StringFixed(2),
		Currency:         p.Currency,
		Status:           string(p.Status),
		Provider:         string(p.Provider),
		Method:           string(p.Method),
		FailureReason:    p.FailureReason,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
		FailedAt:         p.FailedAt,
	}
}

func toDTOs(payments []domain.Payment) []paymentDTO {
	dtos := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toDTO(p))
	}
	return dtos
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req initiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid amount")
		return
	}

	in := application.InitiatePaymentInput{
		OrderID:       req.OrderID,
		UserID:        userID,
		Amount:        amount,
		Currency:      req.Currency,
		Provider:      domain.Provider(req.Provider),
		Method:        domain.Method(req.Method),
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		CallbackURL:   req.CallbackURL,
		IPAddress:     clientIP(r),
	}
	if req.Card != nil {
		in.Card = &provider.CardDetails{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpireMonth: req.Card.ExpireMonth,
			ExpireYear:  req.Card.ExpireYear,
			CVC:         req.Card.CVC,
		}
	}
	if req.BillingAddress != nil {
		in.BillingAddress = &provider.BillingAddress{
			ContactName: req.BillingAddress.ContactName,
			City:        req.BillingAddress.City,
			Country:     req.BillingAddress.Country,
			Address:     req.BillingAddress.Address,
			ZipCode:     req.BillingAddress.ZipCode,
		}
	}

	payment, err := h.service.InitiatePayment(ctx, in)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	// a FAILED payment is still a created resource; the status tells the caller
	httpapi.OK(w, http.StatusCreated, toDTO(payment))
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RefundPayment")
	defer span.End()

	var req refundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid amount")
		return
	}

	payment, err := h.service.RefundPayment(ctx, chi.URLParam(r, "reference"), amount, req.Reason)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(payment))
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleCallback")
	defer span.End()

	var req callbackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ProviderTransactionID == "" {
		httpapi.Error(w, http.StatusBadRequest, "missing provider transaction id")
		return
	}

	payment, err := h.service.HandleCallback(ctx, req.ProviderTransactionID, req.Payload)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(payment))
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelPayment")
	defer span.End()

	payment, err := h.service.CancelPayment(ctx, chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(payment))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	payment, err := h.service.GetPaymentByReference(ctx, chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(payment))
}

func (h *Handler) getPaymentByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPaymentByID")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := h.service.GetPayment(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(payment))
}

func (h *Handler) listUserPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListUserPayments")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, offset := httpapi.Pagination(r)
	payments, err := h.service.ListUserPayments(ctx, userID, limit, offset)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTOs(payments))
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPaymentsByStatus")
	defer span.End()

	limit, offset := httpapi.Pagination(r)
	payments, err := h.service.ListPaymentsByStatus(ctx, domain.Status(chi.URLParam(r, "status")), limit, offset)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTOs(payments))
}

func (h *Handler) listOrderPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrderPayments")
	defer span.End()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	payments, err := h.service.ListOrderPayments(ctx, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTOs(payments))
}

func (h *Handler) listRetryable(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListRetryablePayments")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListRetryablePayments(ctx, userID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTOs(payments))
}

func (h *Handler) retryPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RetryPayments")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.RetryPayments(ctx, userID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTOs(payments))
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil {
		httpapi.Error(w, http.StatusUnauthorized, "missing or invalid user id")
		return uuid.Nil, false
	}
	return userID, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpapi.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrProviderNotSupported), errors.Is(err, application.ErrMethodNotSupported):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidCurrency):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidStateTransition):
		httpapi.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrProviderProcessing):
		httpapi.Error(w, http.StatusBadGateway, err.Error())
	default:
		h.log.ErrorContext(ctx, "payment request failed", "err", err)
		httpapi.Error(w, http.StatusInternalServerError, "internal error")
	}
}
