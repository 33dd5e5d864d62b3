package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukkan/commerce-core/internal/order/application"
	"github.com/dukkan/commerce-core/internal/order/domain"
	"github.com/dukkan/commerce-core/pkg/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
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
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/orders", h.placeOrder)
	r.Get("/api/v1/orders", h.listOrders)
	r.Get("/api/v1/orders/{id}", h.getOrder)
	r.Post("/api/v1/orders/{id}/cancel", h.cancelOrder)

	return r
}

type placeOrderReq struct {
	Items []struct {
		ProductID uuid.UUID `json:"productId"`
		Quantity  int       `json:"quantity"`
	} `json:"items"`
}

type orderItemDTO struct {
	ProductID       uuid.UUID `json:"productId"`
	ProductName     string    `json:"productName"`
	ProductSKU      string    `json:"productSku"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase string    `json:"priceAtPurchase"`
	Subtotal        string    `json:"subtotal"`
}

type orderDTO struct {
	ID          uuid.UUID      `json:"id"`
	OrderNumber string         `json:"orderNumber"`
	UserID      uuid.UUID      `json:"userId"`
	Status      string         `json:"status"`
	TotalAmount string         `json:"totalAmount"`
	Items       []orderItemDTO `json:"items"`
}

func toDTO(o domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductSKU:      it.ProductSKU,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.StringFixed(2),
			Subtotal:        it.Subtotal.StringFixed(2),
		})
	}
	return orderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.StringFixed(2),
		Items:       items,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	items := make([]application.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.service.PlaceOrder(ctx, userID, items)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusCreated, toDTO(order))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.service.CancelOrder(ctx, userID, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, toDTO(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, offset := httpapi.Pagination(r)
	orders, err := h.service.ListUserOrders(ctx, userID, limit, offset)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toDTO(o))
	}
	httpapi.OK(w, http.StatusOK, dtos)
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil {
		httpapi.Error(w, http.StatusUnauthorized, "missing or invalid user id")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, application.ErrProductNotFound):
		httpapi.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httpapi.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		httpapi.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidQuantity):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrProductUnavailable), errors.Is(err, application.ErrInsufficientStock):
		httpapi.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, application.ErrInventoryUnavailable):
		httpapi.Error(w, http.StatusBadGateway, err.Error())
	default:
		h.log.ErrorContext(ctx, "order request failed", "err", err)
		httpapi.Error(w, http.StatusInternalServerError, "internal error")
	}
}
