package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukkan/commerce-core/internal/inventory/application"
	"github.com/dukkan/commerce-core/internal/inventory/domain"
	"github.com/dukkan/commerce-core/pkg/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/products/{id}", h.getProduct)
	r.Post("/api/v1/products/{id}/stock/reduce", h.reduceStock)
	r.Post("/api/v1/products/{id}/stock/restore", h.restoreStock)

	return r
}

type productDTO struct {
	ID            uuid.UUID `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	IsActive      bool      `json:"isActive"`
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.service.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "get product failed", "product_id", id, "err", err)
		httpapi.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpapi.OK(w, http.StatusOK, productDTO{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
	})
}

func (h *Handler) reduceStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, "ReduceStock", h.service.ReduceStock)
}

func (h *Handler) restoreStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, "RestoreStock", h.service.RestoreStock)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request, span string,
	apply func(ctx context.Context, id uuid.UUID, quantity int) error) {

	ctx, sp := h.tracer.Start(r.Context(), span)
	defer sp.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	err = apply(ctx, id, req.Quantity)
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		httpapi.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httpapi.Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.log.ErrorContext(ctx, "stock adjust failed", "product_id", id, "err", err)
		httpapi.Error(w, http.StatusInternalServerError, "internal error")
	default:
		httpapi.OK(w, http.StatusOK, nil)
	}
}
