package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukkan/commerce-core/internal/order/domain"
	"github.com/dukkan/commerce-core/pkg/tracing"
	"github.com/google/uuid"
)

var (
	ErrEmptyOrder           = errors.New("order: at least one item is required")
	ErrProductUnavailable   = errors.New("order: product is not available")
	ErrInsufficientStock    = errors.New("order: insufficient stock")
	ErrProductNotFound      = errors.New("order: product not found")
	ErrInventoryUnavailable = errors.New("order: inventory service unavailable")
)

// Service coordinates order fulfillment: it validates each requested item
// against the inventory service, reduces remote stock per item, and persists
// the finished order in one local write.
//
// Stock reductions are remote calls with no surrounding transaction. When a
// later item fails, reductions already applied for earlier items stay applied
// unless compensation is enabled, in which case they are restored best-effort
// in reverse order.
type Service struct {
	log        *slog.Logger
	repo       OrderRepository
	inv        InventoryClient
	compensate bool
}

func NewService(log *slog.Logger, repo OrderRepository, inv InventoryClient, compensate bool) *Service {
	return &Service{log: log, repo: repo, inv: inv, compensate: compensate}
}

type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

func (s *Service) PlaceOrder(ctx context.Context, userID uuid.UUID, items []ItemRequest) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	// Input validation happens before any remote call so a malformed request
	// leaves no stock reduced anywhere.
	for _, req := range items {
		if req.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
	}

	order := domain.NewOrder(userID)
	var undo []func(context.Context) error

	for _, req := range items {
		product, err := s.inv.GetProduct(ctx, req.ProductID)
		if err != nil {
			s.rollback(ctx, undo)
			return domain.Order{}, err
		}
		if !product.IsActive {
			s.rollback(ctx, undo)
			return domain.Order{}, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}
		if product.StockQuantity < req.Quantity {
			s.rollback(ctx, undo)
			return domain.Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
		}

		item, err := domain.NewOrderItem(product.ID, product.Name, product.SKU, req.Quantity, product.Price)
		if err != nil {
			s.rollback(ctx, undo)
			return domain.Order{}, err
		}
		order.AddItem(item)

		if err := s.inv.ReduceStock(ctx, product.ID, req.Quantity); err != nil {
			s.rollback(ctx, undo)
			return domain.Order{}, err
		}
		productID, quantity := product.ID, req.Quantity
		undo = append(undo, func(ctx context.Context) error {
			return s.inv.RestoreStock(ctx, productID, quantity)
		})
	}

	order.CalculateTotal()

	payload, err := json.Marshal(placedEvent(order))
	if err != nil {
		s.rollback(ctx, undo)
		return domain.Order{}, err
	}
	if err := s.repo.SaveWithOutbox(ctx, order, "OrderPlaced", payload, tracing.Traceparent(ctx)); err != nil {
		s.rollback(ctx, undo)
		return domain.Order{}, err
	}

	s.log.InfoContext(ctx, "order placed", "order_number", order.OrderNumber, "user_id", userID, "total", order.TotalAmount)
	return *order, nil
}

func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (domain.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrUnauthorized
	}
	if err := order.Cancel(); err != nil {
		return domain.Order{}, err
	}

	// Reduced stock is deliberately not restored on cancellation; see the
	// compensation notes in DESIGN.md.
	payload, err := json.Marshal(domain.OrderCancelled{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.UpdateWithOutbox(ctx, &order, "OrderCancelled", payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Order{}, err
	}

	s.log.InfoContext(ctx, "order cancelled", "order_number", order.OrderNumber, "user_id", userID)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *Service) ListUserOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// rollback restores previously reduced stock in reverse order. It only runs
// when compensation is enabled; residual failures are logged, not returned,
// because the placement error is what the caller needs to see.
func (s *Service) rollback(ctx context.Context, undo []func(context.Context) error) {
	if !s.compensate {
		return
	}
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			s.log.ErrorContext(ctx, "stock compensation failed", "err", err)
		}
	}
}

func placedEvent(o *domain.Order) domain.OrderPlaced {
	items := make([]domain.OrderPlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.OrderPlacedItem{
			ProductID: it.ProductID,
			SKU:       it.ProductSKU,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.StringFixed(2),
		})
	}
	return domain.OrderPlaced{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Items:       items,
	}
}
