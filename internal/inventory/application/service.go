package application

import (
	"context"
	"log/slog"

	"github.com/dukkan/commerce-core/internal/inventory/domain"
	"github.com/google/uuid"
)

type Service struct {
	log  *slog.Logger
	repo ProductRepository
}

func NewService(log *slog.Logger, repo ProductRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ReduceStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	ok, err := s.repo.AdjustStock(ctx, id, -quantity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientStock
	}
	s.log.InfoContext(ctx, "stock reduced", "product_id", id, "quantity", quantity)
	return nil
}

func (s *Service) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	ok, err := s.repo.AdjustStock(ctx, id, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.InfoContext(ctx, "stock restored", "product_id", id, "quantity", quantity)
	return nil
}
