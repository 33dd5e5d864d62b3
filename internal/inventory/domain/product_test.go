package domain

import (
	"errors"
	"testing"
)

func TestReduceStock(t *testing.T) {
	p := Product{StockQuantity: 5}
	if err := p.ReduceStock(3); err != nil {
		t.Fatalf("ReduceStock: %v", err)
	}
	if p.StockQuantity != 2 {
		t.Errorf("stock = %d, want 2", p.StockQuantity)
	}

	if err := p.ReduceStock(3); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("err = %v, want ErrInsufficientStock", err)
	}
	if err := p.ReduceStock(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestRestoreStock(t *testing.T) {
	p := Product{StockQuantity: 2}
	if err := p.RestoreStock(3); err != nil {
		t.Fatalf("RestoreStock: %v", err)
	}
	if p.StockQuantity != 5 {
		t.Errorf("stock = %d, want 5", p.StockQuantity)
	}

	if err := p.RestoreStock(-1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}
