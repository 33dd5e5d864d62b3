package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukkan/commerce-core/internal/order/application"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client talks to the inventory service's REST API. All calls are synchronous;
// the transport timeout is the only cancellation beyond the request context.
type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:     log,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type productPayload struct {
	ID            uuid.UUID `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	IsActive      bool      `json:"isActive"`
}

func (c *Client) GetProduct(ctx context.Context, productID uuid.UUID) (application.ProductSnapshot, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return application.ProductSnapshot{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return application.ProductSnapshot{}, fmt.Errorf("%w: %v", application.ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return application.ProductSnapshot{}, application.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return application.ProductSnapshot{}, fmt.Errorf("%w: status %d", application.ErrInventoryUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return application.ProductSnapshot{}, fmt.Errorf("%w: %v", application.ErrInventoryUnavailable, err)
	}
	var p productPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return application.ProductSnapshot{}, fmt.Errorf("%w: %v", application.ErrInventoryUnavailable, err)
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return application.ProductSnapshot{}, fmt.Errorf("%w: bad price %q", application.ErrInventoryUnavailable, p.Price)
	}

	return application.ProductSnapshot{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Price:         price,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
	}, nil
}

func (c *Client) ReduceStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	return c.adjustStock(ctx, productID, quantity, "reduce")
}

func (c *Client) RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	return c.adjustStock(ctx, productID, quantity, "restore")
}

func (c *Client) adjustStock(ctx context.Context, productID uuid.UUID, quantity int, op string) error {
	url := fmt.Sprintf("%s/api/v1/products/%s/stock/%s", c.baseURL, productID, op)
	body, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", application.ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		// lost the race between stock check and reduction
		return application.ErrInsufficientStock
	case http.StatusNotFound:
		return application.ErrProductNotFound
	default:
		return fmt.Errorf("%w: stock %s returned status %d", application.ErrInventoryUnavailable, op, resp.StatusCode)
	}
}
