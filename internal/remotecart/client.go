package remotecart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const responseBodyReadLimit int64 = 1 << 20

var errBaseURLRequired = errors.New("remote cart base url is required")

// ServerLine is one line of the authoritative server cart.
type ServerLine struct {
	DishID         int64           `json:"dishId"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
}

// ServerCart mirrors the remote cart read payload.
type ServerCart struct {
	Items      []ServerLine    `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Client consumes the remote cart API on behalf of authenticated sessions.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the remote cart client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    trimmed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// GetCart reads the authenticated user's cart.
func (c *Client) GetCart(ctx context.Context, token string) (*ServerCart, error) {
	var cart ServerCart
	if err := c.do(ctx, token, http.MethodGet, "/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds quantity of a dish to the server cart.
func (c *Client) AddItem(ctx context.Context, token string, dishID int64, quantity int) error {
	payload := map[string]any{"dishId": dishID, "quantity": quantity}
	return c.do(ctx, token, http.MethodPost, "/cart/add", payload, nil)
}

// UpdateItem replaces the quantity of one dish.
func (c *Client) UpdateItem(ctx context.Context, token string, dishID int64, quantity int) error {
	payload := map[string]any{"quantity": quantity}
	return c.do(ctx, token, http.MethodPut, fmt.Sprintf("/cart/update/%d", dishID), payload, nil)
}

// RemoveItem deletes one dish from the server cart.
func (c *Client) RemoveItem(ctx context.Context, token string, dishID int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("/cart/remove/%d", dishID), nil, nil)
}

// ClearCart empties the server cart.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, token, http.MethodDelete, "/cart/clear", nil, nil)
}

// Count returns the server-side line count.
func (c *Client) Count(ctx context.Context, token string) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/cart/count", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cart request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "call remote cart")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart resource not found")
	case resp.StatusCode == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session expired")
	case resp.StatusCode >= 400:
		return pkgerrors.New(pkgerrors.CodeNetwork, fmt.Sprintf("remote cart returned status %d", resp.StatusCode))
	}

	if dest == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read cart response")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart response")
	}
	return nil
}
