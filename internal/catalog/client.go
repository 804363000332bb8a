package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const responseBodyReadLimit int64 = 1 << 20

var errBaseURLRequired = errors.New("catalog base url is required")

// DishSnapshot is the authoritative display record for one dish. It is
// ephemeral: fetched per read, never persisted, and possibly stale the moment
// after the fetch.
type DishSnapshot struct {
	ID             int64
	Name           string
	Price          decimal.Decimal
	DiscountPrice  decimal.Decimal
	Image          string
	RestaurantID   int64
	RestaurantName string
}

// UnitPrice picks the effective price for totals: the discount price when one
// is set, the list price otherwise.
func (s DishSnapshot) UnitPrice() decimal.Decimal {
	if s.DiscountPrice.IsPositive() {
		return s.DiscountPrice
	}
	return s.Price
}

// Client fetches dish snapshots from the catalog service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	imageOrigin string
	logg        *logger.Logger
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

// NewClient builds the catalog client given the service base URL and the
// origin used to absolutize relative image paths.
func NewClient(baseURL, imageOrigin string, logg *logger.Logger, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     trimmed,
		imageOrigin: strings.TrimSpace(imageOrigin),
		logg:        logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ImageOrigin exposes the configured origin for callers re-normalizing
// server-sourced paths.
func (c *Client) ImageOrigin() string {
	return c.imageOrigin
}

type dishPayload struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	DiscountPrice  decimal.Decimal `json:"discountPrice"`
	Images         json.RawMessage `json:"images,omitempty"`
	Image          string          `json:"image,omitempty"`
	RestaurantID   int64           `json:"merchantId"`
	RestaurantName string          `json:"merchantName"`
}

// GetDish fetches and normalizes one dish snapshot. Not-found and malformed
// payloads return (nil, nil) so a single bad dish never fails a whole cart
// read; transport and server faults return a network error.
func (c *Client) GetDish(ctx context.Context, dishID int64) (*DishSnapshot, error) {
	endpoint := fmt.Sprintf("%s/dish/%d", c.baseURL, dishID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build dish request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "fetch dish")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeNetwork, fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read dish response")
	}

	var payload dishPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithDishID(ctx, dishID), "malformed dish payload, skipping")
		}
		return nil, nil
	}
	if payload.ID == 0 {
		payload.ID = dishID
	}
	if payload.Name == "" {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithDishID(ctx, dishID), "dish payload missing name, skipping")
		}
		return nil, nil
	}

	image := normalizeImage(payload.Images, payload.Image).primary()
	return &DishSnapshot{
		ID:             payload.ID,
		Name:           payload.Name,
		Price:          payload.Price,
		DiscountPrice:  payload.DiscountPrice,
		Image:          AbsoluteImageURL(c.imageOrigin, image),
		RestaurantID:   payload.RestaurantID,
		RestaurantName: payload.RestaurantName,
	}, nil
}
