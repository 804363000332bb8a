package cartview

import (
	"github.com/shopspring/decimal"
)

// Sentinels for unresolved merchant identity on a cart line.
const (
	UnknownRestaurantID   int64 = -1
	UnknownRestaurantName       = "Unknown"
)

// Item is one enriched cart row: the raw line merged with its authoritative
// display snapshot. Recomputed on every read, never stored.
type Item struct {
	DishID         int64           `json:"dishId"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
}

// HasKnownRestaurant reports whether merchant identity resolved.
func (i Item) HasKnownRestaurant() bool {
	return i.RestaurantID != UnknownRestaurantID && i.RestaurantName != UnknownRestaurantName
}

// CartResponse is the unified cart view served to the UI regardless of auth
// mode. TotalPrice is always the sum of item subtotals and TotalItems the sum
// of quantities.
type CartResponse struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// clone returns a copy whose Items slice is independent of the receiver's.
func (c CartResponse) clone() CartResponse {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// Empty returns the canonical empty cart view.
func Empty() CartResponse {
	return CartResponse{Items: []Item{}, TotalPrice: decimal.Zero}
}

// Finalize recomputes per-line subtotals and the cart totals so the published
// invariants hold no matter where the lines came from.
func Finalize(items []Item) CartResponse {
	total := decimal.Zero
	count := 0
	for i := range items {
		items[i].Subtotal = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(items[i].Subtotal)
		count += items[i].Quantity
	}
	if items == nil {
		items = []Item{}
	}
	return CartResponse{Items: items, TotalItems: count, TotalPrice: total}
}
