package cartview

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFinalizeRecomputesSubtotalsAndTotals(t *testing.T) {
	items := []Item{
		{DishID: 1, UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2},
		{DishID: 2, UnitPrice: decimal.RequireFromString("3.00"), Quantity: 3},
	}

	resp := Finalize(items)

	if !resp.Items[0].Subtotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("unexpected subtotal %s", resp.Items[0].Subtotal)
	}
	if resp.TotalItems != 5 {
		t.Fatalf("expected 5 total items got %d", resp.TotalItems)
	}
	if !resp.TotalPrice.Equal(decimal.RequireFromString("34.00")) {
		t.Fatalf("expected total 34.00 got %s", resp.TotalPrice)
	}
}

func TestFinalizeOverwritesStaleSubtotals(t *testing.T) {
	items := []Item{
		{DishID: 1, UnitPrice: decimal.NewFromInt(4), Quantity: 2, Subtotal: decimal.NewFromInt(999)},
	}
	resp := Finalize(items)
	if !resp.Items[0].Subtotal.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("stale subtotal survived: %s", resp.Items[0].Subtotal)
	}
}

func TestEmptyCart(t *testing.T) {
	resp := Empty()
	if len(resp.Items) != 0 || resp.TotalItems != 0 {
		t.Fatalf("unexpected empty cart %+v", resp)
	}
	if !resp.TotalPrice.Equal(decimal.Zero) {
		t.Fatalf("empty cart must have zero total, got %s", resp.TotalPrice)
	}
}

func TestHasKnownRestaurant(t *testing.T) {
	known := Item{RestaurantID: 4, RestaurantName: "Thai Garden"}
	if !known.HasKnownRestaurant() {
		t.Fatalf("expected known restaurant")
	}
	unknown := Item{RestaurantID: UnknownRestaurantID, RestaurantName: UnknownRestaurantName}
	if unknown.HasKnownRestaurant() {
		t.Fatalf("expected unknown restaurant")
	}
}
