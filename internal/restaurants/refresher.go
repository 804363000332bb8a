package restaurants

import (
	"context"
	"fmt"

	"github.com/mealkart/cartsync-backend/internal/cartview"
	"github.com/mealkart/cartsync-backend/internal/catalog"
	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/pkg/logger"
)

// FailedLookupName replaces a stale placeholder when the repair fetch itself
// fails; the row stays visible but is explicitly marked.
const FailedLookupName = "Unavailable dish"

// DishFetcher is the catalog slice used for the repair pass.
type DishFetcher interface {
	GetDish(ctx context.Context, dishID int64) (*catalog.DishSnapshot, error)
}

// Refresher runs the secondary enrichment pass that repairs missing or stale
// merchant identity on already-enriched cart items.
type Refresher struct {
	dishes DishFetcher
	guest  *gueststore.SessionStore
	logg   *logger.Logger
}

// NewRefresher wires the repair pass for one session.
func NewRefresher(dishes DishFetcher, guest *gueststore.SessionStore, logg *logger.Logger) (*Refresher, error) {
	if dishes == nil {
		return nil, fmt.Errorf("dish fetcher required")
	}
	if guest == nil {
		return nil, fmt.Errorf("guest store required")
	}
	return &Refresher{dishes: dishes, guest: guest, logg: logg}, nil
}

func needsRefresh(item cartview.Item) bool {
	return item.RestaurantID == cartview.UnknownRestaurantID ||
		item.RestaurantName == "" ||
		item.RestaurantName == cartview.UnknownRestaurantName
}

// Run repairs flagged items in place and returns the updated slice plus
// whether anything changed. It is a no-op when nothing is flagged. Per-item
// faults are absorbed: a failed lookup marks the row instead of erroring.
// Resolved items are written back into the guest cache unless the session is
// authenticated, whose truth lives server-side.
func (r *Refresher) Run(ctx context.Context, items []cartview.Item, authenticated bool) ([]cartview.Item, bool) {
	flagged := 0
	for _, item := range items {
		if needsRefresh(item) {
			flagged++
		}
	}
	if flagged == 0 {
		return items, false
	}

	var cacheBatch []gueststore.CacheEntry
	changed := false
	for i := range items {
		if !needsRefresh(items[i]) {
			continue
		}

		snap, err := r.dishes.GetDish(ctx, items[i].DishID)
		if err != nil || snap == nil {
			if err != nil && r.logg != nil {
				r.logg.Error(r.logg.WithDishID(ctx, items[i].DishID), "restaurant identity refresh failed", err)
			}
			// Never silently retain a stale placeholder.
			if items[i].Name != FailedLookupName {
				items[i].Name = FailedLookupName
				changed = true
			}
			continue
		}

		items[i].Name = snap.Name
		items[i].Image = snap.Image
		items[i].UnitPrice = snap.UnitPrice()
		if snap.RestaurantID != 0 {
			items[i].RestaurantID = snap.RestaurantID
		}
		if snap.RestaurantName != "" {
			items[i].RestaurantName = snap.RestaurantName
		}
		changed = true

		if !authenticated {
			cacheBatch = append(cacheBatch, gueststore.CacheEntry{
				DishID: items[i].DishID,
				Info: gueststore.DishInfo{
					Name:           snap.Name,
					Image:          snap.Image,
					Price:          snap.UnitPrice(),
					RestaurantID:   snap.RestaurantID,
					RestaurantName: snap.RestaurantName,
				},
			})
		}
	}

	if len(cacheBatch) > 0 {
		if err := r.guest.UpdateCache(ctx, cacheBatch); err != nil && r.logg != nil {
			r.logg.Error(ctx, "writing refreshed identity to guest cache failed", err)
		}
	}
	return items, changed
}
