package cartview

import (
	"context"
	"fmt"
	"sync"

	"github.com/mealkart/cartsync-backend/internal/catalog"
	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/pkg/auth"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/mealkart/cartsync-backend/pkg/metrics"
	"github.com/mealkart/cartsync-backend/pkg/signal"
)

// DishFetcher is the slice of the catalog client the builder needs.
type DishFetcher interface {
	GetDish(ctx context.Context, dishID int64) (*catalog.DishSnapshot, error)
	ImageOrigin() string
}

// RemoteReader is the slice of the remote cart client the builder needs.
type RemoteReader interface {
	GetCart(ctx context.Context, token string) (*remotecart.ServerCart, error)
}

// Snapshot is the read-model state the UI polls between change signals.
type Snapshot struct {
	Response CartResponse
	Loading  bool
	Err      error
}

// Builder produces the unified cart view for one session and keeps it
// converged by recomputing on every cart-changed signal.
type Builder struct {
	session auth.Session
	guest   *gueststore.SessionStore
	dishes  DishFetcher
	remote  RemoteReader
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	mu   sync.Mutex
	snap Snapshot
}

// NewBuilder wires a per-session builder. The guest store is required even for
// authenticated sessions: it stays the staging area until sync consumes it.
func NewBuilder(
	session auth.Session,
	guest *gueststore.SessionStore,
	dishes DishFetcher,
	remote RemoteReader,
	logg *logger.Logger,
	cartMetrics *metrics.CartMetrics,
) (*Builder, error) {
	if guest == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if dishes == nil {
		return nil, fmt.Errorf("dish fetcher required")
	}
	if session.Authenticated() && remote == nil {
		return nil, fmt.Errorf("remote cart reader required for authenticated sessions")
	}
	return &Builder{
		session: session,
		guest:   guest,
		dishes:  dishes,
		remote:  remote,
		logg:    logg,
		metrics: cartMetrics,
		snap:    Snapshot{Response: Empty()},
	}, nil
}

// Build computes the current cart view without touching the cached snapshot.
func (b *Builder) Build(ctx context.Context) (CartResponse, error) {
	if b.session.Authenticated() {
		return b.buildAuthenticated(ctx)
	}
	return b.buildGuest(ctx)
}

// Refetch recomputes the view and replaces the cached snapshot. Every
// mutation and every change signal funnels through here.
func (b *Builder) Refetch(ctx context.Context) (CartResponse, error) {
	b.mu.Lock()
	b.snap.Loading = true
	b.mu.Unlock()

	resp, err := b.Build(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Loading = false
	b.snap.Err = err
	if err == nil {
		b.snap.Response = resp
	}
	// Callers get a detached copy; the identity repair pass rewrites items in
	// place and must not reach into the cached snapshot.
	return b.snap.Response.clone(), err
}

// Replace swaps the cached response for a finalized rebuild of the same cart.
// The repair pass stores its result here so the snapshot's totals stay equal
// to the sum of its item subtotals.
func (b *Builder) Replace(resp CartResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Response = resp
}

// Snapshot returns the last computed view plus loading/error state.
func (b *Builder) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.snap
	snap.Response = snap.Response.clone()
	return snap
}

// Listen refetches on every cart-changed tick until ctx is done. Signals are
// at-least-once; each tick triggers a full idempotent recompute.
func (b *Builder) Listen(ctx context.Context, bus *signal.Bus) {
	ch, cancel := bus.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if _, err := b.Refetch(ctx); err != nil && b.logg != nil {
					b.logg.Error(ctx, "cart refetch failed", err)
				}
			}
		}
	}()
}

func (b *Builder) buildAuthenticated(ctx context.Context) (CartResponse, error) {
	cart, err := b.remote.GetCart(ctx, b.session.Token)
	if err != nil {
		return Empty(), err
	}

	items := make([]Item, 0, len(cart.Items))
	for _, line := range cart.Items {
		restaurantID := line.RestaurantID
		restaurantName := line.RestaurantName
		if restaurantID == 0 {
			restaurantID = UnknownRestaurantID
		}
		if restaurantName == "" {
			restaurantName = UnknownRestaurantName
		}
		items = append(items, Item{
			DishID: line.DishID,
			Name:   line.Name,
			// Server-sourced paths can be relative too; same rule as guest
			// enrichment.
			Image:          catalog.AbsoluteImageURL(b.dishes.ImageOrigin(), line.Image),
			UnitPrice:      line.Price,
			Quantity:       line.Quantity,
			RestaurantID:   restaurantID,
			RestaurantName: restaurantName,
		})
	}
	return Finalize(items), nil
}

func (b *Builder) buildGuest(ctx context.Context) (CartResponse, error) {
	lines, err := b.guest.GetCart(ctx)
	if err != nil {
		return Empty(), err
	}
	if len(lines) == 0 {
		return Empty(), nil
	}

	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		snap, err := b.dishes.GetDish(ctx, line.DishID)
		if err != nil {
			return Empty(), err
		}
		if snap == nil {
			// Unresolvable dish: dropped, never rendered as a broken row.
			b.metrics.IncEnrichmentDrop()
			if b.logg != nil {
				b.logg.Warn(b.logg.WithDishID(ctx, line.DishID), "dropping unresolvable cart line")
			}
			continue
		}

		restaurantID := snap.RestaurantID
		restaurantName := snap.RestaurantName
		if restaurantID == 0 {
			restaurantID = UnknownRestaurantID
		}
		if restaurantName == "" {
			restaurantName = UnknownRestaurantName
		}
		items = append(items, Item{
			DishID:         line.DishID,
			Name:           snap.Name,
			Image:          snap.Image,
			UnitPrice:      snap.UnitPrice(),
			Quantity:       line.Quantity,
			RestaurantID:   restaurantID,
			RestaurantName: restaurantName,
		})
	}
	return Finalize(items), nil
}
