package engine

import (
	"context"
	"fmt"

	"github.com/mealkart/cartsync-backend/internal/cartview"
	"github.com/mealkart/cartsync-backend/internal/catalog"
	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/internal/mutation"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/internal/restaurants"
	"github.com/mealkart/cartsync-backend/internal/selection"
	"github.com/mealkart/cartsync-backend/pkg/auth"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/mealkart/cartsync-backend/pkg/metrics"
	"github.com/mealkart/cartsync-backend/pkg/signal"
)

// Engine is the full cart machinery bound to one session: change bus, guest
// store binding, read-model builder, mutation coordinator, selection set and
// the restaurant-identity repair pass.
type Engine struct {
	Session     auth.Session
	Bus         *signal.Bus
	Guest       *gueststore.SessionStore
	Builder     *cartview.Builder
	Coordinator *mutation.Coordinator
	Selection   *selection.Set
	Refresher   *restaurants.Refresher

	dishes *catalog.Client
	remote *remotecart.Client
	logg   *logger.Logger
	cancel context.CancelFunc
}

// View recomputes the unified cart, runs the identity repair pass, and keeps
// the selection set and per-line machines aligned with what the UI will see.
func (e *Engine) View(ctx context.Context) (cartview.CartResponse, error) {
	resp, err := e.Builder.Refetch(ctx)
	if err != nil {
		return resp, err
	}

	items, changed := e.Refresher.Run(ctx, resp.Items, e.Session.Authenticated())
	if changed {
		resp = cartview.Finalize(items)
		e.Builder.Replace(resp)
	}

	e.Selection.Reconcile(resp.Items)
	for _, item := range resp.Items {
		e.Coordinator.Seed(item.DishID, item.Quantity)
	}
	return resp, nil
}

// Add puts qty of a dish into the session's cart. The dish must resolve in
// the catalog; a vanished dish blocks the add with a notice instead of
// planting an unrenderable line. Quantity is clamped silently.
func (e *Engine) Add(ctx context.Context, dishID int64, qty int) error {
	if qty < 1 {
		qty = 1
	}

	snap, err := e.dishes.GetDish(ctx, dishID)
	if err != nil {
		return err
	}
	if snap == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "dish is no longer available")
	}

	if e.Session.Authenticated() {
		if err := e.remote.AddItem(ctx, e.Session.Token, dishID, qty); err != nil {
			return err
		}
		e.Bus.Publish()
		return nil
	}

	info := &gueststore.DishInfo{
		Name:           snap.Name,
		Image:          snap.Image,
		Price:          snap.UnitPrice(),
		RestaurantID:   snap.RestaurantID,
		RestaurantName: snap.RestaurantName,
	}
	return e.Guest.AddItem(ctx, dishID, qty, info)
}

// Close stops the engine's background listener.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Registry lazily builds and caches one Engine per session key.
type Registry struct {
	store    gueststore.Store
	dishes   *catalog.Client
	remote   *remotecart.Client
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	mutOpts  mutation.Options
	baseCtx  context.Context
	registry *keyedRegistry
}

// NewRegistry wires the shared dependencies every engine draws from.
func NewRegistry(
	baseCtx context.Context,
	store gueststore.Store,
	dishes *catalog.Client,
	remote *remotecart.Client,
	logg *logger.Logger,
	cartMetrics *metrics.CartMetrics,
	mutOpts mutation.Options,
) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if dishes == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cart client required")
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Registry{
		store:    store,
		dishes:   dishes,
		remote:   remote,
		logg:     logg,
		metrics:  cartMetrics,
		mutOpts:  mutOpts,
		baseCtx:  baseCtx,
		registry: newKeyedRegistry(),
	}, nil
}

// Engine returns the session's engine, building it on first use.
func (r *Registry) Engine(session auth.Session) (*Engine, error) {
	return r.registry.getOrCreate(session.Key(), func() (*Engine, error) {
		return r.build(session)
	})
}

// GuestStoreFor binds the shared store to an arbitrary session id. Sync uses
// it to drain the pre-login guest cart.
func (r *Registry) GuestStoreFor(sessionID string, bus *signal.Bus) *gueststore.SessionStore {
	return gueststore.Bind(r.store, sessionID, bus)
}

func (r *Registry) build(session auth.Session) (*Engine, error) {
	bus := signal.NewBus()
	guest := gueststore.Bind(r.store, session.ID, bus)

	builder, err := cartview.NewBuilder(session, guest, r.dishes, r.remote, r.logg, r.metrics)
	if err != nil {
		return nil, err
	}

	refresher, err := restaurants.NewRefresher(r.dishes, guest, r.logg)
	if err != nil {
		return nil, err
	}

	sel := selection.NewSet()

	var writer mutation.Writer
	if session.Authenticated() {
		writer, err = mutation.NewRemoteWriter(r.remote, session.Token)
	} else {
		writer, err = mutation.NewGuestWriter(guest)
	}
	if err != nil {
		return nil, err
	}

	engineCtx, cancel := context.WithCancel(r.baseCtx)
	coordinator, err := mutation.NewCoordinator(engineCtx, writer, bus, sel, r.logg, r.metrics, r.mutOpts)
	if err != nil {
		cancel()
		return nil, err
	}

	eng := &Engine{
		Session:     session,
		Bus:         bus,
		Guest:       guest,
		Builder:     builder,
		Coordinator: coordinator,
		Selection:   sel,
		Refresher:   refresher,
		dishes:      r.dishes,
		remote:      r.remote,
		logg:        r.logg,
		cancel:      cancel,
	}

	// Convergence without a push channel: every change signal triggers a full
	// recompute of this session's read model.
	builder.Listen(engineCtx, bus)
	return eng, nil
}
