package cart

import (
	"net/http"

	"github.com/mealkart/cartsync-backend/api/middleware"
	"github.com/mealkart/cartsync-backend/api/responses"
	"github.com/mealkart/cartsync-backend/api/validators"
	"github.com/mealkart/cartsync-backend/internal/cartsync"
	"github.com/mealkart/cartsync-backend/internal/engine"
	"github.com/mealkart/cartsync-backend/internal/mutation"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/internal/selection"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
)

// Handlers serves the cart surface. Every handler resolves the caller's engine
// from the session placed in the request context by the Session middleware.
type Handlers struct {
	registry *engine.Registry
	syncer   *cartsync.Syncer
	remote   *remotecart.Client
	logg     *logger.Logger
}

func NewHandlers(registry *engine.Registry, syncer *cartsync.Syncer, remote *remotecart.Client, logg *logger.Logger) *Handlers {
	return &Handlers{registry: registry, syncer: syncer, remote: remote, logg: logg}
}

func (h *Handlers) engineFor(r *http.Request) (*engine.Engine, error) {
	return h.registry.Engine(middleware.SessionFromContext(r.Context()))
}

// View serves the full grouped cart page.
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	resp, err := eng.View(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, toViewResponse(eng, resp))
}

// Count serves the header badge count. Authenticated sessions read the server
// count, guests sum the local store.
func (h *Handlers) Count(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	if eng.Session.Authenticated() {
		count, err := h.remote.Count(r.Context(), eng.Session.Token)
		if err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}
		responses.WriteSuccess(w, CountResponse{Count: count})
		return
	}

	lines, err := eng.Guest.GetCart(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	responses.WriteSuccess(w, CountResponse{Count: count})
}

// AddItem puts a dish in the cart.
func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	if err := eng.Add(r.Context(), req.DishID, req.Quantity); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"dishId": req.DishID})
}

// Increment bumps a line by one and reports its machine state. The write
// itself lands after the debounce window.
func (h *Handlers) Increment(w http.ResponseWriter, r *http.Request) {
	h.bump(w, r, +1)
}

// Decrement lowers a line by one.
func (h *Handlers) Decrement(w http.ResponseWriter, r *http.Request) {
	h.bump(w, r, -1)
}

func (h *Handlers) bump(w http.ResponseWriter, r *http.Request, delta int) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	var view mutation.LineView
	if delta > 0 {
		view, err = eng.Coordinator.Increment(dishID)
	} else {
		view, err = eng.Coordinator.Decrement(dishID)
	}
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, toLineResponse(view))
}

// SetQuantity writes a typed quantity immediately, bypassing the debounce.
func (h *Handlers) SetQuantity(w http.ResponseWriter, r *http.Request) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	var req SetQuantityRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	view, err := eng.Coordinator.SetExact(r.Context(), dishID, *req.Quantity)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, toLineResponse(view))
}

// RequestRemoval opens the removal confirmation for a line.
func (h *Handlers) RequestRemoval(w http.ResponseWriter, r *http.Request) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	eng.Coordinator.RequestRemoval(dishID)
	responses.WriteSuccess(w, toLineResponse(eng.Coordinator.View(dishID)))
}

// CancelRemoval closes an open confirmation without touching the line.
func (h *Handlers) CancelRemoval(w http.ResponseWriter, r *http.Request) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	eng.Coordinator.CancelRemoval(dishID)
	responses.WriteSuccess(w, toLineResponse(eng.Coordinator.View(dishID)))
}

// ConfirmRemoval deletes a line whose confirmation is open.
func (h *Handlers) ConfirmRemoval(w http.ResponseWriter, r *http.Request) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	if err := eng.Coordinator.ConfirmRemoval(r.Context(), dishID); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"dishId": dishID, "removed": true})
}

// ToggleItem flips one row's checkout checkbox.
func (h *Handlers) ToggleItem(w http.ResponseWriter, r *http.Request) {
	dishID, err := dishIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	eng.Selection.ToggleItem(dishID)
	h.writeSelection(w, r, eng)
}

// ToggleGroup flips one restaurant section's checkbox.
func (h *Handlers) ToggleGroup(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := restaurantIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	snap := eng.Builder.Snapshot()
	for _, group := range selection.GroupByRestaurant(snap.Response.Items) {
		if group.RestaurantID == restaurantID {
			eng.Selection.ToggleGroup(group)
			h.writeSelection(w, r, eng)
			return
		}
	}
	responses.WriteError(r.Context(), h.logg, w,
		pkgerrors.New(pkgerrors.CodeNotFound, "no cart items for this restaurant"))
}

// ToggleAll flips the select-all checkbox.
func (h *Handlers) ToggleAll(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	eng.Selection.ToggleAll(eng.Builder.Snapshot().Response.Items)
	h.writeSelection(w, r, eng)
}

func (h *Handlers) writeSelection(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
	items := eng.Builder.Snapshot().Response.Items
	responses.WriteSuccess(w, map[string]any{
		"selectedIds": eng.Selection.Snapshot(),
		"allChecked":  eng.Selection.AllChecked(items),
		"selected":    eng.Selection.SelectedTotals(items),
	})
}

// Checkout validates the checkout preconditions and reports the selected
// totals the order flow starts from. Order placement itself lives elsewhere.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	if err := eng.Selection.CheckoutPreconditions(eng.Session.Authenticated()); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	items := eng.Builder.Snapshot().Response.Items
	responses.WriteSuccess(w, map[string]any{
		"selectedIds": eng.Selection.Snapshot(),
		"totals":      eng.Selection.SelectedTotals(items),
	})
}

// Sync migrates the named guest cart into the caller's server cart. Requires
// an authenticated session; runs once, right after login.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	session := middleware.SessionFromContext(r.Context())
	if !session.Authenticated() {
		responses.WriteError(r.Context(), h.logg, w,
			pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to sync the cart"))
		return
	}

	eng, err := h.registry.Engine(session)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	guest := h.registry.GuestStoreFor(req.GuestSessionID, eng.Bus)
	report, err := h.syncer.Run(r.Context(), guest, session.Token)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}

	// The pre-login guest engine holds state for a cart that no longer exists.
	h.registry.Drop("guest:" + req.GuestSessionID)

	responses.WriteSuccess(w, SyncResponse{Attempted: report.Attempted, Failed: report.Failed})
}
