package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/mealkart/cartsync-backend/pkg/metrics"
	"github.com/mealkart/cartsync-backend/pkg/signal"
)

// State is the per-line lifecycle position.
type State int

const (
	StateIdle State = iota
	StatePendingDebounce
	StateInFlight
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingDebounce:
		return "pending_debounce"
	case StateInFlight:
		return "in_flight"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Writer dispatches the actual quantity/removal writes. Guest sessions write
// to the guest store, authenticated sessions to the remote cart API.
type Writer interface {
	UpdateQuantity(ctx context.Context, dishID int64, qty int) error
	Remove(ctx context.Context, dishID int64) error
}

// SelectionPruner drops a removed dish from the checkout selection.
type SelectionPruner interface {
	Prune(dishID int64)
}

// Options tunes the coordinator. Zero values fall back to the defaults the UI
// was built around.
type Options struct {
	DebounceWindow time.Duration
	MinQuantity    int
	MaxQuantity    int
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.MinQuantity <= 0 {
		o.MinQuantity = 1
	}
	if o.MaxQuantity <= 0 {
		o.MaxQuantity = 999
	}
	return o
}

// line is one dish's state machine.
type line struct {
	dishID   int64
	state    State
	quantity int // optimistic value the UI shows
	lastGood int // last server/store-confirmed value
	seq      uint64
	timer    *time.Timer
	burstAt  time.Time
	confirm  bool
	removing bool
	lastErr  error
}

// LineView is the UI-facing projection of one line's machine.
type LineView struct {
	DishID       int64
	State        State
	Quantity     int
	CanIncrement bool
	CanDecrement bool
	ConfirmOpen  bool
	LastError    string
}

// Coordinator owns the per-line debounced mutation state machines for one
// session. A burst of edits arms a single shared trailing timer per line; only
// the last value is dispatched. Each dispatched write carries a sequence
// number so a late response can never overwrite a newer optimistic value.
type Coordinator struct {
	writer    Writer
	bus       *signal.Bus
	selection SelectionPruner
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	opts      Options

	// baseCtx outlives individual requests; debounce flushes fire from timers
	// that have no request context.
	baseCtx context.Context

	mu    sync.Mutex
	lines map[int64]*line

	now func() time.Time
}

// NewCoordinator builds the coordinator for one session.
func NewCoordinator(
	baseCtx context.Context,
	writer Writer,
	bus *signal.Bus,
	selection SelectionPruner,
	logg *logger.Logger,
	cartMetrics *metrics.CartMetrics,
	opts Options,
) (*Coordinator, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	if bus == nil {
		return nil, fmt.Errorf("signal bus required")
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Coordinator{
		writer:    writer,
		bus:       bus,
		selection: selection,
		logg:      logg,
		metrics:   cartMetrics,
		opts:      opts.withDefaults(),
		baseCtx:   baseCtx,
		lines:     map[int64]*line{},
		now:       time.Now,
	}, nil
}

// Seed aligns a line's known-good quantity with the read model. Called after
// every refetch; it never disturbs a line that is mid-edit.
func (c *Coordinator) Seed(dishID int64, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ln, ok := c.lines[dishID]
	if !ok {
		c.lines[dishID] = &line{dishID: dishID, quantity: qty, lastGood: qty}
		return
	}
	if ln.state == StateIdle || ln.state == StateReverted {
		ln.quantity = qty
		ln.lastGood = qty
		if ln.state == StateReverted {
			ln.state = StateIdle
		}
	}
}

// Forget drops line state the read model no longer knows about.
func (c *Coordinator) Forget(dishID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ln, ok := c.lines[dishID]; ok {
		if ln.timer != nil {
			ln.timer.Stop()
		}
		delete(c.lines, dishID)
	}
}

// Increment applies +1 optimistically and (re)arms the debounce timer. At the
// ceiling it is a no-op; the view reports the control disabled.
func (c *Coordinator) Increment(dishID int64) (LineView, error) {
	return c.bump(dishID, +1)
}

// Decrement applies -1 optimistically and (re)arms the debounce timer. At the
// floor it is a no-op.
func (c *Coordinator) Decrement(dishID int64) (LineView, error) {
	return c.bump(dishID, -1)
}

func (c *Coordinator) bump(dishID int64, delta int) (LineView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ln, ok := c.lines[dishID]
	if !ok {
		return LineView{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if ln.removing {
		return c.viewLocked(ln), nil
	}

	next := clamp(ln.quantity+delta, c.opts.MinQuantity, c.opts.MaxQuantity)
	if next == ln.quantity {
		return c.viewLocked(ln), nil
	}

	if ln.state != StatePendingDebounce {
		ln.burstAt = c.now()
	}
	ln.quantity = next
	ln.lastErr = nil
	ln.state = StatePendingDebounce
	c.armTimerLocked(ln)
	return c.viewLocked(ln), nil
}

// SetExact bypasses the timer: the typed value is clamped and, when it
// changed, written immediately. Used for direct numeric entry on blur/Enter.
func (c *Coordinator) SetExact(ctx context.Context, dishID int64, qty int) (LineView, error) {
	c.mu.Lock()
	ln, ok := c.lines[dishID]
	if !ok {
		c.mu.Unlock()
		return LineView{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if ln.removing {
		view := c.viewLocked(ln)
		c.mu.Unlock()
		return view, nil
	}

	next := clamp(qty, c.opts.MinQuantity, c.opts.MaxQuantity)
	if next == ln.quantity && ln.state == StateIdle {
		view := c.viewLocked(ln)
		c.mu.Unlock()
		return view, nil
	}

	if ln.timer != nil {
		ln.timer.Stop()
		ln.timer = nil
	}
	ln.quantity = next
	ln.lastErr = nil
	ln.state = StateInFlight
	ln.seq++
	seq := ln.seq
	c.mu.Unlock()

	err := c.writer.UpdateQuantity(ctx, dishID, next)
	c.settle(dishID, seq, next, "set", err)
	if err != nil {
		return c.View(dishID), pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "update quantity")
	}
	return c.View(dishID), nil
}

// armTimerLocked resets the line's single shared trailing timer.
func (c *Coordinator) armTimerLocked(ln *line) {
	if ln.timer != nil {
		ln.timer.Stop()
	}
	dishID := ln.dishID
	ln.timer = time.AfterFunc(c.opts.DebounceWindow, func() {
		c.flush(dishID)
	})
}

// flush dispatches the latest optimistic quantity for the line.
func (c *Coordinator) flush(dishID int64) {
	c.mu.Lock()
	ln, ok := c.lines[dishID]
	if !ok || ln.state != StatePendingDebounce || ln.removing {
		c.mu.Unlock()
		return
	}
	ln.state = StateInFlight
	ln.timer = nil
	ln.seq++
	seq := ln.seq
	qty := ln.quantity
	delay := c.now().Sub(ln.burstAt)
	c.mu.Unlock()

	c.metrics.ObserveFlushDelay("update", delay)

	err := c.writer.UpdateQuantity(c.baseCtx, dishID, qty)
	c.settle(dishID, seq, qty, "update", err)
}

// settle applies a write outcome. Outcomes older than the last scheduled
// sequence are discarded: the optimistic value they would overwrite belongs to
// a newer burst. A line that re-entered PendingDebounce while this write was
// in flight keeps its newer optimistic quantity and its armed timer; only the
// known-good baseline is advanced.
func (c *Coordinator) settle(dishID int64, seq uint64, sentQty int, op string, err error) {
	c.mu.Lock()
	ln, ok := c.lines[dishID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if seq < ln.seq {
		c.mu.Unlock()
		return
	}
	pendingEdit := ln.state == StatePendingDebounce

	if err != nil {
		if !pendingEdit {
			ln.state = StateReverted
			ln.quantity = ln.lastGood
			ln.lastErr = err
		}
		c.mu.Unlock()
		c.metrics.IncMutationFailure(op)
		if c.logg != nil {
			ctx := c.logg.WithDishID(c.baseCtx, dishID)
			if pendingEdit {
				c.logg.Error(ctx, "cart write failed, newer edit still pending", err)
			} else {
				c.logg.Error(ctx, "cart write failed, quantity reverted", err)
			}
		}
		return
	}

	ln.lastGood = sentQty
	if !pendingEdit {
		ln.state = StateIdle
		ln.lastErr = nil
	}
	c.mu.Unlock()

	c.metrics.IncMutationSuccess(op)
	c.bus.Publish()
}

// RequestRemoval opens the removal confirmation for a line. A second request
// while a confirmation is open or a deletion is in flight is ignored.
func (c *Coordinator) RequestRemoval(dishID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ln, ok := c.lines[dishID]
	if !ok {
		return false
	}
	if ln.confirm || ln.removing {
		return false
	}
	ln.confirm = true
	return true
}

// CancelRemoval closes an open confirmation.
func (c *Coordinator) CancelRemoval(dishID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ln, ok := c.lines[dishID]; ok {
		ln.confirm = false
	}
}

// ConfirmRemoval executes a confirmed removal. On success the line is dropped,
// the selection pruned, and the change signal published; on failure the row
// stays intact and the error surfaces to the caller.
func (c *Coordinator) ConfirmRemoval(ctx context.Context, dishID int64) error {
	c.mu.Lock()
	ln, ok := c.lines[dishID]
	if !ok {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if !ln.confirm {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "no removal pending for this line")
	}
	if ln.removing {
		c.mu.Unlock()
		return nil
	}
	ln.removing = true
	if ln.timer != nil {
		ln.timer.Stop()
		ln.timer = nil
	}
	c.mu.Unlock()

	err := c.writer.Remove(ctx, dishID)

	c.mu.Lock()
	ln, ok = c.lines[dishID]
	if ok {
		if err != nil {
			ln.removing = false
			ln.confirm = false
			ln.lastErr = err
		} else {
			delete(c.lines, dishID)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.IncMutationFailure("remove")
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "remove cart line")
	}

	c.metrics.IncMutationSuccess("remove")
	if c.selection != nil {
		c.selection.Prune(dishID)
	}
	c.bus.Publish()
	return nil
}

// View projects one line's current machine state.
func (c *Coordinator) View(dishID int64) LineView {
	c.mu.Lock()
	defer c.mu.Unlock()
	ln, ok := c.lines[dishID]
	if !ok {
		return LineView{DishID: dishID}
	}
	return c.viewLocked(ln)
}

func (c *Coordinator) viewLocked(ln *line) LineView {
	view := LineView{
		DishID:       ln.dishID,
		State:        ln.state,
		Quantity:     ln.quantity,
		CanIncrement: ln.quantity < c.opts.MaxQuantity && !ln.removing,
		CanDecrement: ln.quantity > c.opts.MinQuantity && !ln.removing,
		ConfirmOpen:  ln.confirm,
	}
	if ln.lastErr != nil {
		view.LastError = ln.lastErr.Error()
	}
	return view
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
