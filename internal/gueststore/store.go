package gueststore

import (
	"context"
	"time"

	"github.com/mealkart/cartsync-backend/pkg/signal"
	"github.com/shopspring/decimal"
)

// DefaultCacheTTL is how long a cached display snapshot stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// Line is one raw guest cart entry: the (dish, quantity) pairing plus the
// optional cached display snapshot. A persisted line always has Quantity >= 1.
type Line struct {
	DishID   int64            `json:"dishId"`
	Quantity int              `json:"quantity"`
	Name     *string          `json:"name,omitempty"`
	Image    *string          `json:"image,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	CachedAt *time.Time       `json:"cachedAt,omitempty"`

	RestaurantID   *int64  `json:"restaurantId,omitempty"`
	RestaurantName *string `json:"restaurantName,omitempty"`
}

// HasCompleteCache reports whether the display snapshot can render the line
// without a catalog fetch.
func (l Line) HasCompleteCache() bool {
	return l.CachedAt != nil && l.Name != nil && l.Image != nil && l.Price != nil
}

// NeedsRefresh flags lines with no cache, incomplete fields, or a snapshot
// older than ttl.
func (l Line) NeedsRefresh(now time.Time, ttl time.Duration) bool {
	if !l.HasCompleteCache() {
		return true
	}
	return now.Sub(*l.CachedAt) > ttl
}

// DishInfo is the display snapshot written alongside a line.
type DishInfo struct {
	Name           string
	Image          string
	Price          decimal.Decimal
	RestaurantID   int64
	RestaurantName string
}

// CacheEntry addresses one line in a bulk cache overwrite.
type CacheEntry struct {
	DishID int64
	Info   DishInfo
}

// SyncPair is the minimal payload migrated to the server cart at login.
type SyncPair struct {
	DishID   int64 `json:"dishId"`
	Quantity int   `json:"quantity"`
}

// Store is the durable guest cart. GetCart never fails: corrupt or missing
// storage degrades to an empty list and is logged by the implementation.
type Store interface {
	AddItem(ctx context.Context, sessionID string, dishID int64, qty int, info *DishInfo) error
	UpdateItem(ctx context.Context, sessionID string, dishID int64, qty int) error
	RemoveItem(ctx context.Context, sessionID string, dishID int64) error
	GetCart(ctx context.Context, sessionID string) ([]Line, error)
	ClearCart(ctx context.Context, sessionID string) error
	ItemsNeedingRefresh(ctx context.Context, sessionID string) ([]Line, error)
	UpdateCache(ctx context.Context, sessionID string, batch []CacheEntry) error
	PrepareForSync(ctx context.Context, sessionID string) ([]SyncPair, error)
}

// SessionStore binds a Store to one session and that session's change bus so
// every successful mutation emits the payload-less cart-changed signal.
type SessionStore struct {
	store     Store
	sessionID string
	bus       *signal.Bus
}

// Bind wraps the shared store for a single session.
func Bind(store Store, sessionID string, bus *signal.Bus) *SessionStore {
	return &SessionStore{store: store, sessionID: sessionID, bus: bus}
}

func (s *SessionStore) notify() {
	if s.bus != nil {
		s.bus.Publish()
	}
}

func (s *SessionStore) AddItem(ctx context.Context, dishID int64, qty int, info *DishInfo) error {
	if err := s.store.AddItem(ctx, s.sessionID, dishID, qty, info); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *SessionStore) UpdateItem(ctx context.Context, dishID int64, qty int) error {
	if err := s.store.UpdateItem(ctx, s.sessionID, dishID, qty); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *SessionStore) RemoveItem(ctx context.Context, dishID int64) error {
	if err := s.store.RemoveItem(ctx, s.sessionID, dishID); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *SessionStore) GetCart(ctx context.Context) ([]Line, error) {
	return s.store.GetCart(ctx, s.sessionID)
}

func (s *SessionStore) ClearCart(ctx context.Context) error {
	if err := s.store.ClearCart(ctx, s.sessionID); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *SessionStore) ItemsNeedingRefresh(ctx context.Context) ([]Line, error) {
	return s.store.ItemsNeedingRefresh(ctx, s.sessionID)
}

// UpdateCache overwrites display fields without touching quantities; it is a
// background repair, so it does not notify.
func (s *SessionStore) UpdateCache(ctx context.Context, batch []CacheEntry) error {
	return s.store.UpdateCache(ctx, s.sessionID, batch)
}

func (s *SessionStore) PrepareForSync(ctx context.Context) ([]SyncPair, error) {
	return s.store.PrepareForSync(ctx, s.sessionID)
}

func applyInfo(line *Line, info *DishInfo, now time.Time) {
	if info == nil {
		return
	}
	name := info.Name
	image := info.Image
	price := info.Price
	cachedAt := now
	line.Name = &name
	line.Image = &image
	line.Price = &price
	line.CachedAt = &cachedAt
	if info.RestaurantID != 0 {
		rid := info.RestaurantID
		line.RestaurantID = &rid
	}
	if info.RestaurantName != "" {
		rname := info.RestaurantName
		line.RestaurantName = &rname
	}
}

// mergeAdd applies add semantics to an in-memory line list: merge quantity when
// the dish exists (cache refreshed only when info is supplied), append
// otherwise. No upper clamp here; the edit layer enforces the ceiling.
func mergeAdd(lines []Line, dishID int64, qty int, info *DishInfo, now time.Time) []Line {
	for i := range lines {
		if lines[i].DishID == dishID {
			lines[i].Quantity += qty
			applyInfo(&lines[i], info, now)
			return lines
		}
	}
	added := Line{DishID: dishID, Quantity: qty}
	applyInfo(&added, info, now)
	return append(lines, added)
}

func removeLine(lines []Line, dishID int64) []Line {
	out := lines[:0]
	for _, line := range lines {
		if line.DishID != dishID {
			out = append(out, line)
		}
	}
	return out
}

func applyCacheBatch(lines []Line, batch []CacheEntry, now time.Time) []Line {
	byDish := make(map[int64]DishInfo, len(batch))
	for _, entry := range batch {
		byDish[entry.DishID] = entry.Info
	}
	for i := range lines {
		if info, ok := byDish[lines[i].DishID]; ok {
			applyInfo(&lines[i], &info, now)
		}
	}
	return lines
}

func filterNeedingRefresh(lines []Line, now time.Time, ttl time.Duration) []Line {
	var out []Line
	for _, line := range lines {
		if line.NeedsRefresh(now, ttl) {
			out = append(out, line)
		}
	}
	return out
}

func toSyncPairs(lines []Line) []SyncPair {
	pairs := make([]SyncPair, 0, len(lines))
	for _, line := range lines {
		pairs = append(pairs, SyncPair{DishID: line.DishID, Quantity: line.Quantity})
	}
	return pairs
}
