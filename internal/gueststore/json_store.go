package gueststore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
)

// KV is the storage port behind JSONStore: one JSON-encoded line array under a
// well-known per-session key.
type KV interface {
	// Get returns the stored blob; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

// JSONStore keeps each session's cart as a single JSON array in a KV backend.
// Mutators fully replace-then-persist; there are no partial writes.
type JSONStore struct {
	kv       KV
	logg     *logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewJSONStore builds a Store over the provided KV backend.
func NewJSONStore(kv KV, logg *logger.Logger, cacheTTL time.Duration) (*JSONStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv backend required")
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &JSONStore{kv: kv, logg: logg, cacheTTL: cacheTTL, now: time.Now}, nil
}

// load reads the current line list, degrading corrupt or unreadable storage to
// an empty cart. It never returns an error.
func (s *JSONStore) load(ctx context.Context, sessionID string) []Line {
	raw, ok, err := s.kv.Get(ctx, sessionID)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "guest cart unreadable, degrading to empty")
		}
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "guest cart corrupt, degrading to empty")
		}
		return nil
	}

	// A line persisted with qty <= 0 is treated as removed.
	out := lines[:0]
	for _, line := range lines {
		if line.Quantity >= 1 {
			out = append(out, line)
		}
	}
	return out
}

func (s *JSONStore) persist(ctx context.Context, sessionID string, lines []Line) error {
	if len(lines) == 0 {
		if err := s.kv.Del(ctx, sessionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear guest cart")
		}
		return nil
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "encode guest cart")
	}
	if err := s.kv.Set(ctx, sessionID, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persist guest cart")
	}
	return nil
}

func (s *JSONStore) AddItem(ctx context.Context, sessionID string, dishID int64, qty int, info *DishInfo) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	lines := s.load(ctx, sessionID)
	lines = mergeAdd(lines, dishID, qty, info, s.now())
	return s.persist(ctx, sessionID, lines)
}

// UpdateItem replaces the quantity only; qty <= 0 delegates to RemoveItem.
func (s *JSONStore) UpdateItem(ctx context.Context, sessionID string, dishID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, sessionID, dishID)
	}
	lines := s.load(ctx, sessionID)
	for i := range lines {
		if lines[i].DishID == dishID {
			lines[i].Quantity = qty
			return s.persist(ctx, sessionID, lines)
		}
	}
	return nil
}

// RemoveItem deletes the line if present; removing an absent dish is a no-op.
func (s *JSONStore) RemoveItem(ctx context.Context, sessionID string, dishID int64) error {
	lines := s.load(ctx, sessionID)
	remaining := removeLine(lines, dishID)
	if len(remaining) == len(lines) {
		return nil
	}
	return s.persist(ctx, sessionID, remaining)
}

func (s *JSONStore) GetCart(ctx context.Context, sessionID string) ([]Line, error) {
	return s.load(ctx, sessionID), nil
}

func (s *JSONStore) ClearCart(ctx context.Context, sessionID string) error {
	return s.persist(ctx, sessionID, nil)
}

func (s *JSONStore) ItemsNeedingRefresh(ctx context.Context, sessionID string) ([]Line, error) {
	return filterNeedingRefresh(s.load(ctx, sessionID), s.now(), s.cacheTTL), nil
}

func (s *JSONStore) UpdateCache(ctx context.Context, sessionID string, batch []CacheEntry) error {
	if len(batch) == 0 {
		return nil
	}
	lines := s.load(ctx, sessionID)
	if len(lines) == 0 {
		return nil
	}
	return s.persist(ctx, sessionID, applyCacheBatch(lines, batch, s.now()))
}

func (s *JSONStore) PrepareForSync(ctx context.Context, sessionID string) ([]SyncPair, error) {
	return toSyncPairs(s.load(ctx, sessionID)), nil
}
