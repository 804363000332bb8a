package cartsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mealkart/cartsync-backend/internal/gueststore"
)

type memStore struct {
	mu      sync.Mutex
	lines   map[string][]gueststore.Line
	cleared []string
}

func newMemStore() *memStore {
	return &memStore{lines: map[string][]gueststore.Line{}}
}

func (m *memStore) AddItem(ctx context.Context, sessionID string, dishID int64, qty int, info *gueststore.DishInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[sessionID] = append(m.lines[sessionID], gueststore.Line{DishID: dishID, Quantity: qty})
	return nil
}

func (m *memStore) UpdateItem(ctx context.Context, sessionID string, dishID int64, qty int) error {
	return nil
}

func (m *memStore) RemoveItem(ctx context.Context, sessionID string, dishID int64) error {
	return nil
}

func (m *memStore) GetCart(ctx context.Context, sessionID string) ([]gueststore.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[sessionID], nil
}

func (m *memStore) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, sessionID)
	m.cleared = append(m.cleared, sessionID)
	return nil
}

func (m *memStore) ItemsNeedingRefresh(ctx context.Context, sessionID string) ([]gueststore.Line, error) {
	return nil, nil
}

func (m *memStore) UpdateCache(ctx context.Context, sessionID string, batch []gueststore.CacheEntry) error {
	return nil
}

func (m *memStore) PrepareForSync(ctx context.Context, sessionID string) ([]gueststore.SyncPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make([]gueststore.SyncPair, 0, len(m.lines[sessionID]))
	for _, line := range m.lines[sessionID] {
		pairs = append(pairs, gueststore.SyncPair{DishID: line.DishID, Quantity: line.Quantity})
	}
	return pairs, nil
}

type fakeRemote struct {
	mu    sync.Mutex
	calls []gueststore.SyncPair
	fail  map[int64]error
}

func (f *fakeRemote) AddItem(ctx context.Context, token string, dishID int64, quantity int) error {
	f.mu.Lock()
	f.calls = append(f.calls, gueststore.SyncPair{DishID: dishID, Quantity: quantity})
	f.mu.Unlock()
	if f.fail != nil {
		if err, ok := f.fail[dishID]; ok {
			return err
		}
	}
	return nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newSyncTestEnv(t *testing.T, remote *fakeRemote) (*Syncer, *memStore, *gueststore.SessionStore) {
	t.Helper()
	syncer, err := NewSyncer(remote, nil, nil, 4)
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	store := newMemStore()
	return syncer, store, gueststore.Bind(store, "g1", nil)
}

func TestRunMigratesEveryLine(t *testing.T) {
	remote := &fakeRemote{}
	syncer, store, guest := newSyncTestEnv(t, remote)
	ctx := context.Background()

	store.AddItem(ctx, "g1", 1, 2, nil)
	store.AddItem(ctx, "g1", 2, 1, nil)
	store.AddItem(ctx, "g1", 3, 4, nil)

	report, err := syncer.Run(ctx, guest, "tok")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Attempted != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if remote.callCount() != 3 {
		t.Fatalf("every line must be attempted, got %d calls", remote.callCount())
	}

	lines, _ := store.GetCart(ctx, "g1")
	if len(lines) != 0 {
		t.Fatalf("local store must be cleared after sync")
	}
}

func TestRunPartialFailureStillClears(t *testing.T) {
	remote := &fakeRemote{fail: map[int64]error{2: errors.New("dish rejected")}}
	syncer, store, guest := newSyncTestEnv(t, remote)
	ctx := context.Background()

	store.AddItem(ctx, "g1", 1, 2, nil)
	store.AddItem(ctx, "g1", 2, 1, nil)

	report, err := syncer.Run(ctx, guest, "tok")
	if err != nil {
		t.Fatalf("partial failure must not surface: %v", err)
	}
	if report.Attempted != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if remote.callCount() != 2 {
		t.Fatalf("failure on one line must not stop the others, got %d calls", remote.callCount())
	}

	// The local cart clears regardless: sync is one shot.
	lines, _ := store.GetCart(ctx, "g1")
	if len(lines) != 0 {
		t.Fatalf("local store must be cleared even on partial failure")
	}
}

func TestRunEmptyCartIsNoop(t *testing.T) {
	remote := &fakeRemote{}
	syncer, store, guest := newSyncTestEnv(t, remote)

	report, err := syncer.Run(context.Background(), guest, "tok")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Attempted != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if remote.callCount() != 0 {
		t.Fatalf("empty cart must not call the server")
	}
	if len(store.cleared) != 0 {
		t.Fatalf("empty cart must not be cleared")
	}
}

func TestRunRequiresToken(t *testing.T) {
	remote := &fakeRemote{}
	syncer, _, guest := newSyncTestEnv(t, remote)

	if _, err := syncer.Run(context.Background(), guest, ""); err == nil {
		t.Fatalf("expected error without a session token")
	}
}
