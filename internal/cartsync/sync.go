package cartsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/pkg/logger"
	"github.com/mealkart/cartsync-backend/pkg/metrics"
	"go.uber.org/multierr"
)

// RemoteAdder is the remote cart slice sync needs.
type RemoteAdder interface {
	AddItem(ctx context.Context, token string, dishID int64, quantity int) error
}

// Report summarizes one migration run.
type Report struct {
	Attempted int
	Failed    int
}

// Syncer migrates a guest's local cart into the server cart at the moment of
// authentication. One shot and best effort: every line is attempted, failures
// are logged, and the local store is cleared once all calls settle.
type Syncer struct {
	remote        RemoteAdder
	logg          *logger.Logger
	metrics       *metrics.CartMetrics
	maxConcurrent int
}

// NewSyncer builds the migrator.
func NewSyncer(remote RemoteAdder, logg *logger.Logger, cartMetrics *metrics.CartMetrics, maxConcurrent int) (*Syncer, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote cart client required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Syncer{remote: remote, logg: logg, metrics: cartMetrics, maxConcurrent: maxConcurrent}, nil
}

// Run migrates the guest store bound to the session into the server cart.
// An empty store is a no-op. All add calls are issued concurrently and the
// local store is cleared after every call settles, success or failure; a
// partial failure still clears (logged, never surfaced to the user).
func (s *Syncer) Run(ctx context.Context, guest *gueststore.SessionStore, token string) (Report, error) {
	if guest == nil {
		return Report{}, fmt.Errorf("guest store required")
	}
	if token == "" {
		return Report{}, fmt.Errorf("session token required")
	}

	pairs, err := guest.PrepareForSync(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(pairs) == 0 {
		return Report{}, nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	sem := make(chan struct{}, s.maxConcurrent)

	failed := 0
	for _, pair := range pairs {
		wg.Add(1)
		sem <- struct{}{}
		go func(pair gueststore.SyncPair) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.remote.AddItem(ctx, token, pair.DishID, pair.Quantity); err != nil {
				mu.Lock()
				failed++
				errs = multierr.Append(errs, fmt.Errorf("dish %d: %w", pair.DishID, err))
				mu.Unlock()
				s.metrics.IncSyncOutcome("failed")
				return
			}
			s.metrics.IncSyncOutcome("ok")
		}(pair)
	}
	wg.Wait()

	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "some cart lines failed to migrate", errs)
	}

	if err := guest.ClearCart(ctx); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "clearing guest cart after sync failed", err)
		}
		return Report{Attempted: len(pairs), Failed: failed}, err
	}

	return Report{Attempted: len(pairs), Failed: failed}, nil
}
