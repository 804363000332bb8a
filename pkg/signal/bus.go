package signal

import "sync"

// Bus is the process-wide payload-less broadcast used as the cart-changed
// signal. Delivery is at-least-once from the subscriber's point of view:
// notifications published while a subscriber is mid-handle coalesce into one
// pending tick, so consumers must re-fetch idempotently instead of patching
// incrementally.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewBus returns an empty broadcast bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]chan struct{}{}}
}

// Subscribe registers a listener and returns its channel plus a cancel func.
// The channel has a single slot; see Publish for the coalescing rule.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish notifies every subscriber. A subscriber that already has a pending
// tick is skipped; it will re-fetch anyway.
func (b *Bus) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Len reports the current subscriber count.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
