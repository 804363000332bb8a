package engine

import "sync"

// keyedRegistry is a small lazy map guarding engine construction so two
// concurrent requests for the same session share one engine.
type keyedRegistry struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

func newKeyedRegistry() *keyedRegistry {
	return &keyedRegistry{engines: map[string]*Engine{}}
}

func (r *keyedRegistry) getOrCreate(key string, build func() (*Engine, error)) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if eng, ok := r.engines[key]; ok {
		return eng, nil
	}
	eng, err := build()
	if err != nil {
		return nil, err
	}
	r.engines[key] = eng
	return eng, nil
}

// drop removes an engine, closing its background listener.
func (r *keyedRegistry) drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if eng, ok := r.engines[key]; ok {
		eng.Close()
		delete(r.engines, key)
	}
}

// Drop discards a session's engine; used when a guest authenticates and the
// old guest-mode engine must not survive.
func (r *Registry) Drop(key string) {
	r.registry.drop(key)
}
