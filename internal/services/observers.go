package services

import (
	"sort"
	"sync"
)

// Listener is called after every state-changing engine operation.
type Listener func()

type observerRegistry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{listeners: make(map[uint64]Listener)}
}

func (r *observerRegistry) add(l Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners[r.nextID] = l
	return r.nextID
}

func (r *observerRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// snapshot returns listeners in subscription order.
func (r *observerRegistry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.listeners[id])
	}
	return out
}

func (r *observerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}
