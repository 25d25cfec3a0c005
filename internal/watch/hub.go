// Package watch turns store writes into live, per-owner query results.
//
// Writers call Hub.Publish after a successful mutation. Readers use Query to
// receive a full result immediately and again after every publish for the
// same owner. Each delivery replaces the previous one.
package watch

import (
	"context"
	"log"
	"sync"
)

// Hub fans out change notifications keyed by owner id.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint]map[uint64]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint]map[uint64]chan struct{})}
}

// Publish notifies every subscriber of ownerID. It never blocks: a subscriber
// that has not consumed its previous notification keeps a single pending one.
func (h *Hub) Publish(ownerID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers for notifications about ownerID. The returned function
// unsubscribes and must be called once the caller is done.
func (h *Hub) Subscribe(ownerID uint) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)

	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]chan struct{})
	}
	h.subs[ownerID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// Query runs fetch once and then after every notification for ownerID,
// sending each result on the returned channel. The channel is closed when ctx
// is done. Failed fetches are logged and skipped.
func Query[T any](ctx context.Context, hub *Hub, ownerID uint, fetch func() (T, error)) <-chan T {
	out := make(chan T)
	changes, unsubscribe := hub.Subscribe(ownerID)

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			result, err := fetch()
			if err != nil {
				log.Printf("Live query for user %d failed: %v", ownerID, err)
			} else {
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
