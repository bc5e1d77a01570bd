package store

import (
	"context"
	"sync"

	"github.com/karthikraju391/pairchat/models"
)

// Notifier fans out committed appends to live subscribers of a
// conversation path. Payloads are JSON encoded models.Message values.
type Notifier interface {
	Publish(ctx context.Context, key models.ConversationKey, payload []byte) error
	// Subscribe registers onEvent for appends published under key. onErr is
	// called if the registration fails after it was established. The
	// returned stop function unregisters; it is safe to call more than once.
	Subscribe(key models.ConversationKey, onEvent func(payload []byte), onErr func(error)) (stop func(), err error)
}

// Hub is the in-process Notifier used when a single gateway owns the tree.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[uint64]func([]byte)
	next uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]func([]byte))}
}

func (h *Hub) Publish(ctx context.Context, key models.ConversationKey, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	targets := make([]func([]byte), 0, len(h.subs[key.Path()]))
	for _, fn := range h.subs[key.Path()] {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(payload)
	}
	return nil
}

func (h *Hub) Subscribe(key models.ConversationKey, onEvent func(payload []byte), _ func(error)) (func(), error) {
	path := key.Path()

	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[path] == nil {
		h.subs[path] = make(map[uint64]func([]byte))
	}
	h.subs[path][id] = onEvent
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[path], id)
			if len(h.subs[path]) == 0 {
				delete(h.subs, path)
			}
		})
	}, nil
}

// Subscribers reports how many registrations are open for key.
func (h *Hub) Subscribers(key models.ConversationKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key.Path()])
}
