package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/metrics"
	"github.com/karthikraju391/pairchat/models"
)

// Subscription is a standing read on one conversation path.
type Subscription struct {
	key    models.ConversationKey
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *Subscription) run(ctx context.Context, history []models.Message, live <-chan models.Message, failures <-chan error, stop func(), onAdded func(models.Message)) {
	metrics.ActiveSubscriptions.Inc()
	defer func() {
		stop()
		metrics.ActiveSubscriptions.Dec()
		close(s.done)
	}()

	replayed := newReplaySet(len(history))
	for _, m := range history {
		if ctx.Err() != nil {
			return
		}
		replayed.add(m.ID)
		onAdded(m)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-failures:
			s.setErr(fmt.Errorf("%w: %s: %w", ErrSubscription, s.key, err))
			metrics.SubscriptionErrors.Inc()
			logger.Error("subscription_failed", "conversation", s.key.String(), "error", err)
			return
		case m := <-live:
			if replayed.consume(m.ID) {
				continue
			}
			onAdded(m)
		}
	}
}

// replaySet holds the ids delivered by replay that the live feed may still
// repeat. Each is repeated at most once, so it only shrinks after replay.
type replaySet map[string]struct{}

func newReplaySet(n int) replaySet { return make(replaySet, n) }

func (r replaySet) add(id string) { r[id] = struct{}{} }

// consume reports whether id was replayed, forgetting it.
func (r replaySet) consume(id string) bool {
	if _, ok := r[id]; !ok {
		return false
	}
	delete(r, id)
	return true
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Key is the conversation this subscription reads.
func (s *Subscription) Key() models.ConversationKey { return s.key }

// Done is closed once the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the reason the subscription stopped, wrapping
// ErrSubscription, or nil if it was closed or its context ended.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to exit.
// onAdded is never called after Close returns.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}
