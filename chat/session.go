package chat

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/models"
	"github.com/karthikraju391/pairchat/store"
)

// Subscriber is the read side of the message store.
type Subscriber interface {
	Subscribe(ctx context.Context, key models.ConversationKey, onAdded func(models.Message)) (*store.Subscription, error)
}

// Backoff bounds the delay between re-subscribe attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: 250 * time.Millisecond, Max: 10 * time.Second}

// Session keeps a Conversation fed by a live subscription for as long as
// the view is open.
type Session struct {
	conv       *Conversation
	subscriber Subscriber
	loop       *Loop
	backoff    Backoff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession binds conv to subscriber. conv must have been created with
// WithLoop(loop), and loop must be running.
func NewSession(conv *Conversation, subscriber Subscriber, loop *Loop) *Session {
	return &Session{conv: conv, subscriber: subscriber, loop: loop, backoff: DefaultBackoff}
}

func (s *Session) Conversation() *Conversation { return s.conv }

// Open subscribes to the conversation. A failure here is returned; later
// failures are reported to the presenter and retried with backoff.
func (s *Session) Open(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	sub, err := s.subscribe()
	if err != nil {
		s.cancel()
		return err
	}
	s.wg.Add(1)
	go s.watch(sub)
	return nil
}

func (s *Session) subscribe() (*store.Subscription, error) {
	return s.subscriber.Subscribe(s.ctx, s.conv.Key(), func(m models.Message) {
		s.loop.Post(func() { s.conv.OnMessageArrived(m) })
	})
}

func (s *Session) watch(sub *store.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			_ = sub.Close()
			return
		case <-sub.Done():
		}
		err := sub.Err()
		if err == nil || s.ctx.Err() != nil {
			return
		}
		logger.Warn("subscription_lost", "conversation", s.conv.Key().String(), "error", err)
		s.loop.Post(func() { s.conv.Report(err) })

		next, ok := s.resubscribe()
		if !ok {
			return
		}
		sub = next
	}
}

func (s *Session) resubscribe() (*store.Subscription, bool) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.backoff.Initial
	b.MaxInterval = s.backoff.Max
	b.MaxElapsedTime = 0

	sub, err := backoff.RetryNotifyWithData[*store.Subscription](s.subscribe, backoff.WithContext(b, s.ctx),
		func(err error, next time.Duration) {
			logger.Warn("resubscribe_failed", "conversation", s.conv.Key().String(), "retry_in", next, "error", err)
		})
	if err != nil || s.ctx.Err() != nil {
		if sub != nil {
			_ = sub.Close()
		}
		return nil, false
	}
	logger.Info("subscription_restored", "conversation", s.conv.Key().String())
	return sub, true
}

// Compose queues text for ComposeAndSend on the owning goroutine.
func (s *Session) Compose(text string) bool {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.loop.Post(func() { s.conv.ComposeAndSend(ctx, text) })
}

// Close ends the subscription and waits for the watcher to exit.
func (s *Session) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}
