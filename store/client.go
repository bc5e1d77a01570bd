package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/metrics"
	"github.com/karthikraju391/pairchat/models"
)

const defaultBuffer = 256

// Client is the message store client: it mints ids, performs the mirrored
// dual write and opens live subscriptions on a conversation path.
type Client struct {
	tree     Tree
	notifier Notifier
	buffer   int
	newID    func() (uuid.UUID, error)
	closed   atomic.Bool
}

type ClientOption func(*Client)

// WithBuffer bounds how many live appends a subscriber may lag behind
// before its subscription fails with ErrSlowSubscriber.
func WithBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

func NewClient(tree Tree, notifier Notifier, opts ...ClientOption) *Client {
	c := &Client{
		tree:     tree,
		notifier: notifier,
		buffer:   defaultBuffer,
		newID:    uuid.NewV7,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateID returns a new time-ordered message id. It fails with
// ErrIDGeneration when the tree cannot be reached.
func (c *Client) GenerateID(ctx context.Context) (string, error) {
	if c.closed.Load() {
		return "", fmt.Errorf("%w: %w", ErrIDGeneration, ErrClosed)
	}
	if err := c.tree.Ping(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIDGeneration, err)
	}
	id, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIDGeneration, err)
	}
	return id.String(), nil
}

// Send writes msg under both key and its mirror in a single atomic update.
// It does not retry; a failure is returned wrapped in ErrWriteFailed.
func (c *Client) Send(ctx context.Context, key models.ConversationKey, msg models.Message) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
	}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal message: %w", ErrWriteFailed, err)
	}

	mirror := key.Mirror()
	updates := map[string][]byte{
		key.MessagePath(msg.ID):    payload,
		mirror.MessagePath(msg.ID): payload,
	}
	if err := c.tree.Update(ctx, updates); err != nil {
		logger.Error("message_write_failed", "conversation", key.String(), "msg_id", msg.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	metrics.MessagesSent.Inc()
	logger.Info("message_sent", "conversation", key.String(), "msg_id", msg.ID)

	// the write is durable; a missed notification is recovered on replay
	c.publish(ctx, key, msg.ID, payload)
	if mirror != key {
		c.publish(ctx, mirror, msg.ID, payload)
	}
	return nil
}

func (c *Client) publish(ctx context.Context, key models.ConversationKey, id string, payload []byte) {
	if err := c.notifier.Publish(ctx, key, payload); err != nil {
		logger.Warn("message_publish_failed", "conversation", key.String(), "msg_id", id, "error", err)
	}
}

// History returns the messages stored under key in key order. Records
// that cannot be decoded are skipped.
func (c *Client) History(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var out []models.Message
	err := c.tree.Scan(ctx, key.Path()+"/", func(path string, value []byte) error {
		var m models.Message
		if err := json.Unmarshal(value, &m); err != nil {
			logger.Warn("message_decode_failed", "path", path, "error", err)
			return nil
		}
		if m.ID == "" {
			m.ID = path[strings.LastIndexByte(path, '/')+1:]
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", key.Path(), err)
	}
	return out, nil
}

// Subscribe opens a live subscription on key. onAdded is called, from a
// goroutine owned by the subscription, once for every stored message in key
// order and then for every message appended afterwards, until the
// subscription is closed, ctx is cancelled, or the live feed fails.
func (c *Client) Subscribe(ctx context.Context, key models.ConversationKey, onAdded func(models.Message)) (*Subscription, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrSubscription, ErrClosed)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	live := make(chan models.Message, c.buffer)
	failures := make(chan error, 1)
	fail := func(err error) {
		select {
		case failures <- err:
		default:
		}
	}

	// register before reading history so no append falls in between
	stop, err := c.notifier.Subscribe(key, func(payload []byte) {
		var m models.Message
		if err := json.Unmarshal(payload, &m); err != nil {
			logger.Warn("live_decode_failed", "conversation", key.String(), "error", err)
			return
		}
		select {
		case live <- m:
		default:
			fail(ErrSlowSubscriber)
		}
	}, fail)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	history, err := c.History(ctx, key)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	sub := &Subscription{key: key, cancel: cancel, done: make(chan struct{})}
	go sub.run(ctx, history, live, failures, stop, onAdded)
	logger.Debug("subscription_opened", "conversation", key.String(), "replay", len(history))
	return sub, nil
}

// SaveProfile stores p under the user's profile path.
func (c *Client) SaveProfile(ctx context.Context, userID string, p models.Profile) error {
	if !models.ValidSegment(userID) {
		return fmt.Errorf("%w: user id %q", models.ErrInvalidMessage, userID)
	}
	p.UserID = userID
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.tree.Update(ctx, map[string][]byte{models.ProfilePath(userID): payload})
}

// Profile returns ErrNotFound when the user never saved one.
func (c *Client) Profile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	if !models.ValidSegment(userID) {
		return p, ErrNotFound
	}
	data, err := c.tree.Get(ctx, models.ProfilePath(userID))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return p, nil
}

// Ping reports whether the tree is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.tree.Ping(ctx)
}

// Close marks the client closed. The tree is owned by the caller.
func (c *Client) Close() {
	c.closed.Store(true)
}
