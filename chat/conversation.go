package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/metrics"
	"github.com/karthikraju391/pairchat/models"
)

const defaultSendTimeout = 5 * time.Second

// Sender is the write side of the message store.
type Sender interface {
	GenerateID(ctx context.Context) (string, error)
	Send(ctx context.Context, key models.ConversationKey, msg models.Message) error
}

// Item is one displayed row.
type Item struct {
	Message models.Message
	Side    Side
}

// Presenter receives display instructions. All calls happen on the
// goroutine that owns the Conversation.
type Presenter interface {
	ItemInserted(index int, item Item)
	ScrollTo(index int)
	InputCleared()
	Notice(err error)
}

// Conversation is the in-memory, append-only list of messages for one open
// chat. It is not safe for concurrent use: every method must be called from
// the owning goroutine (see Loop).
type Conversation struct {
	key       models.ConversationKey
	sender    Sender
	presenter Presenter
	mode      ClassifyMode
	now       func() time.Time
	timeout   time.Duration

	// spawn runs store I/O; dispatch brings the result back onto the
	// owning goroutine. Both are inline unless WithLoop is given.
	spawn    func(func())
	dispatch func(func())

	// lastSend is closed when the most recently queued send has finished.
	// Each send waits on its predecessor, so ids and writes follow
	// compose order.
	lastSend chan struct{}

	items []Item
	index map[string]int
}

type Option func(*Conversation)

func WithClassifyMode(mode ClassifyMode) Option {
	return func(c *Conversation) { c.mode = mode }
}

func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

func WithSendTimeout(d time.Duration) Option {
	return func(c *Conversation) { c.timeout = d }
}

// WithLoop moves store I/O off l and routes completions back through it.
func WithLoop(l *Loop) Option {
	return func(c *Conversation) {
		c.spawn = func(fn func()) { go fn() }
		c.dispatch = func(fn func()) {
			if !l.Post(fn) {
				logger.Debug("completion_dropped_loop_stopped", "conversation", c.key.String())
			}
		}
	}
}

// NewConversation opens the view for currentUserID chatting with partnerID.
func NewConversation(currentUserID, partnerID string, sender Sender, presenter Presenter, opts ...Option) (*Conversation, error) {
	if strings.TrimSpace(currentUserID) == "" {
		return nil, ErrIdentityUnavailable
	}
	key := models.ConversationKey{OwnerID: currentUserID, PartnerID: partnerID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	c := &Conversation{
		key:       key,
		sender:    sender,
		presenter: presenter,
		now:       time.Now,
		timeout:   defaultSendTimeout,
		spawn:     func(fn func()) { fn() },
		dispatch:  func(fn func()) { fn() },
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Conversation) Key() models.ConversationKey { return c.key }

func (c *Conversation) Len() int { return len(c.items) }

// Items returns a copy of the displayed rows in display order.
func (c *Conversation) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Classify applies the conversation's mode to m.
func (c *Conversation) Classify(m models.Message) (Side, error) {
	side, err := Classify(m, c.key.OwnerID, c.key.PartnerID, c.mode)
	if err == nil && m.SenderID != c.key.OwnerID && m.ReceiverID != c.key.PartnerID {
		logger.Warn("unexpected_participants_defaulting_to_mine", "conversation", c.key.String(), "msg_id", m.ID,
			"sender", m.SenderID, "receiver", m.ReceiverID)
	}
	return side, err
}

// OnMessageArrived appends m unless its id is already displayed. It
// returns true when a row was inserted.
func (c *Conversation) OnMessageArrived(m models.Message) bool {
	if _, dup := c.index[m.ID]; dup {
		metrics.DuplicateDeliveries.Inc()
		logger.Debug("duplicate_delivery_ignored", "conversation", c.key.String(), "msg_id", m.ID)
		return false
	}
	side, err := c.Classify(m)
	if err != nil {
		logger.Error("message_rejected", "conversation", c.key.String(), "error", err)
		c.presenter.Notice(err)
		return false
	}

	c.items = append(c.items, Item{Message: m, Side: side})
	at := len(c.items) - 1
	c.index[m.ID] = at
	c.presenter.ItemInserted(at, c.items[at])
	c.presenter.ScrollTo(at)
	return true
}

// ComposeAndSend sends text to the partner. Blank text is ignored and
// false is returned. The message is not inserted locally; it shows up when
// the live subscription delivers it back. Sends from one conversation are
// written in the order they were composed.
func (c *Conversation) ComposeAndSend(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	// in-flight sends outlive the view that started them
	ctx = context.WithoutCancel(ctx)
	composedAt := c.now().UnixMilli()

	prev := c.lastSend
	done := make(chan struct{})
	c.lastSend = done
	c.spawn(func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		c.deliver(ctx, text, composedAt)
	})
	return true
}

// deliver mints the id and writes the message. It runs on the spawned
// goroutine; presenter calls go through dispatch.
func (c *Conversation) deliver(ctx context.Context, text string, composedAt int64) {
	idCtx, cancel := context.WithTimeout(ctx, c.timeout)
	id, err := c.sender.GenerateID(idCtx)
	cancel()
	if err != nil {
		c.dispatch(func() {
			metrics.SendFailures.WithLabelValues(metrics.StageIDGeneration).Inc()
			logger.Warn("send_aborted", "conversation", c.key.String(), "error", err)
			c.presenter.Notice(err)
		})
		return
	}
	c.dispatch(c.presenter.InputCleared)

	msg := models.Message{
		ID:         id,
		SenderID:   c.key.OwnerID,
		ReceiverID: c.key.PartnerID,
		Text:       text,
		Timestamp:  composedAt,
	}
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.sender.Send(sendCtx, c.key, msg)
	cancel()
	c.dispatch(func() {
		if err != nil {
			metrics.SendFailures.WithLabelValues(metrics.StageWrite).Inc()
			logger.Error("send_failed", "conversation", c.key.String(), "msg_id", msg.ID, "error", err)
			c.presenter.Notice(fmt.Errorf("message %q not delivered: %w", msg.Text, err))
			return
		}
		logger.Debug("send_completed", "conversation", c.key.String(), "msg_id", msg.ID)
	})
}

// Report surfaces an error that happened outside the conversation, such as
// a lost subscription.
func (c *Conversation) Report(err error) {
	c.presenter.Notice(err)
}
