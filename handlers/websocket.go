package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/config"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/middleware"
)

const emitTimeout = time.Second

type Client struct {
	Conn      *websocket.Conn
	Session   *chat.Session
	UserID    string
	PartnerID string
	Outbox    chan chat.Event // presentation events for the socket
	DoneChan  chan struct{}   // closed when the reader exits

	emitTimeout time.Duration
	closeConn   func()
	broken      chan struct{} // closed once the outbox has stalled
	breakOnce   sync.Once
}

func NewClient(conn *websocket.Conn, userID, partnerID string) *Client {
	return newClient(conn, userID, partnerID, 256, func() { _ = conn.Close() })
}

func newClient(conn *websocket.Conn, userID, partnerID string, outbox int, closeConn func()) *Client {
	return &Client{
		Conn:        conn,
		UserID:      userID,
		PartnerID:   partnerID,
		Outbox:      make(chan chat.Event, outbox),
		DoneChan:    make(chan struct{}),
		emitTimeout: emitTimeout,
		closeConn:   closeConn,
		broken:      make(chan struct{}),
	}
}

// emit runs on the session loop. An event is never dropped while the socket
// stays open: if the outbox stalls the socket is closed instead, and the
// client's next connection replays the whole conversation.
func (c *Client) emit(e chat.Event) {
	select {
	case <-c.broken:
		return
	default:
	}
	timer := time.NewTimer(c.emitTimeout)
	defer timer.Stop()
	select {
	case c.Outbox <- e:
	case <-c.DoneChan:
	case <-timer.C:
		logger.Warn("ws_outbox_stalled", "user", c.UserID, "partner", c.PartnerID, "event", e.Type)
		c.breakConn()
	}
}

func (c *Client) breakConn() {
	c.breakOnce.Do(func() {
		close(c.broken)
		c.closeConn()
	})
}

// HandleRead reads compose frames from the socket and hands them to the
// session.
func (c *Client) HandleRead() {
	defer func() {
		logger.Debug("ws_reader_closed", "user", c.UserID, "partner", c.PartnerID)
		close(c.DoneChan)
	}()
	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		var frame struct {
			Text string `json:"text"`
		}
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws_read_error", "user", c.UserID, "error", err)
			} else {
				logger.Debug("ws_closed", "user", c.UserID, "error", err)
			}
			return
		}
		if !c.Session.Compose(frame.Text) {
			return
		}
	}
}

// HandleWrite drains the outbox to the socket and keeps the connection
// alive with pings.
func (c *Client) HandleWrite() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		logger.Debug("ws_writer_closed", "user", c.UserID, "partner", c.PartnerID)
	}()

	for {
		select {
		case event, ok := <-c.Outbox:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(event); err != nil {
				logger.Warn("ws_write_error", "user", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("ws_ping_error", "user", c.UserID, "error", err)
				return
			}

		case <-c.DoneChan:
			return

		case <-c.broken:
			return
		}
	}
}

// HandleWebSocket hosts one conversation view for the authenticated user
// and the partner named in the path, for the lifetime of the socket.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	userID, err := middleware.UserID(c.Locals(middleware.TokenLocal))
	if err != nil {
		logger.Warn("ws_identity_unavailable", "error", err)
		c.WriteJSON(fiber.Map{"error": err.Error()})
		c.Close()
		return
	}
	partnerID := c.Params("partnerID")
	client := NewClient(c, userID, partnerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := chat.NewLoop(256)
	go loop.Run(ctx)

	conv, err := chat.NewConversation(userID, partnerID, h.Store,
		chat.EventPresenter{Emit: client.emit, Location: h.Location},
		chat.WithLoop(loop),
		chat.WithClassifyMode(h.Mode),
	)
	if err != nil {
		logger.Warn("ws_conversation_rejected", "user", userID, "partner", partnerID, "error", err)
		loop.Stop()
		c.WriteJSON(fiber.Map{"error": err.Error()})
		c.Close()
		return
	}
	client.Session = chat.NewSession(conv, h.Store, loop)
	if err := client.Session.Open(ctx); err != nil {
		logger.Error("ws_subscribe_failed", "user", userID, "partner", partnerID, "error", err)
		loop.Stop()
		c.WriteJSON(fiber.Map{"error": "conversation unavailable"})
		c.Close()
		return
	}
	logger.Info("ws_conversation_opened", "user", userID, "partner", partnerID)

	defer func() {
		client.Session.Close()
		loop.Stop()
		<-loop.Done()
		close(client.Outbox) // nothing emits once the loop is done
		c.Close()
		logger.Info("ws_conversation_closed", "user", userID, "partner", partnerID)
	}()

	go client.HandleWrite()
	client.HandleRead()
}
