package handlers

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitClosesStalledSocket(t *testing.T) {
	var closes atomic.Int32
	c := newClient(nil, "u1", "u2", 1, func() { closes.Add(1) })
	c.emitTimeout = 10 * time.Millisecond

	c.emit(chat.Event{Type: chat.EventInputCleared})
	assert.Zero(t, closes.Load())

	// nobody drains the outbox
	c.emit(chat.Event{Type: chat.EventScroll})
	assert.Equal(t, int32(1), closes.Load())

	start := time.Now()
	c.emit(chat.Event{Type: chat.EventNotice, Error: "late"})
	assert.Less(t, time.Since(start), c.emitTimeout)
	assert.Equal(t, int32(1), closes.Load())
	assert.Len(t, c.Outbox, 1)
}

func (f *fixture) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(ln) }()
	t.Cleanup(func() { _ = f.app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func readEvent(t *testing.T, conn *fastws.Conn) chat.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e chat.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestChatSocketComposeAndTeardown(t *testing.T) {
	f := newFixture(t)
	base := f.serve(t)
	key := models.ConversationKey{OwnerID: "u1", PartnerID: "u2"}

	conn, _, err := fastws.DefaultDialer.Dial(base+"/chat/u2?token="+token(t, "u1"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.hub.Subscribers(key) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"text": "  hi "}))

	cleared := readEvent(t, conn)
	assert.Equal(t, chat.EventInputCleared, cleared.Type)

	inserted := readEvent(t, conn)
	require.Equal(t, chat.EventInserted, inserted.Type)
	require.NotNil(t, inserted.Index)
	require.NotNil(t, inserted.Message)
	assert.Equal(t, 0, *inserted.Index)
	assert.Equal(t, chat.Mine, inserted.Side)
	assert.Equal(t, "hi", inserted.Message.Text)
	assert.Contains(t, inserted.Rendered, "hi")

	scroll := readEvent(t, conn)
	assert.Equal(t, chat.EventScroll, scroll.Type)
	require.NotNil(t, scroll.Index)
	assert.Equal(t, 0, *scroll.Index)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Subscribers(key) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestChatSocketReplaysHistory(t *testing.T) {
	f := newFixture(t)
	base := f.serve(t)
	key := models.ConversationKey{OwnerID: "u2", PartnerID: "u1"}
	require.NoError(t, f.client.Send(context.Background(), key, models.Message{ID: "0001", SenderID: "u2", ReceiverID: "u1", Text: "earlier", Timestamp: 1}))

	conn, _, err := fastws.DefaultDialer.Dial(base+"/chat/u2?token="+token(t, "u1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	e := readEvent(t, conn)
	require.Equal(t, chat.EventInserted, e.Type)
	assert.Equal(t, chat.Theirs, e.Side)
	assert.Equal(t, "0001", e.Message.ID)
}
