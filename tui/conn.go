package tui

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/karthikraju391/pairchat/chat"
)

// Conn is the client side of the /chat/:partnerID socket.
type Conn struct {
	ws *websocket.Conn
}

// ChatURL builds the socket URL for partner on server (ws:// or wss://).
func ChatURL(server, partner, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/chat/" + url.PathEscape(partner)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func Dial(server, partner, token string) (*Conn, error) {
	target, err := ChatURL(server, partner, token)
	if err != nil {
		return nil, err
	}
	ws, resp, err := websocket.DefaultDialer.Dial(target, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", server, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", server, err)
	}
	return &Conn{ws: ws}, nil
}

// SendText submits the compose box. Only one goroutine may call it.
func (c *Conn) SendText(text string) error {
	return c.ws.WriteJSON(struct {
		Text string `json:"text"`
	}{Text: text})
}

// Pump reads presentation events until the socket closes.
func (c *Conn) Pump(onEvent func(chat.Event), onClose func(error)) {
	for {
		var e chat.Event
		if err := c.ws.ReadJSON(&e); err != nil {
			onClose(err)
			return
		}
		onEvent(e)
	}
}

func (c *Conn) Close() error {
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
