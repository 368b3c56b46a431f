package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bellhop-dev/bellhop/internal/wire"
)

const wsWriteTimeout = 10 * time.Second

// WSDialer dials the hub's websocket endpoint. Identification happens
// in-band over the socket, so no headers beyond the handshake are sent.
type WSDialer struct {
	URL string
}

func (d WSDialer) Dial(ctx context.Context) (Transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, d.URL, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsClientTransport{conn: conn}, nil
}

// wsClientTransport surfaces server close frames as *wire.CloseError so
// the session can tell an auth rejection from a network fault.
type wsClientTransport struct {
	conn *websocket.Conn
}

func (t *wsClientTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &wire.CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (t *wsClientTransport) WriteMessage(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsClientTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	return t.conn.Close()
}
