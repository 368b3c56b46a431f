package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/bellhop-dev/bellhop/internal/xslog"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 32 * 1024
)

var _ Transport = (*wsTransport)(nil)

// wsTransport adapts a gorilla websocket connection to the Transport
// interface. gorilla permits one concurrent reader and one concurrent
// writer; the hub's read loop and write pump satisfy that, and writeMu
// covers the close frame racing the write pump.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(wsReadLimit)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	t.writeMu.Unlock()

	return t.conn.Close()
}

// Handler upgrades HTTP requests into hub connections. Identity is not
// checked here: the connection stays unclaimed until IDENTIFY, so the
// upgrade itself needs no auth.
func Handler(h *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// bearer-token identification means cross-origin upgrades carry no
		// ambient credentials
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			xslog.FromContext(r.Context()).WarnContext(r.Context(), "websocket upgrade failed",
				xslog.Error(err),
			)
			return
		}

		h.Accept(newWSTransport(conn))
	}
}
