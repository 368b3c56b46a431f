package hub

// Transport is one physical push connection as the hub sees it. The
// websocket adapter is the production implementation; tests use an
// in-memory pipe.
type Transport interface {
	// ReadMessage blocks until the next complete message or a transport
	// error. A closed transport returns an error.
	ReadMessage() ([]byte, error)

	WriteMessage(data []byte) error

	// Close sends a close frame with the given code and reason where the
	// transport supports one, then tears the connection down. Safe to call
	// more than once.
	Close(code int, reason string) error
}
