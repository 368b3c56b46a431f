package wire

import (
	"errors"
	"fmt"
)

// Close codes carried on the transport close frame. AuthFailed lives in
// the application range (4xxx) so the client can tell "re-login" apart
// from every recoverable drop.
const (
	CloseNormal        = 1000
	CloseProtocolError = 1002
	CloseAuthFailed    = 4401
)

// CloseError surfaces the peer's close frame through a transport's read
// path. Transport adapters translate their library-specific close errors
// into this type.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed: code=%d reason=%q", e.Code, e.Reason)
}

func IsAuthClose(err error) bool {
	var closeErr *CloseError
	return errors.As(err, &closeErr) && closeErr.Code == CloseAuthFailed
}
