package xslog

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

const keyError = "error"

func Error(err error) slog.Attr {
	return slog.String(keyError, err.Error())
}

func ErrorAny(err any) slog.Attr {
	return slog.Any(keyError, err)
}

func UserID(userID string) slog.Attr {
	const userIDKey = "user_id"
	return slog.String(userIDKey, userID)
}

func ConnectionID(connectionID string) slog.Attr {
	const connectionIDKey = "connection_id"
	return slog.String(connectionIDKey, connectionID)
}

func EventKind(kind string) slog.Attr {
	const kindKey = "event_kind"
	return slog.String(kindKey, kind)
}

func MessageType(messageType string) slog.Attr {
	const typeKey = "message_type"
	return slog.String(typeKey, messageType)
}

func State(state string) slog.Attr {
	const stateKey = "state"
	return slog.String(stateKey, state)
}

func Count(count int) slog.Attr {
	const countKey = "count"
	return slog.Int(countKey, count)
}

func Backoff(backoff time.Duration) slog.Attr {
	const backoffKey = "backoff"
	return slog.Duration(backoffKey, backoff)
}

func Duration(duration time.Duration) slog.Attr {
	const durationKey = "duration"
	return slog.Duration(durationKey, duration)
}

func RequestID(requestID string) slog.Attr {
	const requestIDKey = "request_id"
	return slog.String(requestIDKey, requestID)
}

func HTTPStatus(status int) slog.Attr {
	const statusKey = "status"
	return slog.Int(statusKey, status)
}

func RequestMethod(r *http.Request) slog.Attr {
	const methodKey = "method"
	return slog.String(methodKey, r.Method)
}

func RequestPath(r *http.Request) slog.Attr {
	const pathKey = "path"
	return slog.String(pathKey, r.URL.Path)
}

func Stack() slog.Attr {
	const stackKey = "stack"
	return slog.String(stackKey, string(debug.Stack()))
}
