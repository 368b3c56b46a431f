// Package server wires the REST surface and the websocket upgrade path
// onto one HTTP mux.
package server

import (
	"log/slog"
	"net/http"

	"github.com/bellhop-dev/bellhop/internal/auth"
	"github.com/bellhop-dev/bellhop/internal/hub"
	"github.com/bellhop-dev/bellhop/internal/storage"
	"github.com/bellhop-dev/bellhop/internal/xhttp/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Hub       *hub.Hub
	Store     storage.NotificationStore
	Validator auth.TokenValidator
	Registry  *prometheus.Registry
	Logger    *slog.Logger

	RateLimit float64
	RateBurst int
}

// Routes builds the full handler chain. The websocket endpoint skips
// bearer middleware: its identity check is the in-band IDENTIFY message.
func Routes(deps Deps) http.Handler {
	notifications := NewNotificationsHandler(deps.Store, deps.Hub)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/notifications", notifications.HandleList)
	api.HandleFunc("POST /api/notifications", notifications.HandleCreate)
	api.HandleFunc("POST /api/notifications/{id}/read", notifications.HandleMarkRead)
	api.HandleFunc("POST /api/notifications/read-all", notifications.HandleMarkAllRead)
	api.HandleFunc("DELETE /api/notifications/{id}", notifications.HandleDelete)

	authed := middleware.BearerAuth(deps.Validator)(api)

	mux := http.NewServeMux()
	mux.Handle("/api/notifications", authed)
	mux.Handle("/api/notifications/", authed)
	mux.HandleFunc("GET /ws", hub.Handler(deps.Hub))
	mux.HandleFunc("GET /health", handleHealth(deps.Store))

	if deps.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	rateBurst := deps.RateBurst
	if rateBurst <= 0 {
		rateBurst = 20
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return middleware.Chain(mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Logging,
		middleware.ShutdownContext,
		middleware.RateLimit(rateLimit, rateBurst),
		middleware.SecurityHeaders,
		middleware.Gzip,
	)
}

func handleHealth(store storage.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
