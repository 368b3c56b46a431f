package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bellhop-dev/bellhop/internal/apperr"
	"github.com/bellhop-dev/bellhop/internal/hub"
	"github.com/bellhop-dev/bellhop/internal/storage"
	"github.com/bellhop-dev/bellhop/internal/wire"
	"github.com/bellhop-dev/bellhop/internal/xcontext"
	"github.com/bellhop-dev/bellhop/internal/xhttp"
	"github.com/bellhop-dev/bellhop/internal/xslog"
	go_json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// NotificationsHandler serves the authoritative REST surface. Every
// mutation writes to the store first and only then publishes the matching
// event through the hub: the push is a notification of the change, never
// the change itself.
type NotificationsHandler struct {
	store     storage.NotificationStore
	publisher hub.Publisher
}

func NewNotificationsHandler(store storage.NotificationStore, publisher hub.Publisher) *NotificationsHandler {
	return &NotificationsHandler{
		store:     store,
		publisher: publisher,
	}
}

func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	userID, ok := xcontext.GetUserID(ctx)
	if !ok {
		xhttp.Error(w, http.StatusUnauthorized)
		return
	}

	opts := storage.ListOptions{Limit: defaultListLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxListLimit {
			xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "invalid limit"))
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "invalid offset"))
			return
		}
		opts.Offset = offset
	}
	if v := r.URL.Query().Get("unreadOnly"); v != "" {
		unreadOnly, err := strconv.ParseBool(v)
		if err != nil {
			xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "invalid unreadOnly"))
			return
		}
		opts.UnreadOnly = unreadOnly
	}

	page, err := h.store.List(ctx, userID, opts)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list notifications",
			xslog.UserID(userID),
			xslog.Error(err),
		)
		xhttp.WriteError(w, apperr.Internal(apperr.CodeInternal, "failed to list notifications", err))
		return
	}

	if page.Data == nil {
		page.Data = []storage.Notification{}
	}
	xhttp.WriteOK(w, page)
}

type createRequest struct {
	UserID      string             `json:"userId"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
	Metadata    go_json.RawMessage `json:"metadata,omitempty"`
}

// HandleCreate is the business-logic ingress: record the notification,
// then push NEW_NOTIFICATION to the target user's live connections.
func (h *NotificationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	callerID, ok := xcontext.GetUserID(ctx)
	if !ok {
		xhttp.Error(w, http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := go_json.NewDecoder(r.Body).Decode(&req); err != nil {
		xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Title == "" || req.Message == "" {
		xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "title and message are required"))
		return
	}

	targetUserID := req.UserID
	if targetUserID == "" {
		targetUserID = callerID
	}

	created, err := h.store.Create(ctx, storage.Notification{
		ID:          uuid.New().String(),
		UserID:      targetUserID,
		Title:       req.Title,
		Message:     req.Message,
		CreatedAt:   time.Now(),
		RedirectURL: req.RedirectURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to create notification",
			xslog.UserID(targetUserID),
			xslog.Error(err),
		)
		xhttp.WriteError(w, apperr.Internal(apperr.CodeInternal, "failed to create notification", err))
		return
	}

	h.publish(r, created.UserID, wire.TypeNewNotification, created)
	xhttp.WriteJSON(w, http.StatusCreated, created)
}

func (h *NotificationsHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := xcontext.GetUserID(ctx)
	if !ok {
		xhttp.Error(w, http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "missing notification id"))
		return
	}

	if err := h.store.MarkRead(ctx, userID, id); err != nil {
		h.writeStoreError(w, r, err, "failed to mark notification read")
		return
	}

	h.publish(r, userID, wire.TypeNotificationRead, wire.NotificationRefPayload{ID: id})
	xhttp.WriteNoContent(w)
}

func (h *NotificationsHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := xcontext.GetUserID(ctx)
	if !ok {
		xhttp.Error(w, http.StatusUnauthorized)
		return
	}

	if err := h.store.MarkAllRead(ctx, userID); err != nil {
		h.writeStoreError(w, r, err, "failed to mark all notifications read")
		return
	}

	h.publish(r, userID, wire.TypeAllNotificationsRead, nil)
	xhttp.WriteNoContent(w)
}

func (h *NotificationsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := xcontext.GetUserID(ctx)
	if !ok {
		xhttp.Error(w, http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		xhttp.WriteError(w, apperr.BadRequest(apperr.CodeBadRequest, "missing notification id"))
		return
	}

	if err := h.store.Delete(ctx, userID, id); err != nil {
		h.writeStoreError(w, r, err, "failed to delete notification")
		return
	}

	h.publish(r, userID, wire.TypeNotificationDeleted, wire.NotificationRefPayload{ID: id})
	xhttp.WriteNoContent(w)
}

func (h *NotificationsHandler) publish(r *http.Request, userID string, kind wire.MessageType, payload any) {
	ctx := r.Context()
	if err := h.publisher.Publish(ctx, userID, kind, payload); err != nil {
		// the store write already succeeded; clients converge via their
		// next reconciliation fetch
		xslog.FromContext(ctx).WarnContext(ctx, "failed to publish event",
			xslog.UserID(userID),
			xslog.EventKind(string(kind)),
			xslog.Error(err),
		)
	}
}

func (h *NotificationsHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, storage.ErrNotFound) {
		xhttp.WriteError(w, apperr.NotFound(apperr.CodeNotFound, "notification not found"))
		return
	}

	ctx := r.Context()
	xslog.FromContext(ctx).ErrorContext(ctx, msg, xslog.Error(err))
	xhttp.WriteError(w, apperr.Internal(apperr.CodeInternal, msg, err))
}
