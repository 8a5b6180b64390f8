package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"unileads/internal/email"
	"unileads/internal/outbox"
)

// OutboxHandler exposes the operator actions on the message queue. Every
// action is tenant-scoped; the store refuses cross-tenant mutation.
type OutboxHandler struct {
	Store *outbox.Store
	Email *email.Sender
	Log   *zap.Logger
}

func (h *OutboxHandler) ids(w http.ResponseWriter, r *http.Request) (tenantID, id uuid.UUID, ok bool) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant_id")
		return uuid.Nil, uuid.Nil, false
	}
	id, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

func (h *OutboxHandler) respond(w http.ResponseWriter, m *outbox.Message, err error) {
	switch {
	case errors.Is(err, outbox.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, outbox.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Log.Error("outbox action failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": m})
	}
}

func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant_id")
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	msgs, err := h.Store.List(r.Context(), tenantID, status, limit)
	if err != nil {
		h.Log.Error("outbox list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "messages": msgs})
}

func (h *OutboxHandler) MarkSent(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	m, err := h.Store.MarkSent(r.Context(), tenantID, id)
	h.respond(w, m, err)
}

func (h *OutboxHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	m, err := h.Store.Cancel(r.Context(), tenantID, id)
	h.respond(w, m, err)
}

func (h *OutboxHandler) Retry(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	m, err := h.Store.Retry(r.Context(), tenantID, id)
	h.respond(w, m, err)
}

// ManualOpen returns a WhatsApp deep link for the message and records the
// attempt in meta. Status is untouched; the operator confirms with MarkSent.
func (h *OutboxHandler) ManualOpen(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.ids(w, r)
	if !ok {
		return
	}

	m, err := h.Store.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respond(w, nil, err)
		return
	}
	if m.Phone == "" {
		writeError(w, http.StatusConflict, "message has no phone recipient")
		return
	}

	phone := strings.TrimLeft(m.Phone, "+")
	link := "https://wa.me/" + phone + "?text=" + url.QueryEscape(m.Body)

	m, err = h.Store.ManualOpen(r.Context(), tenantID, id, link, time.Now().UTC())
	if err != nil {
		h.respond(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": link, "message": m})
}

// SendEmail delivers an email-channel message over SMTP, when configured.
func (h *OutboxHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if !h.Email.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "smtp delivery not configured")
		return
	}

	tenantID, id, ok := h.ids(w, r)
	if !ok {
		return
	}

	m, err := h.Store.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respond(w, nil, err)
		return
	}
	if m.Channel != outbox.ChannelEmail || m.Email == "" {
		writeError(w, http.StatusConflict, "not an email message")
		return
	}

	if m, err = h.Store.MarkProcessing(r.Context(), tenantID, id); err != nil {
		h.respond(w, nil, err)
		return
	}

	if err := h.Email.SendWithRetry(r.Context(), m); err != nil {
		m, _ = h.Store.MarkFailed(r.Context(), tenantID, id, err.Error())
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "message": m})
		return
	}

	m, err = h.Store.MarkSent(r.Context(), tenantID, id)
	h.respond(w, m, err)
}
