package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unileads/internal/lead"
)

type LeadsHandler struct {
	Dispatcher *lead.Dispatcher
	Log        *zap.Logger
}

type dispatchReq struct {
	LeadID string `json:"lead_id"`
	Force  bool   `json:"force"`
}

// Dispatch is the synchronous instant-message trigger, invoked by the
// lead-capture path right after a lead is created.
func (h *LeadsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lead_id")
		return
	}

	res, err := h.Dispatcher.Dispatch(r.Context(), leadID, req.Force)
	if err != nil {
		if errors.Is(err, lead.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		h.Log.Error("lead dispatch failed", zap.String("lead_id", req.LeadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]any{
		"ok":             true,
		"created_outbox": res.Created,
	}
	if res.OutboxID != nil {
		body["outbox_id"] = res.OutboxID.String()
	}
	if res.SkippedReason != "" {
		body["skipped_reason"] = res.SkippedReason
	}
	if res.Created {
		body["webhook_sent"] = res.WebhookSent
		if res.WebhookError != "" {
			body["webhook_error"] = res.WebhookError
		}
	}
	writeJSON(w, http.StatusOK, body)
}
