package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"unileads/internal/jobs"
)

type JobsHandler struct {
	Runner *jobs.Runner
	Log    *zap.Logger
}

// Run is the job trigger endpoint: POST /jobs/{job}/run?force=1&dry=1.
// No body required; the scheduler and manual operator calls both land here.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	opts := jobs.RunOptions{
		Force: r.URL.Query().Get("force") == "1",
		Dry:   r.URL.Query().Get("dry") == "1",
	}

	res, err := h.Runner.Run(r.Context(), job, opts)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.Log.Error("job run failed",
			zap.String("job", job),
			zap.String("run_key", res.RunKey),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"run_key": res.RunKey,
			"error":   err.Error(),
		})
		return
	}

	if res.Skipped {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"run_key": res.RunKey,
			"skipped": true,
			"status":  res.LedgerStatus,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"run_key": res.RunKey,
		"summary": res.Summary,
	})
}
