package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"unileads/internal/auth"
	"unileads/internal/config"
	"unileads/internal/email"
	"unileads/internal/http/handler"
	mw "unileads/internal/http/middleware"
	"unileads/internal/jobs"
	"unileads/internal/lead"
	"unileads/internal/outbox"
)

type Deps struct {
	Runner     *jobs.Runner
	Dispatcher *lead.Dispatcher
	Outbox     *outbox.Store
	Email      *email.Sender
	Auth       *auth.Service
	Log        *zap.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		r.Use(mw.CORS(origins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	jh := &handler.JobsHandler{Runner: d.Runner, Log: d.Log}
	lh := &handler.LeadsHandler{Dispatcher: d.Dispatcher, Log: d.Log}
	oh := &handler.OutboxHandler{Store: d.Outbox, Email: d.Email, Log: d.Log}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireServiceToken(d.Auth))

		r.Post("/jobs/{job}/run", jh.Run)
		r.Post("/leads/dispatch", lh.Dispatch)

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/", oh.List)
			r.Post("/{id}/mark-sent", oh.MarkSent)
			r.Post("/{id}/cancel", oh.Cancel)
			r.Post("/{id}/retry", oh.Retry)
			r.Post("/{id}/manual-open", oh.ManualOpen)
			r.Post("/{id}/send-email", oh.SendEmail)
		})
	})

	return r
}
