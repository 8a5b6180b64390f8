package lead

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"unileads/internal/metrics"
	"unileads/internal/outbox"
	"unileads/internal/render"
	"unileads/internal/tenant"
	"unileads/internal/webhook"
)

const (
	ackTemplateKey  = "lead_instant_ack"
	ackFallbackBody = "Hi {{name}}, thanks for reaching out to {{business}}! We received your enquiry and will get back to you shortly."
)

const (
	SkipMissingContact = "missing_contact"
	SkipMissingPhone   = "missing_phone"
	SkipAlreadyQueued  = "already_queued"
)

// Result is the dispatch outcome reported to the caller. WebhookError is
// informational; a failed relay never fails the dispatch.
type Result struct {
	Created       bool
	OutboxID      *uuid.UUID
	SkippedReason string
	WebhookSent   bool
	WebhookError  string
}

// Dispatcher enqueues the instant welcome message right after a lead is
// captured. It runs synchronously on the lead-capture path, not through the
// scheduled-job engine.
type Dispatcher struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Tenants *tenant.Store
	Outbox  *outbox.Store
	Webhook *webhook.Client
}

// IdempotencyKey guarantees at most one instant message per lead.
func IdempotencyKey(leadID uuid.UUID) string {
	return "lead_instant:" + leadID.String()
}

// Dispatch resolves the lead's tenant and contact, renders the ack message
// and inserts one outbox row. force soft-deletes the prior row for the key
// first (explicit override for manual resend).
func (d *Dispatcher) Dispatch(ctx context.Context, leadID uuid.UUID, force bool) (Result, error) {
	var l Lead
	if err := d.DB.WithContext(ctx).First(&l, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, ErrLeadNotFound
		}
		return Result{}, err
	}

	t, err := d.Tenants.Get(ctx, l.TenantID)
	if err != nil {
		return Result{}, err
	}

	contact, err := contactFor(ctx, d.DB, &l)
	if err != nil {
		return Result{}, err
	}
	if contact == nil {
		metrics.LeadDispatches.WithLabelValues("skipped").Inc()
		return Result{SkippedReason: SkipMissingContact}, nil
	}
	if contact.Phone == "" {
		metrics.LeadDispatches.WithLabelValues("skipped").Inc()
		return Result{SkippedReason: SkipMissingPhone}, nil
	}

	body := ackFallbackBody
	if tmpl, err := d.Tenants.FindTemplate(ctx, t.ID, ackTemplateKey, outbox.ChannelWhatsApp); err == nil && tmpl != nil {
		body = tmpl.Body
	}
	body = render.Render(body, map[string]string{
		"name":     contact.Name,
		"business": t.Name,
		"phone":    t.Phone,
	})

	key := IdempotencyKey(l.ID)

	if force {
		if _, err := d.Outbox.SoftDeleteByKey(ctx, t.ID, key); err != nil {
			return Result{}, err
		}
	}

	msg := &outbox.Message{
		TenantID:       t.ID,
		Channel:        outbox.ChannelWhatsApp,
		ContactID:      &contact.ID,
		Phone:          contact.Phone,
		Body:           body,
		SourceTable:    "leads",
		SourceID:       l.ID.String(),
		IdempotencyKey: key,
		ScheduledAt:    time.Now().UTC(),
		Meta: map[string]any{
			"trigger": "lead_instant",
			"lead_id": l.ID.String(),
		},
	}

	created, err := d.Outbox.Enqueue(ctx, msg, outbox.InsertStrict)
	if err != nil {
		return Result{}, err
	}
	if !created {
		metrics.LeadDispatches.WithLabelValues("duplicate").Inc()
		return Result{SkippedReason: SkipAlreadyQueued}, nil
	}

	res := Result{Created: true, OutboxID: &msg.ID}
	metrics.LeadDispatches.WithLabelValues("created").Inc()

	if d.Webhook.Enabled() {
		if err := d.Webhook.Relay(ctx, []uuid.UUID{msg.ID}); err != nil {
			// fire-and-report: the outbox row stays, the caller sees the error
			metrics.WebhookFailures.Inc()
			res.WebhookError = err.Error()
		} else {
			res.WebhookSent = true
		}
	}

	d.Log.Info("lead instant message dispatched",
		zap.String("lead_id", l.ID.String()),
		zap.String("tenant_id", t.ID.String()),
		zap.Bool("webhook_sent", res.WebhookSent),
	)
	return res, nil
}
