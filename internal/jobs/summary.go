package jobs

import "fmt"

// Summary is the structured result of one job invocation. It is stored on the
// ledger row at finalization and returned to the trigger caller.
type Summary struct {
	Job    string `json:"job"`
	RunKey string `json:"run_key"`
	Dry    bool   `json:"dry,omitempty"`

	RerunCount int `json:"rerun_count,omitempty"`

	Tenants int `json:"tenants"`

	DuesCreated     int `json:"dues_created,omitempty"`
	DuesSkipped     int `json:"dues_skipped,omitempty"`
	ZeroRentSkipped int `json:"zero_rent_skipped,omitempty"`

	RemindersCreated int `json:"reminders_created,omitempty"`
	RemindersSkipped int `json:"reminders_skipped,omitempty"`

	OutboxCreated int `json:"outbox_created"`
	OutboxSkipped int `json:"outbox_skipped"`

	Errors []string `json:"errors,omitempty"`
}

func NewSummary(job, runKey string, dry bool) *Summary {
	return &Summary{Job: job, RunKey: runKey, Dry: dry}
}

// AddError records a per-tenant or per-item failure without aborting the run.
func (s *Summary) AddError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}
