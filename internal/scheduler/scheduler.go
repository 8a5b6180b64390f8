package scheduler

import (
	"context"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"unileads/internal/jobs"
)

// JobSpec is one scheduled entry: which job, on what cadence.
type JobSpec struct {
	Name string `yaml:"name"`
	Cron string `yaml:"cron"`
}

type specFile struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// Defaults: dues once a night, reminders at the top of every hour.
func Defaults() []JobSpec {
	return []JobSpec{
		{Name: jobs.JobDues, Cron: "0 2 * * *"},
		{Name: jobs.JobReminders, Cron: "0 * * * *"},
	}
}

// LoadSpecs reads the optional schedules YAML; an empty path or empty file
// yields the defaults.
func LoadSpecs(path string) ([]JobSpec, error) {
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedules file: %w", err)
	}
	var f specFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing schedules file: %w", err)
	}
	if len(f.Jobs) == 0 {
		return Defaults(), nil
	}
	return f.Jobs, nil
}

// Scheduler fires the job entry points in-process. A scheduler-fired run is
// a plain non-force invocation; losing the run lock to a concurrent trigger
// is the normal skipped outcome.
type Scheduler struct {
	cron   *cron.Cron
	runner *jobs.Runner
	log    *zap.Logger
}

func New(runner *jobs.Runner, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		log:    log,
	}
}

func (s *Scheduler) Register(specs []JobSpec) error {
	for _, spec := range specs {
		spec := spec
		_, err := s.cron.AddFunc(spec.Cron, func() {
			res, err := s.runner.Run(context.Background(), spec.Name, jobs.RunOptions{})
			if err != nil {
				s.log.Error("scheduled run failed",
					zap.String("job", spec.Name),
					zap.Error(err),
				)
				return
			}
			if res.Skipped {
				s.log.Info("scheduled run skipped",
					zap.String("job", spec.Name),
					zap.String("run_key", res.RunKey),
					zap.String("ledger_status", res.LedgerStatus),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("registering schedule %q for %s: %w", spec.Cron, spec.Name, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
