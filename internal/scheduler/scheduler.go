// Package scheduler runs jobs on cron expressions using gocron.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// slowThreshold is the job duration above which a run is logged as slow.
const slowThreshold = 5 * time.Minute

// Scheduler runs jobs in singleton mode: a run never starts while the
// previous run of the same job is still going.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a scheduler evaluating cron expressions in loc.
func New(loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(&gocronLogAdapter{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// AddJob schedules job on cronExpr. The first run starts as soon as the
// scheduler is started.
func (s *Scheduler) AddJob(name, cronExpr string, job func()) error {
	if name == "" {
		return errors.New("empty job name")
	}
	if cronExpr == "" {
		return errors.New("empty cron expression")
	}
	if job == nil {
		return errors.New("nil job function")
	}

	wrappedJob := func() {
		start := time.Now()
		job()

		if d := time.Since(start); d > slowThreshold {
			slog.Warn("slow scheduled job execution", "job_name", name, "duration", d.Round(time.Second))
		}
	}

	scheduledJob, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrappedJob),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	logAttrs := []any{"job_name", name, "cron", cronExpr}
	if nextRun, err := scheduledJob.NextRun(); err == nil && !nextRun.IsZero() {
		logAttrs = append(logAttrs, "next_run", nextRun.Format(time.RFC3339))
	}
	slog.Info("job scheduled", logAttrs...)

	return nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	slog.Debug("scheduler started")
}

// Stop waits for running jobs to complete and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Debug("stopping scheduler", "active_jobs", len(s.scheduler.Jobs()))

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}

	return nil
}

type gocronLogAdapter struct{}

func (l *gocronLogAdapter) Debug(msg string, args ...any) {
	slog.Debug(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Info(msg string, args ...any) {
	slog.Info(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Warn(msg string, args ...any) {
	slog.Warn(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Error(msg string, args ...any) {
	slog.Error(msg, toSlogArgs(args)...)
}

// toSlogArgs turns gocron's loose key/value list into slog pairs.
func toSlogArgs(args []any) []any {
	out := make([]any, 0, len(args))

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out = append(out, "value", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		out = append(out, key, args[i+1])
	}

	return out
}
