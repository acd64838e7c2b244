// Package scheduler wraps robfig/cron with structured logging and graceful
// shutdown for the periodic monitoring jobs.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. Spec accepts standard five-field cron
// expressions and the @every shorthand.
type Job struct {
	Name string
	Spec string
	Run  func()
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLogger(&cronLogger{logger: logger}),
		cron.WithChain(
			cron.Recover(&cronLogger{logger: logger}),
			cron.SkipIfStillRunning(&cronLogger{logger: logger}),
		),
	)

	return &Scheduler{cron: c, logger: logger}
}

// Register adds a job. Panics inside the job are recovered and logged; a
// slow run skips the next tick instead of piling up.
func (s *Scheduler) Register(job Job) error {
	wrapped := func() {
		start := time.Now()
		s.logger.Debug("job started", "job", job.Name)
		job.Run()
		s.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
	}

	if _, err := s.cron.AddFunc(job.Spec, wrapped); err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}

	s.logger.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// Start begins dispatching jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and blocks until in-flight jobs finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron's Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append(keysAndValues, "error", err)
	l.logger.Error(msg, args...)
}
