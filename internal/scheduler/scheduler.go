// Package scheduler runs a configured scenario unattended on a cron
// schedule. Runs are collector-only: no socket client, transcript and
// outcome go out via the webhook notifier.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dubtest/internal/common"
	"github.com/ternarybob/dubtest/internal/logsink"
	"github.com/ternarybob/dubtest/internal/notify"
	"github.com/ternarybob/dubtest/internal/scenario"
)

// ScenarioRunner runs one scenario to completion, narrating into the sink.
type ScenarioRunner interface {
	Run(ctx context.Context, name string, sink *logsink.Sink) *scenario.Result
}

// Scheduler triggers scenario runs on a cron expression with seconds.
type Scheduler struct {
	cfg      common.ScheduleConfig
	runner   ScenarioRunner
	notifier *notify.Notifier
	logger   arbor.ILogger
	cron     *cron.Cron
}

// New creates a scheduler. It does nothing until Start.
func New(cfg common.ScheduleConfig, runner ScenarioRunner, notifier *notify.Notifier, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers the scheduled run and starts the cron loop. Disabled
// schedules are a no-op.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Debug().Msg("Scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Cron, s.runOnce); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("cron", s.cfg.Cron).
		Str("scenario", s.cfg.Scenario).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// runOnce executes the configured scenario with a drained sink and posts
// the result.
func (s *Scheduler) runOnce() {
	s.logger.Info().Str("scenario", s.cfg.Scenario).Msg("Scheduled run starting")

	sink := logsink.New()
	go func() {
		for range sink.Stream() {
		}
	}()

	result := s.runner.Run(context.Background(), s.cfg.Scenario, sink)
	sink.Close()

	s.logger.Info().
		Str("scenario", result.Scenario).
		Str("run_id", result.RunID).
		Bool("success", result.Success).
		Msg("Scheduled run finished")

	if err := s.notifier.Send(context.Background(), notify.RunReport{
		Scenario:   result.Scenario,
		Success:    result.Success,
		Message:    result.Message,
		Screenshot: result.Screenshot,
		Logs:       result.Logs,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled run notification failed")
	}
}
