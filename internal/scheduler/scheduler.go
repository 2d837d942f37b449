// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/pipeline"
)

// RunFunc performs one run.
type RunFunc func(ctx context.Context) (*pipeline.Outcome, error)

// Scheduler wraps robfig/cron and fires a run on every tick.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	run    RunFunc
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates a scheduler for a standard five field spec or a descriptor
// such as "@every 6h".
func New(spec string, run RunFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		run:    run,
		logger: logger,
	}
}

// Start registers the job and starts the scheduler. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick runs once. A run already in progress is not an error for a scheduled tick.
func (s *Scheduler) Tick(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	out, err := s.run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Info("skipping scheduled run", zap.String("reason", "run already in progress"))
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("scheduled run finished", zap.Int("delivered", out.Summary.Delivered))
	}
}
