package rhythm

import (
	"context"
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/config"
)

// Service owns the periodic sweeps: proactive outreach, housekeeping,
// and extraction recovery. Each sweep is registered on its own cron
// schedule and runs with a bounded context.
type Service struct {
	sweeps *Sweeps
	log    *zap.SugaredLogger
	cfg    config.RhythmConfig
	cron   *rcron.Cron
}

func NewService(sweeps *Sweeps, cfg config.RhythmConfig, log *zap.SugaredLogger) *Service {
	return &Service{
		sweeps: sweeps,
		log:    log,
		cfg:    cfg,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.cron = rcron.New(rcron.WithSeconds())

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{"outreach", s.cfg.OutreachSchedule, s.sweeps.Outreach},
		{"housekeeping", s.cfg.CleanupSchedule, s.sweeps.Housekeeping},
		{"recovery", s.cfg.RecoverySchedule, s.sweeps.RecoverExtractions},
	}
	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.schedule, func() {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if err := job.run(runCtx); err != nil {
				s.log.Warnw("sweep failed", "sweep", job.name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("register %s sweep (%s): %w", job.name, job.schedule, err)
		}
	}

	s.cron.Start()
	s.log.Infow("rhythm started", "sweeps", len(jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
}
