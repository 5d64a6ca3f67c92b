package tournament

import (
	"context"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the distributor jobs on cron expressions with a seconds field.
type Scheduler struct {
	cron        *cron.Cron
	distributor *TokenDistributor
	cfg         *config.TournamentConfig
	logger      *zap.Logger
}

func NewScheduler(distributor *TokenDistributor, cfg *config.Config, l *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		distributor: distributor,
		cfg:         &cfg.TournamentConfig,
		logger:      l,
	}
}

// Register adds the configured jobs. A job with an empty schedule is not run.
func (s *Scheduler) Register(ctx context.Context) error {
	if s.cfg.IssueSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.IssueSchedule, func() {
			_, _ = s.distributor.IssueTokens(ctx)
		}); err != nil {
			return errors.Wrapf(err, "invalid issue schedule '%s'", s.cfg.IssueSchedule)
		}
	}
	if s.cfg.ClearSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ClearSchedule, func() {
			_, _ = s.distributor.ClearIssuedTokensFlag(ctx)
		}); err != nil {
			return errors.Wrapf(err, "invalid clear schedule '%s'", s.cfg.ClearSchedule)
		}
	}
	return nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the jobs and blocks until ctx is cancelled and running jobs finished.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Register(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Sugar().Infow("Tournament scheduler started", zap.Int("jobs", s.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Sugar().Infow("Tournament scheduler stopped")
	return nil
}
