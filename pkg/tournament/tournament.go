// Package tournament issues tokens to new tournament participants on a schedule.
package tournament

import (
	"context"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/metrics/metricsTypes"
	"github.com/gnosis/tradingdb/pkg/notify"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TokenDistributor struct {
	repo        relationalDb.Repository
	issuer      TokenIssuer
	notifier    notify.Notifier
	metricsSink *metrics.MetricsSink
	cfg         *config.TournamentConfig
	logger      *zap.Logger
	now         func() time.Time
}

func NewTokenDistributor(
	repo relationalDb.Repository,
	issuer TokenIssuer,
	notifier notify.Notifier,
	ms *metrics.MetricsSink,
	cfg *config.Config,
	l *zap.Logger,
) *TokenDistributor {
	return &TokenDistributor{
		repo:        repo,
		issuer:      issuer,
		notifier:    notifier,
		metricsSink: ms,
		cfg:         &cfg.TournamentConfig,
		logger:      l,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IssueTokens issues tokens to one batch of participants that registered at
// least the minimum age ago and have not received them yet. The participants are
// only flagged when the issuer accepted the batch.
func (d *TokenDistributor) IssueTokens(ctx context.Context) (int, error) {
	createdBefore := d.now().Add(-d.cfg.IssuanceMinAge)

	var addresses []string
	err := d.repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
		participants, err := tx.ListParticipantsPendingIssuance(createdBefore, d.cfg.IssuanceBatchSize)
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			return nil
		}
		addresses = make([]string, 0, len(participants))
		for _, p := range participants {
			addresses = append(addresses, p.Address)
		}
		if err := tx.MarkTokensIssued(addresses); err != nil {
			return err
		}
		return d.issuer.Issue(ctx, addresses, d.cfg.TokenIssuance)
	})
	if err != nil {
		err = errors.Wrap(err, "failed to issue tournament tokens")
		d.logger.Sugar().Errorw("Token issuance failed", zap.Error(err))
		notify.Send(ctx, d.notifier, d.logger, "tournament token issuance failed", err)
		return 0, err
	}

	if len(addresses) > 0 {
		d.metricsSink.Incr(metricsTypes.Metric_Incr_TournamentTokensIssued, nil, float64(len(addresses)))
		d.logger.Sugar().Infow("Issued tournament tokens",
			zap.Int("participants", len(addresses)),
			zap.String("amount", d.cfg.TokenIssuance.String()),
		)
	}
	return len(addresses), nil
}

// ClearIssuedTokensFlag makes every participant eligible for issuance again.
func (d *TokenDistributor) ClearIssuedTokensFlag(ctx context.Context) (int64, error) {
	var cleared int64
	err := d.repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
		var err error
		cleared, err = tx.ClearTokensIssuedFlag()
		return err
	})
	if err != nil {
		err = errors.Wrap(err, "failed to clear issued tokens flag")
		d.logger.Sugar().Errorw("Clearing issued tokens flag failed", zap.Error(err))
		notify.Send(ctx, d.notifier, d.logger, "clearing issued tokens flag failed", err)
		return 0, err
	}
	d.logger.Sugar().Infow("Cleared issued tokens flag", zap.Int64("participants", cleared))
	return cleared, nil
}
