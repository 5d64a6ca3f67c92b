package cmd

import (
	"context"
	"errors"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/logger"
	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/shutdown"
	"github.com/gnosis/tradingdb/pkg/eventReceivers"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/receiverManager"
	"github.com/gnosis/tradingdb/pkg/ingestion"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/gnosis/tradingdb/pkg/relationalDb/memoryRepository"
	"github.com/gnosis/tradingdb/pkg/relationalDb/postgresRepository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Apply a file of recorded event messages in order",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "tradingdb-replay"})

		if cfg.ReplayConfig.File == "" {
			l.Sugar().Fatalw("Missing required flag", zap.String("flag", config.ReplayFile))
		}

		var repo relationalDb.Repository
		if cfg.ReplayConfig.DryRun {
			if err := cfg.ValidateWithoutDatabase(); err != nil {
				l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
			}
			repo = memoryRepository.NewMemoryRepository()
		} else {
			if err := cfg.Validate(); err != nil {
				l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
			}
			repo = postgresRepository.NewPostgresRepository(mustMigratedDatabase(cfg, l), l)
		}

		ms := metrics.NewNoopMetricsSink()
		rm := receiverManager.NewReceiverManager(l, ms)
		if err := eventReceivers.LoadEventReceivers(rm, repo, newDescriptionFetcher(cfg, l), cfg, l); err != nil {
			l.Sugar().Fatalw("Failed to load event receivers", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go shutdown.ListenForShutdown(shutdown.CreateGracefulShutdownChannel(), cancel, 0, l)

		source := ingestion.NewFileSource(cfg.ReplayConfig.File, ingestion.NewProcessor(rm, ms, l), l)
		applied, err := source.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Sugar().Fatalw("Replay stopped", zap.Int("applied", applied), zap.Error(err))
		}

		l.Sugar().Infow("Replay finished",
			zap.String("file", cfg.ReplayConfig.File),
			zap.Int("applied", applied),
			zap.Bool("dryRun", cfg.ReplayConfig.DryRun),
		)
	},
}
