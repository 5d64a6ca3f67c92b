package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/logger"
	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/metrics/prometheus"
	"github.com/gnosis/tradingdb/internal/shutdown"
	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"github.com/gnosis/tradingdb/pkg/eventDescription/ipfs"
	"github.com/gnosis/tradingdb/pkg/eventDescription/redisCache"
	"github.com/gnosis/tradingdb/pkg/eventReceivers"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/receiverManager"
	"github.com/gnosis/tradingdb/pkg/ingestion"
	"github.com/gnosis/tradingdb/pkg/notify"
	"github.com/gnosis/tradingdb/pkg/postgres"
	"github.com/gnosis/tradingdb/pkg/postgres/migrations"
	"github.com/gnosis/tradingdb/pkg/relationalDb/postgresRepository"
	"github.com/gnosis/tradingdb/pkg/tournament"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume chain events and materialize them into PostgreSQL",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "tradingdb"})

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		ms := mustMetricsSink(cfg, l)

		grm := mustMigratedDatabase(cfg, l)
		repo := postgresRepository.NewPostgresRepository(grm, l)

		fetcher := newDescriptionFetcher(cfg, l)

		rm := receiverManager.NewReceiverManager(l, ms)
		if err := eventReceivers.LoadEventReceivers(rm, repo, fetcher, cfg, l); err != nil {
			l.Sugar().Fatalw("Failed to load event receivers", zap.Error(err))
		}

		nc, js, err := ingestion.ConnectNats(cfg.NatsConfig.Url, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()

		notifier := notify.NewNotifierFromConfig(cfg, l)

		processor := ingestion.NewProcessor(rm, ms, l)
		consumer := ingestion.NewNatsConsumer(js, cfg, processor, notifier, l)

		issuer := tournament.NewNatsTokenIssuer(js, cfg.NatsConfig.IssuanceSubject, l)
		distributor := tournament.NewTokenDistributor(repo, issuer, notifier, ms, cfg, l)
		scheduler := tournament.NewScheduler(distributor, cfg, l)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
		if cfg.PrometheusConfig.Enabled {
			srv := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{Port: cfg.PrometheusConfig.Port}, l)
			g.Go(func() error {
				return srv.Run(gctx)
			})
		}

		go shutdown.ListenForShutdown(shutdown.CreateGracefulShutdownChannel(), cancel, time.Second*5, l)

		l.Sugar().Infow("Started tradingdb")

		if err := g.Wait(); err != nil {
			notify.Send(context.Background(), notifier, l, "tradingdb stopped", err)
			l.Sugar().Fatalw("tradingdb stopped", zap.Error(err))
		}
		l.Sugar().Infow("tradingdb stopped")
	},
}

func mustMetricsSink(cfg *config.Config, l *zap.Logger) *metrics.MetricsSink {
	clients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
	}

	ms, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
	}
	return ms
}

func mustMigratedDatabase(cfg *config.Config, l *zap.Logger) *gorm.DB {
	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true

	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		l.Fatal("Failed to setup postgres connection", zap.Error(err))
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		l.Fatal("Failed to create gorm instance", zap.Error(err))
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	if err = migrator.MigrateAll(); err != nil {
		l.Fatal("Failed to migrate", zap.Error(err))
	}
	return grm
}

// newDescriptionFetcher reads event descriptions from IPFS, through redis when a url is configured.
func newDescriptionFetcher(cfg *config.Config, l *zap.Logger) eventDescription.Fetcher {
	var fetcher eventDescription.Fetcher = ipfs.NewIpfs(&http.Client{Timeout: cfg.IpfsConfig.Timeout}, l, cfg)
	if cfg.RedisConfig.Url == "" {
		return fetcher
	}

	rdb, err := redisCache.NewClient(cfg.RedisConfig.Url)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup redis client", zap.Error(err))
	}
	return redisCache.NewRedisCache(rdb, fetcher, cfg.RedisConfig.TTL, l)
}
