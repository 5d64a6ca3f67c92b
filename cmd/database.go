package cmd

import (
	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the database if needed and apply all migrations",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "tradingdb"})

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		mustMigratedDatabase(cfg, l)

		l.Sugar().Infow("Database migrated",
			zap.String("host", cfg.DatabaseConfig.Host),
			zap.String("database", cfg.DatabaseConfig.DbName),
		)
	},
}
