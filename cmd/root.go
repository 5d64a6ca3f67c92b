package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "tradingdb",
	Short: "Materializes prediction market contract events into a queryable database",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "tradingdb", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "tradingdb", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode`)
	rootCmd.PersistentFlags().Int(config.DatabaseMaxOpenConns, 10, `Maximum open PostgreSQL connections (0 is unlimited)`)
	rootCmd.PersistentFlags().Int(config.DatabaseMaxIdleConns, 5, `Maximum idle PostgreSQL connections`)
	rootCmd.PersistentFlags().Duration(config.DatabaseConnMaxLifetime, 30*time.Minute, `Maximum lifetime of a PostgreSQL connection (0 keeps them forever)`)

	rootCmd.PersistentFlags().String(config.NatsUrl, "nats://localhost:4222", `NATS server url`)
	rootCmd.PersistentFlags().String(config.NatsStream, "TRADINGDB_EVENTS", `JetStream stream carrying decoded chain events`)
	rootCmd.PersistentFlags().String(config.NatsSubject, "chain.events", `Subject decoded chain events are published on`)
	rootCmd.PersistentFlags().String(config.NatsConsumer, "tradingdb", `Durable consumer name`)
	rootCmd.PersistentFlags().String(config.NatsIssuanceSubject, "tournament.issuance", `Subject tournament token issuance requests are published on`)

	rootCmd.PersistentFlags().String(config.RedisUrl, "", `e.g. "redis://localhost:6379/0", event descriptions are not cached when empty`)
	rootCmd.PersistentFlags().Duration(config.RedisTTL, 24*time.Hour, `How long a fetched event description stays cached`)

	rootCmd.PersistentFlags().String(config.IpfsUrl, config.DefaultIpfsGatewayUrl, `IPFS gateway url event descriptions are fetched from`)
	rootCmd.PersistentFlags().Duration(config.IpfsTimeout, 10*time.Second, `Timeout for a single IPFS request`)

	rootCmd.PersistentFlags().String(config.MarketsLmsrMarketMaker, "", `Address of the LMSR market maker markets must use`)

	rootCmd.PersistentFlags().String(config.TournamentTokenAddress, "", `Address of the tournament token, tournament balances are not tracked when empty`)
	rootCmd.PersistentFlags().String(config.TournamentTokenIssuance, "0", `Amount of tokens issued to each new participant`)
	rootCmd.PersistentFlags().Duration(config.TournamentIssuanceMinAge, time.Minute, `Minimum participant age before tokens are issued`)
	rootCmd.PersistentFlags().Int(config.TournamentIssuanceBatchSize, 50, `Maximum participants per issuance request`)
	rootCmd.PersistentFlags().String(config.TournamentIssueSchedule, "0 */5 * * * *", `Cron schedule (with seconds) of the issuance job, disabled when empty`)
	rootCmd.PersistentFlags().String(config.TournamentClearSchedule, "", `Cron schedule (with seconds) resetting the issued flag, disabled when empty`)

	rootCmd.PersistentFlags().String(config.NotifyWebhookUrl, "", `Webhook failures are posted to, they are only logged when empty`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(replayCmd)

	// bind any subcommand flags
	replayCmd.PersistentFlags().String(config.ReplayFile, "", `Path to a JSON file of recorded event messages (required)`)
	replayCmd.PersistentFlags().Bool(config.ReplayDryRun, false, `Apply the events to an in-memory database instead of PostgreSQL`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	// a missing .env file is fine, the environment and flags still apply
	_ = godotenv.Load()

	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds the flags local to a sub command.
func bindCommandFlags(cmd *cobra.Command) {
	bind := func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		if err := viper.BindPFlag(key, f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(key); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.PersistentFlags().VisitAll(bind)
}
