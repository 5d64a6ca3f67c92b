package postgres

import (
	"os"
	"testing"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/logger"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/postgres/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ConnectionString(t *testing.T) {
	t.Run("Should build a connection string with auth and schema", func(t *testing.T) {
		s, err := connectionString(&PostgresConfig{
			Host:       "localhost",
			Port:       5432,
			Username:   "trading",
			Password:   "secret",
			SchemaName: "public",
		}, "tradingdb")
		assert.Nil(t, err)
		assert.Equal(t, "host=localhost port=5432 dbname=tradingdb sslmode=disable TimeZone=UTC user=trading password=secret search_path=public", s)
	})
	t.Run("Should quote values with spaces and quotes", func(t *testing.T) {
		s, err := connectionString(&PostgresConfig{Host: "localhost", Port: 5432, Password: `it's a secret`}, "tradingdb")
		assert.Nil(t, err)
		assert.Contains(t, s, `password='it\'s a secret'`)
	})
	t.Run("Should only pass certificates when ssl is enabled", func(t *testing.T) {
		cfg := &PostgresConfig{Host: "db", Port: 5432, SSLCert: "/certs/client.crt"}
		s, err := connectionString(cfg, "tradingdb")
		assert.Nil(t, err)
		assert.NotContains(t, s, "sslcert")

		cfg.SSLMode = "verify-full"
		s, err = connectionString(cfg, "tradingdb")
		assert.Nil(t, err)
		assert.Contains(t, s, "sslmode=verify-full")
		assert.Contains(t, s, "sslcert=/certs/client.crt")
	})
	t.Run("Should reject an unknown ssl mode", func(t *testing.T) {
		_, err := connectionString(&PostgresConfig{Host: "localhost", Port: 5432, SSLMode: "sometimes"}, "x")
		assert.NotNil(t, err)
	})
	t.Run("Should carry pool settings from the database config", func(t *testing.T) {
		cfg := PostgresConfigFromDbConfig(&config.DatabaseConfig{
			Host:            "db",
			DbName:          "tradingdb",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		assert.Equal(t, 10, cfg.MaxOpenConns)
		assert.Equal(t, 5, cfg.MaxIdleConns)
		assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	})
}

func Test_Postgres(t *testing.T) {
	if !tests.HasTestDatabase() {
		t.Skip("TRADINGDB_DATABASE_HOST not set")
	}
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()
	cfg.DatabaseConfig.MaxOpenConns = 4

	testDbName, err := tests.GenerateTestDbName()
	require.Nil(t, err)
	cfg.DatabaseConfig.DbName = testDbName

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	pgConfig := PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true
	pg, err := NewPostgres(pgConfig)
	require.Nil(t, err)

	grm, err := NewGormFromPostgresConnection(pg.Db)
	require.Nil(t, err)

	t.Run("Should apply the pool settings", func(t *testing.T) {
		assert.Equal(t, 4, pg.Db.Stats().MaxOpenConnections)
	})
	t.Run("Should run every migration", func(t *testing.T) {
		migrator := migrations.NewMigrator(pg.Db, grm, l)
		assert.Nil(t, migrator.MigrateAll())
	})
	t.Run("Should not rerun migrations", func(t *testing.T) {
		migrator := migrations.NewMigrator(pg.Db, grm, l)
		assert.Nil(t, migrator.MigrateAll())

		var count int64
		grm.Model(&migrations.Migrations{}).Count(&count)
		assert.Equal(t, int64(len(migrations.GetMigrations())), count)
	})

	t.Cleanup(func() {
		TeardownTestDatabase(testDbName, cfg, grm, l)
	})
}
