// Package postgres opens the PostgreSQL connection the repository runs on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/postgres/migrations"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultSSLMode = "disable"
	rootDatabase   = "postgres"
	pingTimeout    = 10 * time.Second
)

var validSSLModes = []string{
	"disable",
	"require",
	"verify-ca",
	"verify-full",
}

type PostgresConfig struct {
	Host                string
	Port                int
	Username            string
	Password            string
	DbName              string
	CreateDbIfNotExists bool
	SchemaName          string
	SSLMode             string
	SSLCert             string
	SSLKey              string
	SSLRootCert         string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:            dbCfg.Host,
		Port:            dbCfg.Port,
		Username:        dbCfg.User,
		Password:        dbCfg.Password,
		DbName:          dbCfg.DbName,
		SchemaName:      dbCfg.SchemaName,
		SSLMode:         dbCfg.SSLMode,
		SSLCert:         dbCfg.SSLCert,
		SSLKey:          dbCfg.SSLKey,
		SSLRootCert:     dbCfg.SSLRootCert,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	}
}

// quoteValue quotes a keyword/value connection parameter when it holds spaces,
// quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

// connectionString builds the keyword/value string lib/pq connects with, for
// dbName instead of cfg.DbName.
func connectionString(cfg *PostgresConfig, dbName string) (string, error) {
	sslMode := defaultSSLMode
	if cfg.SSLMode != "" {
		if !slices.Contains(validSSLModes, cfg.SSLMode) {
			return "", fmt.Errorf("invalid ssl mode: %s. Must be one of: %s", cfg.SSLMode, strings.Join(validSSLModes, ", "))
		}
		sslMode = cfg.SSLMode
	}

	params := [][2]string{
		{"host", cfg.Host},
		{"port", fmt.Sprintf("%d", cfg.Port)},
		{"dbname", dbName},
		{"sslmode", sslMode},
		{"TimeZone", "UTC"},
	}
	if cfg.Username != "" {
		params = append(params, [2]string{"user", cfg.Username})
	}
	if cfg.Password != "" {
		params = append(params, [2]string{"password", cfg.Password})
	}
	if sslMode != defaultSSLMode {
		for _, p := range [][2]string{{"sslcert", cfg.SSLCert}, {"sslkey", cfg.SSLKey}, {"sslrootcert", cfg.SSLRootCert}} {
			if p[1] != "" {
				params = append(params, p)
			}
		}
	}
	if cfg.SchemaName != "" {
		params = append(params, [2]string{"search_path", cfg.SchemaName})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s=%s", p[0], quoteValue(p[1])))
	}
	return strings.Join(parts, " "), nil
}

func open(cfg *PostgresConfig, dbName string) (*sql.DB, error) {
	connStr, err := connectionString(cfg, dbName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dbName)
	}
	return db, nil
}

// withRootConnection runs fn on the maintenance database of the server.
func withRootConnection(cfg *PostgresConfig, fn func(db *sql.DB) error) error {
	db, err := open(cfg, rootDatabase)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func CreateDatabaseIfNotExists(cfg *PostgresConfig) error {
	return withRootConnection(cfg, func(db *sql.DB) error {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)`, cfg.DbName).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "failed to check if database exists")
		}
		if exists {
			return nil
		}
		if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.DbName)); err != nil {
			return errors.Wrapf(err, "failed to create database %s", cfg.DbName)
		}
		return nil
	})
}

func DropDatabase(cfg *PostgresConfig, dbName string) error {
	return withRootConnection(cfg, func(db *sql.DB) error {
		if _, err := db.Exec("DROP DATABASE IF EXISTS " + pq.QuoteIdentifier(dbName)); err != nil {
			return errors.Wrapf(err, "failed to drop database %s", dbName)
		}
		return nil
	})
}

// NewPostgres opens the pool and checks the server is reachable.
func NewPostgres(cfg *PostgresConfig) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if err := CreateDatabaseIfNotExists(cfg); err != nil {
			return nil, err
		}
	}
	db, err := open(cfg, cfg.DbName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to reach database %s on %s:%d", cfg.DbName, cfg.Host, cfg.Port)
	}

	return &Postgres{
		Db: db,
	}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup gorm")
	}

	return db, nil
}

// GetTestPostgresDatabase creates a throwaway database with every migration applied.
func GetTestPostgresDatabase(cfg config.DatabaseConfig, l *zap.Logger) (string, *sql.DB, *gorm.DB, error) {
	testDbName, err := tests.GenerateTestDbName()
	if err != nil {
		return "", nil, nil, err
	}
	cfg.DbName = testDbName

	pgConfig := PostgresConfigFromDbConfig(&cfg)
	pgConfig.CreateDbIfNotExists = true

	pg, err := NewPostgres(pgConfig)
	if err != nil {
		return testDbName, nil, nil, err
	}
	grm, err := NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return testDbName, nil, nil, err
	}
	if err := migrations.NewMigrator(pg.Db, grm, l).MigrateAll(); err != nil {
		return testDbName, nil, nil, err
	}
	return testDbName, pg.Db, grm, nil
}

func TeardownTestDatabase(dbname string, cfg *config.Config, db *gorm.DB, l *zap.Logger) {
	if rawDb, err := db.DB(); err == nil {
		_ = rawDb.Close()
	}

	if err := DropDatabase(PostgresConfigFromDbConfig(&cfg.DatabaseConfig), dbname); err != nil {
		l.Sugar().Errorw("Failed to delete test database", zap.Error(err))
	}
}
