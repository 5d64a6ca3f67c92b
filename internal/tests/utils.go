package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/google/uuid"
)

// GetDbConfigFromEnv reads the database settings used by tests that need a live postgres.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv("TRADINGDB_DATABASE_PORT"))
	if err != nil || port == 0 {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:     os.Getenv("TRADINGDB_DATABASE_HOST"),
		Port:     port,
		User:     os.Getenv("TRADINGDB_DATABASE_USER"),
		Password: os.Getenv("TRADINGDB_DATABASE_PASSWORD"),
		DbName:   "tradingdb_test",
	}
}

// HasTestDatabase reports whether a postgres instance is configured for tests.
func HasTestDatabase() bool {
	return os.Getenv("TRADINGDB_DATABASE_HOST") != ""
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// GetConfig returns a configuration valid for the receivers without a database.
func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.MarketsConfig.LmsrMarketMaker = LmsrMarketMaker
	cfg.TournamentConfig.TokenAddress = TournamentToken
	cfg.TournamentConfig.IssuanceBatchSize = 50
	cfg.IpfsConfig.Url = "http://ipfs.test"
	return cfg
}
