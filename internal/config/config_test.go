package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		DatabaseConfig: DatabaseConfig{
			Host:   "localhost",
			Port:   5432,
			DbName: "tradingdb",
		},
		IpfsConfig: IpfsConfig{
			Url:     DefaultIpfsGatewayUrl,
			Timeout: 10 * time.Second,
		},
		MarketsConfig: MarketsConfig{
			LmsrMarketMaker: "2f2be9db638cb31d4143cbc1525b0e104f7ed597",
		},
		TournamentConfig: TournamentConfig{
			TokenIssuance:     decimal.RequireFromString("200000000000000000000"),
			IssuanceBatchSize: 50,
		},
	}
}

func Test_Config(t *testing.T) {
	t.Run("Should convert kebab case flags to snake case keys", func(t *testing.T) {
		assert.Equal(t, "markets.lmsr_market_maker", KebabToSnakeCase("markets.lmsr-market-maker"))
		assert.Equal(t, "debug", KebabToSnakeCase("debug"))
	})
	t.Run("Should normalize addresses", func(t *testing.T) {
		assert.Equal(t, "2f2be9db638cb31d4143cbc1525b0e104f7ed597", NormalizeAddress("0x2F2BE9db638cb31D4143cBc1525b0e104F7ed597"))
		assert.Equal(t, "abc", NormalizeAddress(" ABC "))
		assert.Equal(t, "", NormalizeAddress(""))
	})
	t.Run("Should accept a complete config", func(t *testing.T) {
		assert.Nil(t, validConfig().Validate())
	})
	t.Run("Should reject a config without a market maker", func(t *testing.T) {
		cfg := validConfig()
		cfg.MarketsConfig.LmsrMarketMaker = ""
		assert.NotNil(t, cfg.Validate())
	})
	t.Run("Should reject a market maker that is not an address", func(t *testing.T) {
		cfg := validConfig()
		cfg.MarketsConfig.LmsrMarketMaker = "not-an-address"
		assert.NotNil(t, cfg.Validate())
	})
	t.Run("Should reject a negative issuance amount", func(t *testing.T) {
		cfg := validConfig()
		cfg.TournamentConfig.TokenIssuance = decimal.NewFromInt(-1)
		assert.NotNil(t, cfg.Validate())
	})
	t.Run("Should reject an issuance amount that is not a number", func(t *testing.T) {
		viper.Set(TournamentTokenIssuance, "200 tokens")
		defer viper.Reset()

		cfg := validConfig()
		cfg.TournamentConfig = NewConfig().TournamentConfig
		cfg.TournamentConfig.IssuanceBatchSize = 50

		err := cfg.Validate()
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), TournamentTokenIssuance)
	})
	t.Run("Should read an issuance amount", func(t *testing.T) {
		viper.Set(TournamentTokenIssuance, "200000000000000000000")
		defer viper.Reset()

		cfg := validConfig()
		cfg.TournamentConfig = NewConfig().TournamentConfig
		cfg.TournamentConfig.IssuanceBatchSize = 50

		assert.Nil(t, cfg.Validate())
		assert.True(t, cfg.TournamentConfig.TokenIssuance.Equal(decimal.RequireFromString("200000000000000000000")))
	})
	t.Run("Should ignore database settings when validating without a database", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseConfig = DatabaseConfig{}
		assert.NotNil(t, cfg.Validate())
		assert.Nil(t, cfg.ValidateWithoutDatabase())
	})
}
