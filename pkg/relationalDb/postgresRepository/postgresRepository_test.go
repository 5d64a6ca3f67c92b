package postgresRepository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/logger"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/postgres"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := config.NewConfig()
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}

	return dbname, grm, l, cfg, nil
}

func Test_PostgresRepository(t *testing.T) {
	if !tests.HasTestDatabase() {
		t.Skip("TRADINGDB_DATABASE_HOST not set")
	}
	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	repo := NewPostgresRepository(grm, l)
	ctx := context.Background()

	t.Run("Should upsert and read back a market", func(t *testing.T) {
		market := &relationalDb.Market{
			Contract: relationalDb.Contract{
				Address:      "6c5fcfd4acbe28d5a4e4c48e1d3d3ad4c23fdcaa",
				Creator:      "90f8bf6a479f320ead074411a4b0e7944ea8c9c1",
				CreationTime: time.Now().UTC(),
			},
			EventAddress:         "e7e5fee3b0ad7f1ed8bbd21df0a0bd5b42b1ad45",
			MarketMaker:          tests.LmsrMarketMaker,
			Stage:                relationalDb.MarketStage_Created,
			NetOutcomeTokensSold: datatypes.JSONSlice[decimal.Decimal]{decimal.Zero, decimal.Zero},
		}
		err := repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			return tx.UpsertMarket(market)
		})
		assert.Nil(t, err)

		err = repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			m, err := tx.GetMarket(market.Address)
			if err != nil {
				return err
			}
			assert.Equal(t, market.EventAddress, m.EventAddress)
			assert.Len(t, m.NetOutcomeTokensSold, 2)

			m.Funding = decimal.NewFromInt(100)
			m.Stage = relationalDb.MarketStage_Funded
			return tx.UpsertMarket(m)
		})
		assert.Nil(t, err)

		err = repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			m, err := tx.GetMarket(market.Address)
			if err != nil {
				return err
			}
			assert.True(t, m.Funding.Equal(decimal.NewFromInt(100)))
			assert.Equal(t, relationalDb.MarketStage_Funded, m.Stage)
			return nil
		})
		assert.Nil(t, err)
	})
	t.Run("Should translate missing rows to ErrNotFound", func(t *testing.T) {
		err := repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			_, err := tx.GetOracle("missing")
			return err
		})
		assert.True(t, errors.Is(err, relationalDb.ErrNotFound))
	})
	t.Run("Should roll back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			if err := tx.UpsertTournamentParticipant(&relationalDb.TournamentParticipant{Address: "rolledback", Created: time.Now().UTC()}); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		err = repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			_, err := tx.GetTournamentParticipant("rolledback")
			return err
		})
		assert.True(t, errors.Is(err, relationalDb.ErrNotFound))
	})
	t.Run("Should report already processed events", func(t *testing.T) {
		var first, second bool
		assert.Nil(t, repo.WithTransaction(ctx, func(tx relationalDb.Transaction) (err error) {
			first, err = tx.MarkEventProcessed("0xabc", 3, "EventInstanceReceiver")
			return err
		}))
		assert.Nil(t, repo.WithTransaction(ctx, func(tx relationalDb.Transaction) (err error) {
			second, err = tx.MarkEventProcessed("0xabc", 3, "EventInstanceReceiver")
			return err
		}))
		assert.False(t, first)
		assert.True(t, second)
	})
	t.Run("Should reject negative balances", func(t *testing.T) {
		err := repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			return tx.UpsertOutcomeTokenBalance(&relationalDb.OutcomeTokenBalance{
				OutcomeTokenAddress: "t",
				OwnerAddress:        "o",
				Balance:             decimal.NewFromInt(-1),
			})
		})
		assert.NotNil(t, err)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
