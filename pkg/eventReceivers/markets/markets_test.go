package markets

import (
	"context"
	"testing"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/gnosis/tradingdb/pkg/relationalDb/memoryRepository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	oracleAddress  = tests.Address(1)
	eventAddress   = tests.Address(2)
	marketAddress  = tests.Address(3)
	factoryAddress = tests.Address(4)
	creator        = tests.Address(5)
	trader         = tests.Address(6)
)

func setup() (*memoryRepository.MemoryRepository, *config.Config, *zap.Logger) {
	return memoryRepository.NewMemoryRepository(), tests.GetConfig(), zap.NewNop()
}

func getMarket(t *testing.T, repo relationalDb.Repository, address string) *relationalDb.Market {
	market, err := tests.Read(context.Background(), repo, func(tx relationalDb.Transaction) (*relationalDb.Market, error) {
		return tx.GetMarket(address)
	})
	require.Nil(t, err)
	return market
}

func creationEvent(marketMaker string) *chainEvents.Event {
	return tests.NewEvent(chainEvents.EventName_StandardMarketCreation, factoryAddress, &chainEvents.StandardMarketCreation{
		Creator:       creator,
		Oracle:        oracleAddress,
		MarketMaker:   marketMaker,
		Fee:           decimal.Zero,
		EventContract: eventAddress,
		Market:        marketAddress,
	})
}

func Test_MarketFactoryReceiver(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create a market with a zero sold vector", func(t *testing.T) {
		repo, cfg, l := setup()
		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.CategoricalEvent(eventAddress, oracleAddress, 3),
		))
		r := NewMarketFactoryReceiver(repo, cfg, l)

		res, err := r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(10))
		assert.Nil(t, err)
		assert.NotNil(t, res)

		market := getMarket(t, repo, marketAddress)
		assert.Equal(t, relationalDb.MarketStage_Created, market.Stage)
		assert.True(t, market.Funding.IsZero())
		assert.Len(t, market.NetOutcomeTokensSold, 3)
		for _, q := range market.NetOutcomeTokensSold {
			assert.True(t, q.IsZero())
		}
		assert.Equal(t, factoryAddress, market.FactoryAddress)
		assert.Equal(t, uint64(10), market.CreationBlock)
	})
	t.Run("Should accept the market maker with a prefix and upper case", func(t *testing.T) {
		repo, cfg, l := setup()
		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.CategoricalEvent(eventAddress, oracleAddress, 2),
		))
		r := NewMarketFactoryReceiver(repo, cfg, l)

		res, err := r.Save(ctx, creationEvent("0x2F1D0C6E5B9A7F3C8E4D1A6B0C9F2E7D3A5B8C1E"), nil)
		assert.Nil(t, err)
		assert.NotNil(t, res)
	})
	t.Run("Should ignore markets with another market maker", func(t *testing.T) {
		repo, cfg, l := setup()
		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.CategoricalEvent(eventAddress, oracleAddress, 2),
		))
		r := NewMarketFactoryReceiver(repo, cfg, l)

		res, err := r.Save(ctx, creationEvent(tests.Address(99)), tests.Block(10))
		assert.Nil(t, err)
		assert.Nil(t, res)

		_, err = tests.Read(ctx, repo, func(tx relationalDb.Transaction) (*relationalDb.Market, error) {
			return tx.GetMarket(marketAddress)
		})
		assert.ErrorIs(t, err, relationalDb.ErrNotFound)
	})
	t.Run("Should ignore markets on missing or scalar events", func(t *testing.T) {
		repo, cfg, l := setup()
		r := NewMarketFactoryReceiver(repo, cfg, l)

		res, err := r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(10))
		assert.Nil(t, err)
		assert.Nil(t, res)

		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.ScalarEvent(eventAddress, oracleAddress, tests.Dec("0"), tests.Dec("100")),
		))
		res, err = r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(10))
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Should keep trading state when the creation is delivered again", func(t *testing.T) {
		repo, cfg, l := setup()
		traded := tests.Market(marketAddress, eventAddress, 2, tests.Dec("1000"))
		traded.NetOutcomeTokensSold[0] = tests.Dec("15")
		traded.CollectedFees = tests.Dec("3")
		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.CategoricalEvent(eventAddress, oracleAddress, 2),
			traded,
		))
		r := NewMarketFactoryReceiver(repo, cfg, l)

		_, err := r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(11))
		assert.Nil(t, err)

		market := getMarket(t, repo, marketAddress)
		assert.Equal(t, relationalDb.MarketStage_Funded, market.Stage)
		assert.True(t, market.Funding.Equal(tests.Dec("1000")))
		assert.True(t, market.NetOutcomeTokensSold[0].Equal(tests.Dec("15")))
		assert.True(t, market.CollectedFees.Equal(tests.Dec("3")))
		assert.Equal(t, uint64(11), market.CreationBlock)
	})
	t.Run("Should recreate a deleted market", func(t *testing.T) {
		repo, cfg, l := setup()
		require.Nil(t, tests.Seed(ctx, repo,
			tests.CentralizedOracle(oracleAddress, creator),
			tests.CategoricalEvent(eventAddress, oracleAddress, 2),
		))
		r := NewMarketFactoryReceiver(repo, cfg, l)

		_, err := r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(10))
		require.Nil(t, err)
		require.Nil(t, repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
			return tx.DeleteMarket(marketAddress)
		}))

		res, err := r.Save(ctx, creationEvent(tests.LmsrMarketMaker), tests.Block(10))
		assert.Nil(t, err)
		assert.NotNil(t, res)
		assert.Len(t, getMarket(t, repo, marketAddress).NetOutcomeTokensSold, 2)
	})
}

func seedFundedMarket(t *testing.T, repo relationalDb.Repository, outcomeCount int, funding decimal.Decimal) {
	require.Nil(t, tests.Seed(context.Background(), repo,
		tests.CentralizedOracle(oracleAddress, creator),
		tests.CategoricalEvent(eventAddress, oracleAddress, outcomeCount),
		tests.Market(marketAddress, eventAddress, outcomeCount, funding),
	))
}

func purchase(txHash string, index int, count string, cost string, fees string) *chainEvents.Event {
	e := tests.NewEvent(chainEvents.EventName_OutcomeTokenPurchase, marketAddress, &chainEvents.OutcomeTokenPurchase{
		Buyer:             trader,
		OutcomeTokenIndex: index,
		OutcomeTokenCount: tests.Dec(count),
		OutcomeTokenCost:  tests.Dec(cost),
		MarketFees:        tests.Dec(fees),
	})
	e.TransactionHash = txHash
	return e
}

func sale(txHash string, index int, count string, profit string, fees string) *chainEvents.Event {
	e := tests.NewEvent(chainEvents.EventName_OutcomeTokenSale, marketAddress, &chainEvents.OutcomeTokenSale{
		Seller:             trader,
		OutcomeTokenIndex:  index,
		OutcomeTokenCount:  tests.Dec(count),
		OutcomeTokenProfit: tests.Dec(profit),
		MarketFees:         tests.Dec(fees),
	})
	e.TransactionHash = txHash
	return e
}

func Test_MarketInstanceReceiver(t *testing.T) {
	ctx := context.Background()
	oneEther := tests.Dec("1000000000000000000")

	t.Run("Should price a purchase from the post trade vector", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)

		res, err := r.Save(ctx, purchase(tests.TransactionHash(1), 0, "1584900000000000000", "100", "0"), tests.Block(20))
		assert.Nil(t, err)
		order, ok := res.(*relationalDb.BuyOrder)
		require.True(t, ok)
		require.Len(t, order.MarginalPrices, 2)
		assert.True(t, order.MarginalPrices[0].Round(4).Equal(tests.Dec("0.75")), order.MarginalPrices[0].String())
		assert.True(t, order.MarginalPrices[1].Round(4).Equal(tests.Dec("0.25")), order.MarginalPrices[1].String())
		assert.Equal(t, uint64(20), order.BlockNumber)

		market := getMarket(t, repo, marketAddress)
		assert.True(t, market.NetOutcomeTokensSold[0].Equal(tests.Dec("1584900000000000000")))
		assert.True(t, market.NetOutcomeTokensSold[1].IsZero())
	})
	t.Run("Should charge cost plus fees and collect fees once", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)
		event := purchase(tests.TransactionHash(2), 1, "500", "260", "7")

		res, err := r.Save(ctx, event, tests.Block(20))
		assert.Nil(t, err)
		order := res.(*relationalDb.BuyOrder)
		assert.True(t, order.Cost.Equal(tests.Dec("267")))
		assert.True(t, order.OutcomeTokenCost.Equal(tests.Dec("260")))
		assert.True(t, getMarket(t, repo, marketAddress).CollectedFees.Equal(tests.Dec("7")))

		res, err = r.Save(ctx, event, tests.Block(20))
		assert.Nil(t, err)
		assert.Nil(t, res)

		market := getMarket(t, repo, marketAddress)
		assert.True(t, market.CollectedFees.Equal(tests.Dec("7")))
		assert.True(t, market.NetOutcomeTokensSold[1].Equal(tests.Dec("500")))
	})
	t.Run("Should pay profit minus fees on a sale", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)

		_, err := r.Save(ctx, purchase(tests.TransactionHash(3), 0, "1000", "600", "6"), nil)
		require.Nil(t, err)
		res, err := r.Save(ctx, sale(tests.TransactionHash(4), 0, "400", "250", "2"), nil)
		assert.Nil(t, err)
		order, ok := res.(*relationalDb.SellOrder)
		require.True(t, ok)
		assert.True(t, order.Profit.Equal(tests.Dec("248")))
		assert.True(t, order.OutcomeTokenCount.Equal(tests.Dec("400")))

		market := getMarket(t, repo, marketAddress)
		assert.True(t, market.NetOutcomeTokensSold[0].Equal(tests.Dec("600")))
		assert.True(t, market.CollectedFees.Equal(tests.Dec("8")))

		res, err = r.Save(ctx, sale(tests.TransactionHash(4), 0, "400", "250", "2"), nil)
		assert.Nil(t, err)
		assert.Nil(t, res)
		assert.True(t, getMarket(t, repo, marketAddress).NetOutcomeTokensSold[0].Equal(tests.Dec("600")))
	})
	t.Run("Should warn when the reported amount differs from the market maker cost", func(t *testing.T) {
		const message = "Reported trade amount differs from market maker cost"
		cases := []struct {
			name  string
			event *chainEvents.Event
			warns int
		}{
			{"consistent purchase", purchase(tests.TransactionHash(10), 0, "1584900000000000000", "999953124712978633", "0"), 0},
			{"inconsistent purchase", purchase(tests.TransactionHash(11), 0, "1584900000000000000", "100", "0"), 1},
			{"consistent sale", sale(tests.TransactionHash(12), 0, "1584900000000000000", "584946875287021366", "0"), 0},
		}
		for _, c := range cases {
			repo, _, _ := setup()
			seedFundedMarket(t, repo, 2, oneEther)
			core, logs := observer.New(zapcore.WarnLevel)
			r := NewMarketInstanceReceiver(repo, zap.New(core))

			_, err := r.Save(ctx, c.event, nil)
			require.Nil(t, err, c.name)
			assert.Equal(t, c.warns, logs.FilterMessage(message).Len(), c.name)
		}
	})
	t.Run("Should fail trades outside the sold vector", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)

		_, err := r.Save(ctx, purchase(tests.TransactionHash(5), 2, "1", "1", "0"), nil)
		assert.NotNil(t, err)

		_, err = tests.Read(ctx, repo, func(tx relationalDb.Transaction) (*relationalDb.BuyOrder, error) {
			return tx.GetBuyOrder(tests.TransactionHash(5))
		})
		assert.ErrorIs(t, err, relationalDb.ErrNotFound)
	})
	t.Run("Should fail trades without a transaction hash", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)

		_, err := r.Save(ctx, purchase("", 0, "1", "1", "0"), nil)
		assert.ErrorIs(t, err, ErrMissingTransactionHash)
	})
	t.Run("Should skip prices on an unfunded market", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 3, decimal.Zero)
		r := NewMarketInstanceReceiver(repo, l)

		res, err := r.Save(ctx, purchase(tests.TransactionHash(6), 1, "10", "5", "0"), nil)
		assert.Nil(t, err)
		assert.Empty(t, res.(*relationalDb.BuyOrder).MarginalPrices)
	})
	t.Run("Should do nothing for unknown markets", func(t *testing.T) {
		repo, _, l := setup()
		r := NewMarketInstanceReceiver(repo, l)

		res, err := r.Save(ctx, purchase(tests.TransactionHash(7), 0, "1", "1", "0"), nil)
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Should only move the stage forward", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, decimal.Zero)
		r := NewMarketInstanceReceiver(repo, l)
		funding := tests.NewEvent(chainEvents.EventName_MarketFunding, marketAddress, &chainEvents.MarketFunding{Funding: tests.Dec("100")})
		closing := tests.NewEvent(chainEvents.EventName_MarketClosing, marketAddress, &chainEvents.MarketClosing{})

		_, err := r.Save(ctx, funding, nil)
		require.Nil(t, err)
		market := getMarket(t, repo, marketAddress)
		assert.Equal(t, relationalDb.MarketStage_Funded, market.Stage)
		assert.True(t, market.Funding.Equal(tests.Dec("100")))

		for i := 0; i < 2; i++ {
			_, err = r.Save(ctx, closing, nil)
			require.Nil(t, err)
			assert.Equal(t, relationalDb.MarketStage_Closed, getMarket(t, repo, marketAddress).Stage)
		}

		_, err = r.Save(ctx, funding, nil)
		require.Nil(t, err)
		market = getMarket(t, repo, marketAddress)
		assert.Equal(t, relationalDb.MarketStage_Closed, market.Stage)
		assert.True(t, market.Funding.Equal(tests.Dec("200")))
	})
	t.Run("Should accumulate withdrawn fees without a stage change", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)
		withdrawal := tests.NewEvent(chainEvents.EventName_FeeWithdrawal, marketAddress, &chainEvents.FeeWithdrawal{Fees: tests.Dec("4")})

		_, err := r.Save(ctx, withdrawal, nil)
		require.Nil(t, err)
		_, err = r.Save(ctx, withdrawal, nil)
		require.Nil(t, err)

		market := getMarket(t, repo, marketAddress)
		assert.True(t, market.WithdrawnFees.Equal(tests.Dec("8")))
		assert.Equal(t, relationalDb.MarketStage_Funded, market.Stage)
	})
	t.Run("Should skip a log that was already applied", func(t *testing.T) {
		repo, _, l := setup()
		seedFundedMarket(t, repo, 2, oneEther)
		r := NewMarketInstanceReceiver(repo, l)
		withdrawal := tests.NewLoggedEvent(chainEvents.EventName_FeeWithdrawal, marketAddress, tests.TransactionHash(8), 3, &chainEvents.FeeWithdrawal{Fees: tests.Dec("4")})

		res, err := r.Save(ctx, withdrawal, nil)
		assert.Nil(t, err)
		assert.NotNil(t, res)
		res, err = r.Save(ctx, withdrawal, nil)
		assert.Nil(t, err)
		assert.Nil(t, res)
		assert.True(t, getMarket(t, repo, marketAddress).WithdrawnFees.Equal(tests.Dec("4")))
	})
}
