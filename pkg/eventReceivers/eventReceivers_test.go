package eventReceivers

import (
	"context"
	"testing"
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/receiverManager"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/gnosis/tradingdb/pkg/relationalDb/memoryRepository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, hash string) (*eventDescription.Description, error) {
	return &eventDescription.Description{Title: "Who wins?", Outcomes: []string{"Home", "Away"}}, nil
}

var (
	oracle       = tests.Address(40)
	event        = tests.Address(41)
	outcomeToken = tests.Address(42)
	participant  = tests.Address(43)
)

func setup(t *testing.T, cfg *config.Config) (*receiverManager.ReceiverManager, relationalDb.Repository) {
	l := zap.NewNop()
	repo := memoryRepository.NewMemoryRepository()
	require.Nil(t, tests.Seed(context.Background(), repo,
		tests.CentralizedOracle(oracle, tests.Address(1)),
		tests.CategoricalEvent(event, oracle, 2),
		tests.OutcomeToken(outcomeToken, event, 0),
		tests.TournamentParticipant(participant, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)),
		tests.TournamentParticipantBalance(participant, decimal.Zero),
	))
	rm := receiverManager.NewReceiverManager(l, metrics.NewNoopMetricsSink())
	require.Nil(t, LoadEventReceivers(rm, repo, stubFetcher{}, cfg, l))
	return rm, repo
}

func participantBalance(t *testing.T, repo relationalDb.Repository) decimal.Decimal {
	balance, err := tests.Read(context.Background(), repo, func(tx relationalDb.Transaction) (*relationalDb.TournamentParticipantBalance, error) {
		return tx.GetTournamentParticipantBalance(participant)
	})
	require.Nil(t, err)
	return balance.Balance
}

func outcomeTokenSupply(t *testing.T, repo relationalDb.Repository) decimal.Decimal {
	token, err := tests.Read(context.Background(), repo, func(tx relationalDb.Transaction) (*relationalDb.OutcomeToken, error) {
		return tx.GetOutcomeToken(outcomeToken)
	})
	require.Nil(t, err)
	return token.TotalSupply
}

func Test_LoadEventReceivers(t *testing.T) {
	ctx := context.Background()

	t.Run("Should register a receiver for every decodable event", func(t *testing.T) {
		rm, _ := setup(t, tests.GetConfig())

		assert.Len(t, rm.Receivers, 10)
		for _, name := range chainEvents.EventNames() {
			assert.True(t, rm.IsKnownEvent(name), name)
		}
	})
	t.Run("Should route an outcome assignment to the owner of the address only", func(t *testing.T) {
		rm, repo := setup(t, tests.GetConfig())

		res, err := rm.HandleEvent(ctx, tests.NewEvent(chainEvents.EventName_OutcomeAssignment, oracle, &chainEvents.OutcomeAssignment{Outcome: 1}), tests.Block(10))
		require.Nil(t, err)
		assert.Len(t, res, 1)
		assert.Contains(t, res, "CentralizedOracleInstanceReceiver")

		stored, err := tests.Read(ctx, repo, func(tx relationalDb.Transaction) (*relationalDb.Event, error) {
			return tx.GetEvent(event)
		})
		require.Nil(t, err)
		assert.False(t, stored.IsWinningOutcomeSet)

		res, err = rm.HandleEvent(ctx, tests.NewEvent(chainEvents.EventName_OutcomeAssignment, event, &chainEvents.OutcomeAssignment{Outcome: 1}), tests.Block(11))
		require.Nil(t, err)
		assert.Len(t, res, 1)
		assert.Contains(t, res, "EventInstanceReceiver")
	})
	t.Run("Should keep outcome token movements out of tournament balances", func(t *testing.T) {
		for _, tokenAddress := range []string{tests.TournamentToken, ""} {
			cfg := tests.GetConfig()
			cfg.TournamentConfig.TokenAddress = tokenAddress
			rm, repo := setup(t, cfg)

			res, err := rm.HandleEvent(ctx, tests.NewEvent(chainEvents.EventName_Issuance, outcomeToken, &chainEvents.Issuance{
				Owner:  participant,
				Amount: tests.Dec("100"),
			}), tests.Block(12))
			require.Nil(t, err)
			assert.Len(t, res, 1)
			assert.Contains(t, res, "OutcomeTokenInstanceReceiver")
			assert.True(t, outcomeTokenSupply(t, repo).Equal(tests.Dec("100")))
			assert.True(t, participantBalance(t, repo).IsZero())

			_, err = rm.HandleEvent(ctx, tests.NewEvent(chainEvents.EventName_Revocation, outcomeToken, &chainEvents.Revocation{
				Owner:  participant,
				Amount: tests.Dec("100"),
			}), tests.Block(13))
			require.Nil(t, err)
			assert.True(t, outcomeTokenSupply(t, repo).IsZero())
			assert.True(t, participantBalance(t, repo).IsZero())
		}
	})
	t.Run("Should route tournament token movements to participant balances only", func(t *testing.T) {
		rm, repo := setup(t, tests.GetConfig())

		res, err := rm.HandleEvent(ctx, tests.NewEvent(chainEvents.EventName_Issuance, tests.TournamentToken, &chainEvents.Issuance{
			Owner:  participant,
			Amount: tests.Dec("100"),
		}), tests.Block(14))
		require.Nil(t, err)
		assert.Len(t, res, 1)
		assert.Contains(t, res, "TournamentTokenReceiver")
		assert.True(t, participantBalance(t, repo).Equal(tests.Dec("100")))
		assert.True(t, outcomeTokenSupply(t, repo).IsZero())
	})
}
