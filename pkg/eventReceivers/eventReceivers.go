package eventReceivers

import (
	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/centralizedOracles"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/events"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/markets"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/outcomeTokens"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/receiverManager"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/tournamentParticipants"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"go.uber.org/zap"
)

// LoadEventReceivers registers every receiver with the manager. Factories run
// before instance receivers when both are interested in the same event.
func LoadEventReceivers(
	rm *receiverManager.ReceiverManager,
	repo relationalDb.Repository,
	fetcher eventDescription.Fetcher,
	cfg *config.Config,
	l *zap.Logger,
) error {
	resolver := eventDescription.NewResolver(fetcher, l)

	receivers := []types.IEventReceiver{
		centralizedOracles.NewCentralizedOracleFactoryReceiver(repo, resolver, l),
		events.NewEventFactoryReceiver(repo, l),
		markets.NewMarketFactoryReceiver(repo, cfg, l),
		centralizedOracles.NewCentralizedOracleInstanceReceiver(repo, l),
		events.NewEventInstanceReceiver(repo, l),
		outcomeTokens.NewOutcomeTokenInstanceReceiver(repo, cfg, l),
		markets.NewMarketInstanceReceiver(repo, l),
		tournamentParticipants.NewGenericIdentityManagerReceiver(repo, l),
		tournamentParticipants.NewUportIdentityManagerReceiver(repo, l),
		tournamentParticipants.NewTournamentTokenReceiver(repo, cfg, l),
	}
	for i, r := range receivers {
		if err := rm.RegisterReceiver(r, i); err != nil {
			l.Sugar().Errorw("Failed to register receiver",
				zap.String("receiver", r.GetReceiverName()),
				zap.Error(err),
			)
			return err
		}
	}
	for _, name := range chainEvents.EventNames() {
		if !rm.IsKnownEvent(name) {
			l.Sugar().Warnw("No receiver handles event", zap.String("event", name))
		}
	}
	return nil
}
