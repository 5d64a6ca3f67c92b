package tournamentParticipants

import (
	"context"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// upsertParticipant registers address as a tournament participant. A participant that
// already exists keeps its creation time and issuance flag.
func upsertParticipant(
	tx relationalDb.Transaction,
	address string,
	block *chainEvents.Block,
	fill func(p *relationalDb.TournamentParticipant),
) (*relationalDb.TournamentParticipant, error) {
	participant, err := tx.GetTournamentParticipant(address)
	if err != nil && !base.IsNotFound(err) {
		return nil, err
	}
	if participant == nil {
		participant = &relationalDb.TournamentParticipant{
			Address:       address,
			Created:       chainEvents.BlockTime(block),
			CreationBlock: chainEvents.BlockNumber(block),
		}
	}
	if fill != nil {
		fill(participant)
	}
	if err := tx.UpsertTournamentParticipant(participant); err != nil {
		return nil, err
	}

	if _, err := tx.GetTournamentParticipantBalance(address); err != nil {
		if !base.IsNotFound(err) {
			return nil, err
		}
		if err := tx.UpsertTournamentParticipantBalance(&relationalDb.TournamentParticipantBalance{
			ParticipantAddress: address,
			Balance:            decimal.Zero,
		}); err != nil {
			return nil, err
		}
	}
	return participant, nil
}

// GenericIdentityManagerReceiver registers participants that link a mainnet address.
type GenericIdentityManagerReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewGenericIdentityManagerReceiver(repo relationalDb.Repository, l *zap.Logger) *GenericIdentityManagerReceiver {
	r := &GenericIdentityManagerReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_AddressRegistration: r.handleAddressRegistration,
	}
	return r
}

func (r *GenericIdentityManagerReceiver) GetReceiverName() string {
	return "GenericIdentityManagerReceiver"
}

func (r *GenericIdentityManagerReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *GenericIdentityManagerReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *GenericIdentityManagerReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *GenericIdentityManagerReceiver) handleAddressRegistration(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.AddressRegistration](event)
	if err != nil {
		return nil, err
	}
	participant, err := upsertParticipant(tx, p.Registrant, block, func(tp *relationalDb.TournamentParticipant) {
		mainnet := p.RegisteredMainnetAddress
		tp.MainnetAddress = &mainnet
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Sugar().Debugw("Registered tournament participant",
		zap.String("address", participant.Address),
		zap.String("mainnetAddress", p.RegisteredMainnetAddress),
	)
	return participant, nil
}

// UportIdentityManagerReceiver registers participants from uPort identity creation.
type UportIdentityManagerReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewUportIdentityManagerReceiver(repo relationalDb.Repository, l *zap.Logger) *UportIdentityManagerReceiver {
	r := &UportIdentityManagerReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_IdentityCreated: r.handleIdentityCreated,
	}
	return r
}

func (r *UportIdentityManagerReceiver) GetReceiverName() string {
	return "UportIdentityManagerReceiver"
}

func (r *UportIdentityManagerReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *UportIdentityManagerReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *UportIdentityManagerReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *UportIdentityManagerReceiver) handleIdentityCreated(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.IdentityCreated](event)
	if err != nil {
		return nil, err
	}
	participant, err := upsertParticipant(tx, p.Identity, block, nil)
	if err != nil {
		return nil, err
	}
	return participant, nil
}
