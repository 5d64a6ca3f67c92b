package tournamentParticipants

import (
	"context"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/ledger"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TournamentTokenReceiver keeps the balances of tournament participants. Movements
// involving addresses outside the tournament are ignored for the non participant side.
type TournamentTokenReceiver struct {
	base.BaseEventReceiver
	tokenAddress string
	handlers     types.EventHandlers
}

func NewTournamentTokenReceiver(repo relationalDb.Repository, cfg *config.Config, l *zap.Logger) *TournamentTokenReceiver {
	r := &TournamentTokenReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
		tokenAddress: config.NormalizeAddress(cfg.TournamentConfig.TokenAddress),
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_Issuance:   r.handleIssuance,
		chainEvents.EventName_Revocation: r.handleRevocation,
		chainEvents.EventName_Transfer:   r.handleTransfer,
	}
	return r
}

func (r *TournamentTokenReceiver) GetReceiverName() string {
	return "TournamentTokenReceiver"
}

func (r *TournamentTokenReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

// IsInterestingEvent accepts only the configured token. Without one, nothing is
// accepted since outcome tokens emit the same event names.
func (r *TournamentTokenReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	if r.tokenAddress == "" || event.Address != r.tokenAddress {
		return false
	}
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *TournamentTokenReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

// getParticipantBalance returns nil when address is not a participant.
func (r *TournamentTokenReceiver) getParticipantBalance(tx relationalDb.Transaction, event *chainEvents.Event, address string) (*relationalDb.TournamentParticipantBalance, error) {
	if _, err := tx.GetTournamentParticipant(address); err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Debugw("Not a tournament participant",
				zap.String("participant", address),
				zap.String("event", event.Name),
			)
			return nil, nil
		}
		return nil, err
	}

	balance, err := tx.GetTournamentParticipantBalance(address)
	if err != nil {
		if base.IsNotFound(err) {
			return &relationalDb.TournamentParticipantBalance{
				ParticipantAddress: address,
				Balance:            decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return balance, nil
}

func (r *TournamentTokenReceiver) handleIssuance(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Issuance](event)
	if err != nil {
		return nil, err
	}
	balance, err := r.getParticipantBalance(tx, event, p.Owner)
	if err != nil || balance == nil {
		return nil, err
	}

	if balance.Balance, err = ledger.Issue(balance.Balance, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to issue tournament tokens to %s", p.Owner)
	}
	if err := tx.UpsertTournamentParticipantBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (r *TournamentTokenReceiver) handleRevocation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Revocation](event)
	if err != nil {
		return nil, err
	}
	balance, err := r.getParticipantBalance(tx, event, p.Owner)
	if err != nil || balance == nil {
		return nil, err
	}

	if balance.Balance, err = ledger.Revoke(balance.Balance, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to revoke tournament tokens from %s", p.Owner)
	}
	if err := tx.UpsertTournamentParticipantBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// handleTransfer debits the sender and credits the receiver, each only when it is a participant.
func (r *TournamentTokenReceiver) handleTransfer(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Transfer](event)
	if err != nil {
		return nil, err
	}
	if p.From == p.To {
		return nil, nil
	}

	from, err := r.getParticipantBalance(tx, event, p.From)
	if err != nil {
		return nil, err
	}
	to, err := r.getParticipantBalance(tx, event, p.To)
	if err != nil {
		return nil, err
	}

	updated := make([]*relationalDb.TournamentParticipantBalance, 0, 2)
	if from != nil {
		if from.Balance, err = ledger.Revoke(from.Balance, p.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to debit tournament tokens from %s", p.From)
		}
		if err := tx.UpsertTournamentParticipantBalance(from); err != nil {
			return nil, err
		}
		updated = append(updated, from)
	}
	if to != nil {
		if to.Balance, err = ledger.Issue(to.Balance, p.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to credit tournament tokens to %s", p.To)
		}
		if err := tx.UpsertTournamentParticipantBalance(to); err != nil {
			return nil, err
		}
		updated = append(updated, to)
	}
	if len(updated) == 0 {
		return nil, nil
	}
	return updated, nil
}
