package outcomeTokens

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

// OutcomeTokenInstanceReceiver tracks supply and holder balances of outcome tokens.
// The tournament token shares these event names and is never handled here.
type OutcomeTokenInstanceReceiver struct {
	base.BaseEventReceiver
	tournamentToken string
	handlers        types.EventHandlers
}

func NewOutcomeTokenInstanceReceiver(repo relationalDb.Repository, cfg *config.Config, l *zap.Logger) *OutcomeTokenInstanceReceiver {
	r := &OutcomeTokenInstanceReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
		tournamentToken: config.NormalizeAddress(cfg.TournamentConfig.TokenAddress),
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_Issuance:   r.handleIssuance,
		chainEvents.EventName_Revocation: r.handleRevocation,
		chainEvents.EventName_Transfer:   r.handleTransfer,
	}
	return r
}

func (r *OutcomeTokenInstanceReceiver) GetReceiverName() string {
	return "OutcomeTokenInstanceReceiver"
}

func (r *OutcomeTokenInstanceReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *OutcomeTokenInstanceReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	if r.tournamentToken != "" && event.Address == r.tournamentToken {
		return false
	}
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *OutcomeTokenInstanceReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *OutcomeTokenInstanceReceiver) getOutcomeToken(tx relationalDb.Transaction, event *chainEvents.Event) (*relationalDb.OutcomeToken, error) {
	token, err := tx.GetOutcomeToken(event.Address)
	if err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Debugw("No outcome token at address",
				zap.String("address", event.Address),
				zap.String("event", event.Name),
			)
			return nil, nil
		}
		return nil, err
	}
	return token, nil
}

// getBalance returns the holder's balance, or a zero balance that has not been stored yet.
func getBalance(tx relationalDb.Transaction, token string, owner string) (*relationalDb.OutcomeTokenBalance, error) {
	balance, err := tx.GetOutcomeTokenBalance(token, owner)
	if err != nil {
		if base.IsNotFound(err) {
			return &relationalDb.OutcomeTokenBalance{
				OutcomeTokenAddress: token,
				OwnerAddress:        owner,
				Balance:             decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return balance, nil
}

func (r *OutcomeTokenInstanceReceiver) handleIssuance(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Issuance](event)
	if err != nil {
		return nil, err
	}
	token, err := r.getOutcomeToken(tx, event)
	if err != nil || token == nil {
		return nil, err
	}
	balance, err := getBalance(tx, token.Address, p.Owner)
	if err != nil {
		return nil, err
	}

	if token.TotalSupply, err = ledger.Issue(token.TotalSupply, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to issue outcome token %s", token.Address)
	}
	if balance.Balance, err = ledger.Issue(balance.Balance, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to issue outcome token %s to %s", token.Address, p.Owner)
	}

	if err := tx.UpsertOutcomeToken(token); err != nil {
		return nil, err
	}
	if err := tx.UpsertOutcomeTokenBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// handleRevocation fails when either the supply or the holder's balance would go negative.
func (r *OutcomeTokenInstanceReceiver) handleRevocation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Revocation](event)
	if err != nil {
		return nil, err
	}
	token, err := r.getOutcomeToken(tx, event)
	if err != nil || token == nil {
		return nil, err
	}
	balance, err := getBalance(tx, token.Address, p.Owner)
	if err != nil {
		return nil, err
	}

	if token.TotalSupply, err = ledger.Revoke(token.TotalSupply, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to revoke outcome token %s", token.Address)
	}
	if balance.Balance, err = ledger.Revoke(balance.Balance, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "failed to revoke outcome token %s from %s", token.Address, p.Owner)
	}

	if err := tx.UpsertOutcomeToken(token); err != nil {
		return nil, err
	}
	if err := tx.UpsertOutcomeTokenBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// handleTransfer moves balance between holders. Total supply is unchanged.
func (r *OutcomeTokenInstanceReceiver) handleTransfer(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.Transfer](event)
	if err != nil {
		return nil, err
	}
	token, err := r.getOutcomeToken(tx, event)
	if err != nil || token == nil {
		return nil, err
	}
	if p.From == p.To {
		r.Logger.Sugar().Debugw("Ignoring self transfer",
			zap.String("address", token.Address),
			zap.String("owner", p.From),
		)
		return nil, nil
	}

	from, err := getBalance(tx, token.Address, p.From)
	if err != nil {
		return nil, err
	}
	to, err := getBalance(tx, token.Address, p.To)
	if err != nil {
		return nil, err
	}
	if from.Balance, to.Balance, err = ledger.Transfer(from.Balance, to.Balance, p.Value); err != nil {
		return nil, errors.Wrapf(err, "failed to transfer outcome token %s from %s to %s", token.Address, p.From, p.To)
	}

	if err := tx.UpsertOutcomeTokenBalance(from); err != nil {
		return nil, err
	}
	if err := tx.UpsertOutcomeTokenBalance(to); err != nil {
		return nil, err
	}
	return []*relationalDb.OutcomeTokenBalance{from, to}, nil
}
