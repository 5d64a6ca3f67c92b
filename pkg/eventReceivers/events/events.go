package events

import (
	"context"
	"fmt"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/ledger"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventFactoryReceiver creates scalar and categorical events for known oracles.
type EventFactoryReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewEventFactoryReceiver(repo relationalDb.Repository, l *zap.Logger) *EventFactoryReceiver {
	r := &EventFactoryReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_ScalarEventCreation:      r.handleScalarEventCreation,
		chainEvents.EventName_CategoricalEventCreation: r.handleCategoricalEventCreation,
	}
	return r
}

func (r *EventFactoryReceiver) GetReceiverName() string {
	return "EventFactoryReceiver"
}

func (r *EventFactoryReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *EventFactoryReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *EventFactoryReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

// upsertEvent stores the event created at address. Outcome and redemption state
// of an event that already exists is kept.
func (r *EventFactoryReceiver) upsertEvent(
	tx relationalDb.Transaction,
	event *chainEvents.Event,
	block *chainEvents.Block,
	address string,
	fill func(e *relationalDb.Event),
) (interface{}, error) {
	stored, err := tx.GetEvent(address)
	if err != nil && !base.IsNotFound(err) {
		return nil, err
	}
	if stored == nil {
		stored = &relationalDb.Event{RedeemedWinnings: decimal.Zero}
	}
	stored.Contract.Address = address
	stored.Contract.FactoryAddress = event.Address
	stored.Contract.CreationBlock = chainEvents.BlockNumber(block)
	stored.Contract.CreationTime = chainEvents.BlockTime(block)
	fill(stored)

	if err := tx.UpsertEvent(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *EventFactoryReceiver) oracleExists(tx relationalDb.Transaction, event *chainEvents.Event, oracleAddress string) (bool, error) {
	if _, err := tx.GetOracle(oracleAddress); err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Warnw("Oracle for event not found",
				zap.String("oracle", oracleAddress),
				zap.String("event", event.Name),
				zap.String("factory", event.Address),
			)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *EventFactoryReceiver) handleScalarEventCreation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.ScalarEventCreation](event)
	if err != nil {
		return nil, err
	}
	if ok, err := r.oracleExists(tx, event, p.Oracle); !ok || err != nil {
		return nil, err
	}
	if p.OutcomeCount < 2 {
		return nil, fmt.Errorf("scalar event %s has %d outcomes", p.ScalarEvent, p.OutcomeCount)
	}

	return r.upsertEvent(tx, event, block, p.ScalarEvent, func(e *relationalDb.Event) {
		e.Kind = relationalDb.EventKind_Scalar
		e.Contract.Creator = p.Creator
		e.CollateralToken = p.CollateralToken
		e.OracleAddress = p.Oracle
		e.OutcomeCount = p.OutcomeCount
		e.UpperBound = p.UpperBound
		e.LowerBound = p.LowerBound
	})
}

func (r *EventFactoryReceiver) handleCategoricalEventCreation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.CategoricalEventCreation](event)
	if err != nil {
		return nil, err
	}
	if ok, err := r.oracleExists(tx, event, p.Oracle); !ok || err != nil {
		return nil, err
	}
	if p.OutcomeCount < 2 {
		return nil, fmt.Errorf("categorical event %s has %d outcomes", p.CategoricalEvent, p.OutcomeCount)
	}

	return r.upsertEvent(tx, event, block, p.CategoricalEvent, func(e *relationalDb.Event) {
		e.Kind = relationalDb.EventKind_Categorical
		e.Contract.Creator = p.Creator
		e.CollateralToken = p.CollateralToken
		e.OracleAddress = p.Oracle
		e.OutcomeCount = p.OutcomeCount
	})
}

// EventInstanceReceiver applies outcome token creation, outcome assignment and
// winnings redemption to existing events.
type EventInstanceReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewEventInstanceReceiver(repo relationalDb.Repository, l *zap.Logger) *EventInstanceReceiver {
	r := &EventInstanceReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_OutcomeTokenCreation: r.handleOutcomeTokenCreation,
		chainEvents.EventName_OutcomeAssignment:    r.handleOutcomeAssignment,
		chainEvents.EventName_WinningsRedemption:   r.handleWinningsRedemption,
	}
	return r
}

func (r *EventInstanceReceiver) GetReceiverName() string {
	return "EventInstanceReceiver"
}

func (r *EventInstanceReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *EventInstanceReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *EventInstanceReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *EventInstanceReceiver) getEvent(tx relationalDb.Transaction, event *chainEvents.Event) (*relationalDb.Event, error) {
	stored, err := tx.GetEvent(event.Address)
	if err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Debugw("No event at address",
				zap.String("address", event.Address),
				zap.String("event", event.Name),
			)
			return nil, nil
		}
		return nil, err
	}
	return stored, nil
}

func (r *EventInstanceReceiver) handleOutcomeTokenCreation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OutcomeTokenCreation](event)
	if err != nil {
		return nil, err
	}
	stored, err := r.getEvent(tx, event)
	if err != nil || stored == nil {
		return nil, err
	}
	if p.Index < 0 || p.Index >= stored.OutcomeCount {
		return nil, fmt.Errorf("outcome token index %d out of range for event %s with %d outcomes", p.Index, stored.Address, stored.OutcomeCount)
	}

	token, err := tx.GetOutcomeToken(p.OutcomeToken)
	if err != nil && !base.IsNotFound(err) {
		return nil, err
	}
	if token == nil {
		token = &relationalDb.OutcomeToken{TotalSupply: decimal.Zero}
	}
	token.Address = p.OutcomeToken
	token.EventAddress = stored.Address
	token.Index = p.Index

	if err := tx.UpsertOutcomeToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *EventInstanceReceiver) handleOutcomeAssignment(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OutcomeAssignment](event)
	if err != nil {
		return nil, err
	}
	stored, err := r.getEvent(tx, event)
	if err != nil || stored == nil {
		return nil, err
	}

	outcome := p.Outcome
	stored.IsWinningOutcomeSet = true
	stored.Outcome = &outcome
	if err := tx.UpsertEvent(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *EventInstanceReceiver) handleWinningsRedemption(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.WinningsRedemption](event)
	if err != nil {
		return nil, err
	}
	stored, err := r.getEvent(tx, event)
	if err != nil || stored == nil {
		return nil, err
	}

	redeemed, err := ledger.Issue(stored.RedeemedWinnings, p.Winnings)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem winnings on event %s: %w", stored.Address, err)
	}
	stored.RedeemedWinnings = redeemed
	if err := tx.UpsertEvent(stored); err != nil {
		return nil, err
	}
	return stored, nil
}
