package centralizedOracles

import (
	"context"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"go.uber.org/zap"
)

// CentralizedOracleFactoryReceiver creates centralized oracles.
type CentralizedOracleFactoryReceiver struct {
	base.BaseEventReceiver
	resolver *eventDescription.Resolver
	handlers types.EventHandlers
}

func NewCentralizedOracleFactoryReceiver(repo relationalDb.Repository, resolver *eventDescription.Resolver, l *zap.Logger) *CentralizedOracleFactoryReceiver {
	r := &CentralizedOracleFactoryReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
		resolver: resolver,
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_CentralizedOracleCreation: r.handleCreation,
	}
	return r
}

func (r *CentralizedOracleFactoryReceiver) GetReceiverName() string {
	return "CentralizedOracleFactoryReceiver"
}

func (r *CentralizedOracleFactoryReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *CentralizedOracleFactoryReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *CentralizedOracleFactoryReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

// handleCreation upserts the oracle. A re-delivery with another creator
// rewrites creator and owner in place.
func (r *CentralizedOracleFactoryReceiver) handleCreation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.CentralizedOracleCreation](event)
	if err != nil {
		return nil, err
	}

	description, err := r.resolver.Resolve(ctx, tx, p.IpfsHash)
	if err != nil {
		return nil, err
	}

	oracle, err := tx.GetOracle(p.CentralizedOracle)
	if err != nil && !base.IsNotFound(err) {
		return nil, err
	}
	if oracle == nil {
		oracle = &relationalDb.Oracle{}
	}
	oracle.Contract = relationalDb.Contract{
		Address:        p.CentralizedOracle,
		FactoryAddress: event.Address,
		Creator:        p.Creator,
		CreationBlock:  chainEvents.BlockNumber(block),
		CreationTime:   chainEvents.BlockTime(block),
	}
	oracle.Kind = relationalDb.OracleKind_Centralized
	oracle.Owner = p.Creator
	oracle.EventDescriptionHash = description.IpfsHash

	if err := tx.UpsertOracle(oracle); err != nil {
		return nil, err
	}
	return oracle, nil
}

// CentralizedOracleInstanceReceiver applies owner changes and outcomes to existing oracles.
type CentralizedOracleInstanceReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewCentralizedOracleInstanceReceiver(repo relationalDb.Repository, l *zap.Logger) *CentralizedOracleInstanceReceiver {
	r := &CentralizedOracleInstanceReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_OwnerReplacement:  r.handleOwnerReplacement,
		chainEvents.EventName_OutcomeAssignment: r.handleOutcomeAssignment,
	}
	return r
}

func (r *CentralizedOracleInstanceReceiver) GetReceiverName() string {
	return "CentralizedOracleInstanceReceiver"
}

func (r *CentralizedOracleInstanceReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *CentralizedOracleInstanceReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *CentralizedOracleInstanceReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *CentralizedOracleInstanceReceiver) getOracle(tx relationalDb.Transaction, event *chainEvents.Event) (*relationalDb.Oracle, error) {
	oracle, err := tx.GetOracle(event.Address)
	if err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Debugw("No oracle at address",
				zap.String("address", event.Address),
				zap.String("event", event.Name),
			)
			return nil, nil
		}
		return nil, err
	}
	return oracle, nil
}

func (r *CentralizedOracleInstanceReceiver) handleOwnerReplacement(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OwnerReplacement](event)
	if err != nil {
		return nil, err
	}
	oracle, err := r.getOracle(tx, event)
	if err != nil || oracle == nil {
		return nil, err
	}

	oracle.Owner = p.NewOwner
	if err := tx.UpsertOracle(oracle); err != nil {
		return nil, err
	}
	return oracle, nil
}

func (r *CentralizedOracleInstanceReceiver) handleOutcomeAssignment(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OutcomeAssignment](event)
	if err != nil {
		return nil, err
	}
	oracle, err := r.getOracle(tx, event)
	if err != nil || oracle == nil {
		return nil, err
	}

	outcome := p.Outcome
	oracle.IsOutcomeSet = true
	oracle.Outcome = &outcome
	if err := tx.UpsertOracle(oracle); err != nil {
		return nil, err
	}
	return oracle, nil
}
