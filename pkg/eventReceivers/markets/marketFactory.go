package markets

import (
	"context"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MarketFactoryReceiver creates markets on categorical events that use the
// accepted LMSR market maker. Markets using any other market maker are ignored.
type MarketFactoryReceiver struct {
	base.BaseEventReceiver
	lmsrMarketMaker string
	handlers        types.EventHandlers
}

func NewMarketFactoryReceiver(repo relationalDb.Repository, cfg *config.Config, l *zap.Logger) *MarketFactoryReceiver {
	r := &MarketFactoryReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
		lmsrMarketMaker: config.NormalizeAddress(cfg.MarketsConfig.LmsrMarketMaker),
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_StandardMarketCreation: r.handleStandardMarketCreation,
	}
	return r
}

func (r *MarketFactoryReceiver) GetReceiverName() string {
	return "MarketFactoryReceiver"
}

func (r *MarketFactoryReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *MarketFactoryReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *MarketFactoryReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func zeroVector(n int) datatypes.JSONSlice[decimal.Decimal] {
	v := make(datatypes.JSONSlice[decimal.Decimal], n)
	for i := range v {
		v[i] = decimal.Zero
	}
	return v
}

func (r *MarketFactoryReceiver) handleStandardMarketCreation(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.StandardMarketCreation](event)
	if err != nil {
		return nil, err
	}

	if config.NormalizeAddress(p.MarketMaker) != r.lmsrMarketMaker {
		r.Logger.Sugar().Infow("Ignoring market with unsupported market maker",
			zap.String("market", p.Market),
			zap.String("marketMaker", p.MarketMaker),
		)
		return nil, nil
	}

	owningEvent, err := tx.GetEvent(p.EventContract)
	if err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Warnw("Event for market not found",
				zap.String("market", p.Market),
				zap.String("eventContract", p.EventContract),
			)
			return nil, nil
		}
		return nil, err
	}
	if owningEvent.Kind != relationalDb.EventKind_Categorical {
		r.Logger.Sugar().Warnw("Ignoring market on a non categorical event",
			zap.String("market", p.Market),
			zap.String("eventContract", p.EventContract),
			zap.String("kind", string(owningEvent.Kind)),
		)
		return nil, nil
	}

	market, err := tx.GetMarket(p.Market)
	if err != nil && !base.IsNotFound(err) {
		return nil, err
	}
	// Trading state survives a re-delivery unless the market now points at another event.
	if market == nil || market.EventAddress != owningEvent.Address || len(market.NetOutcomeTokensSold) != owningEvent.OutcomeCount {
		market = &relationalDb.Market{
			Stage:                relationalDb.MarketStage_Created,
			Funding:              decimal.Zero,
			NetOutcomeTokensSold: zeroVector(owningEvent.OutcomeCount),
			CollectedFees:        decimal.Zero,
			WithdrawnFees:        decimal.Zero,
		}
	}
	market.Contract = relationalDb.Contract{
		Address:        p.Market,
		FactoryAddress: event.Address,
		Creator:        p.Creator,
		CreationBlock:  chainEvents.BlockNumber(block),
		CreationTime:   chainEvents.BlockTime(block),
	}
	market.EventAddress = owningEvent.Address
	market.MarketMaker = config.NormalizeAddress(p.MarketMaker)
	market.Fee = p.Fee

	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return market, nil
}
