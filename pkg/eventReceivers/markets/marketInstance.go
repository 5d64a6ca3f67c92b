package markets

import (
	"context"
	"errors"
	"fmt"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/base"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/ledger"
	"github.com/gnosis/tradingdb/pkg/lmsr"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var ErrMissingTransactionHash = errors.New("trade event without transaction hash")

// tradeAmountTolerance is the relative difference between a reported trade amount
// and the market maker cost that is still accepted without a warning.
var tradeAmountTolerance = decimal.New(1, -4)

// MarketInstanceReceiver applies funding, closing, fee withdrawals and trades to existing markets.
type MarketInstanceReceiver struct {
	base.BaseEventReceiver
	handlers types.EventHandlers
}

func NewMarketInstanceReceiver(repo relationalDb.Repository, l *zap.Logger) *MarketInstanceReceiver {
	r := &MarketInstanceReceiver{
		BaseEventReceiver: base.BaseEventReceiver{
			Logger:     l,
			Repository: repo,
		},
	}
	r.handlers = types.EventHandlers{
		chainEvents.EventName_MarketFunding:        r.handleMarketFunding,
		chainEvents.EventName_MarketClosing:        r.handleMarketClosing,
		chainEvents.EventName_FeeWithdrawal:        r.handleFeeWithdrawal,
		chainEvents.EventName_OutcomeTokenPurchase: r.handleOutcomeTokenPurchase,
		chainEvents.EventName_OutcomeTokenSale:     r.handleOutcomeTokenSale,
	}
	return r
}

func (r *MarketInstanceReceiver) GetReceiverName() string {
	return "MarketInstanceReceiver"
}

func (r *MarketInstanceReceiver) EventNames() []string {
	return r.HandledEventNames(r.handlers)
}

func (r *MarketInstanceReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return r.BaseEventReceiver.IsInterestingEvent(r.EventNames(), event)
}

func (r *MarketInstanceReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	return r.ApplyEvent(ctx, r.GetReceiverName(), r.handlers, event, block)
}

func (r *MarketInstanceReceiver) getMarket(tx relationalDb.Transaction, event *chainEvents.Event) (*relationalDb.Market, error) {
	market, err := tx.GetMarket(event.Address)
	if err != nil {
		if base.IsNotFound(err) {
			r.Logger.Sugar().Debugw("No market at address",
				zap.String("address", event.Address),
				zap.String("event", event.Name),
			)
			return nil, nil
		}
		return nil, err
	}
	return market, nil
}

func (r *MarketInstanceReceiver) handleMarketFunding(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.MarketFunding](event)
	if err != nil {
		return nil, err
	}
	market, err := r.getMarket(tx, event)
	if err != nil || market == nil {
		return nil, err
	}

	funding, err := ledger.Issue(market.Funding, p.Funding)
	if err != nil {
		return nil, fmt.Errorf("failed to fund market %s: %w", market.Address, err)
	}
	market.Funding = funding
	if market.Stage < relationalDb.MarketStage_Funded {
		market.Stage = relationalDb.MarketStage_Funded
	}
	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return market, nil
}

func (r *MarketInstanceReceiver) handleMarketClosing(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	market, err := r.getMarket(tx, event)
	if err != nil || market == nil {
		return nil, err
	}

	market.Stage = relationalDb.MarketStage_Closed
	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return market, nil
}

// handleFeeWithdrawal only accumulates withdrawn fees; the stage is left alone.
func (r *MarketInstanceReceiver) handleFeeWithdrawal(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.FeeWithdrawal](event)
	if err != nil {
		return nil, err
	}
	market, err := r.getMarket(tx, event)
	if err != nil || market == nil {
		return nil, err
	}

	withdrawn, err := ledger.Issue(market.WithdrawnFees, p.Fees)
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw fees from market %s: %w", market.Address, err)
	}
	market.WithdrawnFees = withdrawn
	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return market, nil
}

// trade is the part of a purchase or sale that moves the market.
type trade struct {
	index  int
	delta  decimal.Decimal
	fees   decimal.Decimal
	sender string
	// amount is the reported outcome token cost of a buy or profit of a sale.
	amount decimal.Decimal
}

// applyTrade moves the sold vector and fee accumulator of market and returns
// the order fields derived from the post trade state.
func (r *MarketInstanceReceiver) applyTrade(market *relationalDb.Market, event *chainEvents.Event, block *chainEvents.Block, t trade) (*relationalDb.Order, error) {
	if t.index < 0 || t.index >= len(market.NetOutcomeTokensSold) {
		return nil, fmt.Errorf("outcome token index %d out of range for market %s with %d outcomes", t.index, market.Address, len(market.NetOutcomeTokensSold))
	}
	collected, err := ledger.Issue(market.CollectedFees, t.fees)
	if err != nil {
		return nil, fmt.Errorf("invalid fees for trade %s: %w", event.TransactionHash, err)
	}

	sold := make(datatypes.JSONSlice[decimal.Decimal], len(market.NetOutcomeTokensSold))
	copy(sold, market.NetOutcomeTokensSold)
	sold[t.index] = sold[t.index].Add(t.delta)

	prices := make(datatypes.JSONSlice[decimal.Decimal], 0)
	if market.Funding.IsPositive() {
		p, err := lmsr.MarginalPrices(market.Funding, sold)
		if err != nil {
			return nil, fmt.Errorf("failed to price market %s: %w", market.Address, err)
		}
		prices = p
		r.checkTradeAmount(market, event, sold, t.amount)
	} else {
		r.Logger.Sugar().Warnw("Trade on unfunded market, skipping marginal prices",
			zap.String("market", market.Address),
			zap.String("transactionHash", event.TransactionHash),
		)
	}

	market.NetOutcomeTokensSold = sold
	market.CollectedFees = collected

	return &relationalDb.Order{
		TransactionHash:   event.TransactionHash,
		MarketAddress:     market.Address,
		SenderAddress:     t.sender,
		OutcomeTokenIndex: t.index,
		OutcomeTokenCount: t.delta.Abs(),
		Fees:              t.fees,
		MarginalPrices:    prices,
		BlockNumber:       chainEvents.BlockNumber(block),
		BlockTime:         chainEvents.BlockTime(block),
	}, nil
}

// checkTradeAmount compares the reported amount of a trade with the cost function
// difference between the current and the post trade sold vector.
func (r *MarketInstanceReceiver) checkTradeAmount(market *relationalDb.Market, event *chainEvents.Event, sold []decimal.Decimal, reported decimal.Decimal) {
	before, err := lmsr.Cost(market.Funding, market.NetOutcomeTokensSold)
	if err == nil {
		var after decimal.Decimal
		if after, err = lmsr.Cost(market.Funding, sold); err == nil {
			computed := after.Sub(before).Abs()
			if computed.Sub(reported).Abs().GreaterThan(computed.Mul(tradeAmountTolerance)) {
				r.Logger.Sugar().Warnw("Reported trade amount differs from market maker cost",
					zap.String("market", market.Address),
					zap.String("transactionHash", event.TransactionHash),
					zap.String("reported", reported.String()),
					zap.String("computed", computed.String()),
				)
			}
			return
		}
	}
	r.Logger.Sugar().Warnw("Failed to evaluate market maker cost",
		zap.String("market", market.Address),
		zap.String("transactionHash", event.TransactionHash),
		zap.Error(err),
	)
}

// handleOutcomeTokenPurchase records a buy order. A transaction hash that already
// has a buy order leaves the market untouched.
func (r *MarketInstanceReceiver) handleOutcomeTokenPurchase(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OutcomeTokenPurchase](event)
	if err != nil {
		return nil, err
	}
	if event.TransactionHash == "" {
		return nil, ErrMissingTransactionHash
	}
	market, err := r.getMarket(tx, event)
	if err != nil || market == nil {
		return nil, err
	}

	if _, err := tx.GetBuyOrder(event.TransactionHash); err == nil {
		r.Logger.Sugar().Debugw("Buy order already recorded",
			zap.String("market", market.Address),
			zap.String("transactionHash", event.TransactionHash),
		)
		return nil, nil
	} else if !base.IsNotFound(err) {
		return nil, err
	}

	order, err := r.applyTrade(market, event, block, trade{
		index:  p.OutcomeTokenIndex,
		delta:  p.OutcomeTokenCount,
		fees:   p.MarketFees,
		sender: p.Buyer,
		amount: p.OutcomeTokenCost,
	})
	if err != nil {
		return nil, err
	}

	buyOrder := &relationalDb.BuyOrder{
		Order:            *order,
		Cost:             p.OutcomeTokenCost.Add(p.MarketFees),
		OutcomeTokenCost: p.OutcomeTokenCost,
	}
	if err := tx.CreateBuyOrder(buyOrder); err != nil {
		return nil, err
	}
	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return buyOrder, nil
}

// handleOutcomeTokenSale records a sell order. A transaction hash that already
// has a sell order leaves the market untouched.
func (r *MarketInstanceReceiver) handleOutcomeTokenSale(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	p, err := base.Payload[*chainEvents.OutcomeTokenSale](event)
	if err != nil {
		return nil, err
	}
	if event.TransactionHash == "" {
		return nil, ErrMissingTransactionHash
	}
	market, err := r.getMarket(tx, event)
	if err != nil || market == nil {
		return nil, err
	}

	if _, err := tx.GetSellOrder(event.TransactionHash); err == nil {
		r.Logger.Sugar().Debugw("Sell order already recorded",
			zap.String("market", market.Address),
			zap.String("transactionHash", event.TransactionHash),
		)
		return nil, nil
	} else if !base.IsNotFound(err) {
		return nil, err
	}

	order, err := r.applyTrade(market, event, block, trade{
		index:  p.OutcomeTokenIndex,
		delta:  p.OutcomeTokenCount.Neg(),
		fees:   p.MarketFees,
		sender: p.Seller,
		amount: p.OutcomeTokenProfit,
	})
	if err != nil {
		return nil, err
	}

	sellOrder := &relationalDb.SellOrder{
		Order:              *order,
		Profit:             p.OutcomeTokenProfit.Sub(p.MarketFees),
		OutcomeTokenProfit: p.OutcomeTokenProfit,
	}
	if err := tx.CreateSellOrder(sellOrder); err != nil {
		return nil, err
	}
	if err := tx.UpsertMarket(market); err != nil {
		return nil, err
	}
	return sellOrder, nil
}
