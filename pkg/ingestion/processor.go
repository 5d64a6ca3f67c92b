// Package ingestion feeds recorded or streamed chain events to the receivers.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/metrics/metricsTypes"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/ledger"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrMalformedMessage is returned for messages that are not a valid event and block pair.
var ErrMalformedMessage = errors.New("malformed message")

// Message is one event together with the block it was mined in.
type Message struct {
	Event json.RawMessage    `json:"event"`
	Block *chainEvents.Block `json:"block"`
}

// Dispatcher applies a decoded event.
type Dispatcher interface {
	HandleEvent(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (map[string]interface{}, error)
}

// Processor decodes messages and hands them to the dispatcher.
type Processor struct {
	dispatcher  Dispatcher
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink
}

func NewProcessor(dispatcher Dispatcher, ms *metrics.MetricsSink, l *zap.Logger) *Processor {
	return &Processor{
		dispatcher:  dispatcher,
		logger:      l,
		metricsSink: ms,
	}
}

// IsPermanent reports errors that a redelivery of the same message cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, chainEvents.ErrUnknownEventName) ||
		errors.Is(err, chainEvents.ErrMissingParam) ||
		errors.Is(err, chainEvents.ErrInvalidParam) ||
		errors.Is(err, types.ErrUnknownEvent) ||
		errors.Is(err, ledger.ErrInsufficientBalance) ||
		errors.Is(err, ledger.ErrNegativeAmount)
}

func failureReason(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "transient"
}

// Process applies one raw message.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return p.fail(pkgErrors.Wrapf(ErrMalformedMessage, "invalid json: %v", err))
	}
	if len(msg.Event) == 0 || string(msg.Event) == "null" {
		return p.fail(pkgErrors.Wrap(ErrMalformedMessage, "message without event"))
	}
	return p.ProcessMessage(ctx, msg)
}

// ProcessMessage applies an already unmarshalled message.
func (p *Processor) ProcessMessage(ctx context.Context, msg *Message) error {
	event, err := chainEvents.DecodeJSON(msg.Event)
	if err != nil {
		if !errors.Is(err, chainEvents.ErrUnknownEventName) && !errors.Is(err, chainEvents.ErrMissingParam) {
			err = pkgErrors.Wrapf(ErrMalformedMessage, "%v", err)
		}
		return p.fail(err)
	}

	if _, err := p.dispatcher.HandleEvent(ctx, event, msg.Block); err != nil {
		p.logger.Sugar().Errorw("Failed to handle event",
			zap.String("event", event.Name),
			zap.String("address", event.Address),
			zap.String("transactionHash", event.TransactionHash),
			zap.Error(err),
		)
		return p.fail(err)
	}
	if msg.Block != nil {
		p.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastBlockNumber, float64(msg.Block.Number), nil)
	}
	return nil
}

func (p *Processor) fail(err error) error {
	p.metricsSink.Incr(metricsTypes.Metric_Incr_MessageFailed, []metricsTypes.MetricsLabel{
		{Name: "reason", Value: failureReason(err)},
	}, 1)
	return err
}
