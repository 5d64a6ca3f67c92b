package receiverManager

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/metrics/metricsTypes"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"go.uber.org/zap"
)

type ReceiverManager struct {
	Receivers   map[int]types.IEventReceiver
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink
}

func NewReceiverManager(logger *zap.Logger, ms *metrics.MetricsSink) *ReceiverManager {
	return &ReceiverManager{
		Receivers:   make(map[int]types.IEventReceiver),
		logger:      logger,
		metricsSink: ms,
	}
}

// RegisterReceiver adds a receiver at index. Receivers run in index order.
func (m *ReceiverManager) RegisterReceiver(receiver types.IEventReceiver, index int) error {
	if r, ok := m.Receivers[index]; ok {
		return fmt.Errorf("receiver index %d already belongs to %s", index, r.GetReceiverName())
	}
	m.Receivers[index] = receiver
	return nil
}

func (m *ReceiverManager) GetSortedReceiverIndexes() []int {
	indexes := make([]int, 0, len(m.Receivers))
	for i := range m.Receivers {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	return indexes
}

// IsKnownEvent reports whether any registered receiver declares the event name.
func (m *ReceiverManager) IsKnownEvent(name string) bool {
	for _, r := range m.Receivers {
		if slices.Contains(r.EventNames(), name) {
			return true
		}
	}
	return false
}

// HandleEvent gives every interested receiver the chance to apply the event,
// stopping at the first failure. The returned map holds the non nil results by
// receiver name.
func (m *ReceiverManager) HandleEvent(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (map[string]interface{}, error) {
	if !m.IsKnownEvent(event.Name) {
		m.logger.Sugar().Errorw("No receiver declares event",
			zap.String("event", event.Name),
			zap.String("address", event.Address),
		)
		return nil, fmt.Errorf("%w: '%s'", types.ErrUnknownEvent, event.Name)
	}

	results := make(map[string]interface{})
	for _, index := range m.GetSortedReceiverIndexes() {
		receiver := m.Receivers[index]
		if !receiver.IsInterestingEvent(event) {
			continue
		}
		name := receiver.GetReceiverName()
		labels := []metricsTypes.MetricsLabel{
			{Name: "receiver", Value: name},
			{Name: "event", Value: event.Name},
		}

		m.logger.Sugar().Debugw("Handling event for receiver",
			zap.String("receiver", name),
			zap.String("event", event.Name),
			zap.String("address", event.Address),
			zap.String("transactionHash", event.TransactionHash),
		)

		start := time.Now()
		res, err := receiver.Save(ctx, event, block)
		m.metricsSink.Timing(metricsTypes.Metric_Timing_EventDuration, time.Since(start), labels)
		if err != nil {
			m.metricsSink.Incr(metricsTypes.Metric_Incr_EventFailed, labels, 1)
			return results, err
		}
		if res == nil {
			m.metricsSink.Incr(metricsTypes.Metric_Incr_EventSkipped, labels, 1)
			continue
		}
		m.metricsSink.Incr(metricsTypes.Metric_Incr_EventApplied, labels, 1)
		results[name] = res
	}
	return results, nil
}
