package base

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"go.uber.org/zap"
)

// errNothingApplied rolls back the transaction of an event that changed nothing,
// so that its processed marker is not kept either.
var errNothingApplied = errors.New("nothing applied")

type BaseEventReceiver struct {
	Logger     *zap.Logger
	Repository relationalDb.Repository
}

// HandledEventNames returns the sorted names of handlers.
func (b *BaseEventReceiver) HandledEventNames(handlers types.EventHandlers) []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *BaseEventReceiver) IsInterestingEvent(eventNames []string, event *chainEvents.Event) bool {
	return slices.Contains(eventNames, event.Name)
}

// ApplyEvent runs the handler registered for the event inside one transaction.
//
// When the event carries a log index, the (transaction hash, log index, receiver)
// triple is recorded and a second delivery of the same log is skipped.
func (b *BaseEventReceiver) ApplyEvent(
	ctx context.Context,
	receiverName string,
	handlers types.EventHandlers,
	event *chainEvents.Event,
	block *chainEvents.Block,
) (interface{}, error) {
	handler, ok := handlers[event.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not handle '%s'", types.ErrUnknownEvent, receiverName, event.Name)
	}

	var result interface{}
	err := b.Repository.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
		if event.LogIndex != nil && event.TransactionHash != "" {
			alreadyProcessed, err := tx.MarkEventProcessed(event.TransactionHash, *event.LogIndex, receiverName)
			if err != nil {
				return err
			}
			if alreadyProcessed {
				b.Logger.Sugar().Debugw("Event already applied",
					zap.String("receiver", receiverName),
					zap.String("event", event.Name),
					zap.String("transactionHash", event.TransactionHash),
					zap.Uint64("logIndex", *event.LogIndex),
				)
				return errNothingApplied
			}
		}

		res, err := handler(ctx, tx, event, block)
		if err != nil {
			return err
		}
		if res == nil {
			return errNothingApplied
		}
		result = res
		return nil
	})
	if errors.Is(err, errNothingApplied) {
		return nil, nil
	}
	if err != nil {
		b.Logger.Sugar().Errorw("Failed to apply event",
			zap.String("receiver", receiverName),
			zap.String("event", event.Name),
			zap.String("address", event.Address),
			zap.String("transactionHash", event.TransactionHash),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// IsNotFound reports a referential miss.
func IsNotFound(err error) bool {
	return errors.Is(err, relationalDb.ErrNotFound)
}

// Payload returns the typed payload of event.
func Payload[T chainEvents.Payload](event *chainEvents.Event) (T, error) {
	p, ok := event.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected payload %T for event '%s'", event.Payload, event.Name)
	}
	return p, nil
}
