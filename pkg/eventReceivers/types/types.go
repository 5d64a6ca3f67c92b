package types

import (
	"context"
	"errors"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
)

// ErrUnknownEvent is returned when an event is dispatched that no receiver declares.
var ErrUnknownEvent = errors.New("unknown event")

type IEventReceiver interface {
	// GetReceiverName
	// Name used in logs, metrics and the processed events table
	GetReceiverName() string

	// EventNames
	// The closed set of event names the receiver handles
	EventNames() []string

	// IsInterestingEvent
	// Determine if the receiver should apply the event
	IsInterestingEvent(event *chainEvents.Event) bool

	// Save
	// Apply the event inside a single transaction.
	//
	// Returns the saved entity, or nil when the event caused no change.
	Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error)
}

// EventHandler applies one event name for a receiver. Returning a nil result
// means nothing was changed.
type EventHandler func(ctx context.Context, tx relationalDb.Transaction, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error)

// EventHandlers maps event names to the handler that applies them.
type EventHandlers map[string]EventHandler
