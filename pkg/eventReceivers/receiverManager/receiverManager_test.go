package receiverManager

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/eventReceivers/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeReceiver struct {
	name   string
	names  []string
	result interface{}
	err    error
	calls  *[]string
}

func (f *fakeReceiver) GetReceiverName() string { return f.name }
func (f *fakeReceiver) EventNames() []string    { return f.names }
func (f *fakeReceiver) IsInterestingEvent(event *chainEvents.Event) bool {
	return slices.Contains(f.names, event.Name)
}
func (f *fakeReceiver) Save(ctx context.Context, event *chainEvents.Event, block *chainEvents.Block) (interface{}, error) {
	*f.calls = append(*f.calls, f.name)
	return f.result, f.err
}

func Test_ReceiverManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject a second receiver at the same index", func(t *testing.T) {
		m := NewReceiverManager(zap.NewNop(), metrics.NewNoopMetricsSink())
		calls := []string{}

		assert.Nil(t, m.RegisterReceiver(&fakeReceiver{name: "a", calls: &calls}, 0))
		assert.NotNil(t, m.RegisterReceiver(&fakeReceiver{name: "b", calls: &calls}, 0))
	})
	t.Run("Should run interested receivers in index order", func(t *testing.T) {
		m := NewReceiverManager(zap.NewNop(), metrics.NewNoopMetricsSink())
		calls := []string{}
		_ = m.RegisterReceiver(&fakeReceiver{name: "second", names: []string{"Issuance"}, result: "b", calls: &calls}, 5)
		_ = m.RegisterReceiver(&fakeReceiver{name: "first", names: []string{"Issuance"}, result: "a", calls: &calls}, 1)
		_ = m.RegisterReceiver(&fakeReceiver{name: "other", names: []string{"Transfer"}, result: "c", calls: &calls}, 3)
		_ = m.RegisterReceiver(&fakeReceiver{name: "skipper", names: []string{"Issuance"}, calls: &calls}, 4)

		results, err := m.HandleEvent(ctx, &chainEvents.Event{Name: "Issuance"}, nil)
		assert.Nil(t, err)
		assert.Equal(t, []string{"first", "skipper", "second"}, calls)
		assert.Equal(t, map[string]interface{}{"first": "a", "second": "b"}, results)
	})
	t.Run("Should stop at the first failure", func(t *testing.T) {
		m := NewReceiverManager(zap.NewNop(), metrics.NewNoopMetricsSink())
		calls := []string{}
		boom := errors.New("boom")
		_ = m.RegisterReceiver(&fakeReceiver{name: "failing", names: []string{"Issuance"}, err: boom, calls: &calls}, 0)
		_ = m.RegisterReceiver(&fakeReceiver{name: "never", names: []string{"Issuance"}, result: "x", calls: &calls}, 1)

		_, err := m.HandleEvent(ctx, &chainEvents.Event{Name: "Issuance"}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"failing"}, calls)
	})
	t.Run("Should surface event names no receiver declares", func(t *testing.T) {
		m := NewReceiverManager(zap.NewNop(), metrics.NewNoopMetricsSink())
		calls := []string{}
		_ = m.RegisterReceiver(&fakeReceiver{name: "a", names: []string{"Issuance"}, calls: &calls}, 0)

		_, err := m.HandleEvent(ctx, &chainEvents.Event{Name: "Minted"}, nil)
		assert.ErrorIs(t, err, types.ErrUnknownEvent)
		assert.False(t, m.IsKnownEvent("Minted"))
		assert.True(t, m.IsKnownEvent("Issuance"))
		assert.Empty(t, calls)
	})
}
