package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeCarriesPayload(t *testing.T) {
	ev, err := NewEnvelope("placement", TypeOverlayPlaced, "world", OverlayEvent{ID: "crate", X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Len(t, ev.ID, 36)
	assert.Equal(t, "world", ev.World)

	var p OverlayEvent
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, "crate", p.ID)
	assert.Equal(t, 3, p.Z)
}

func TestMemoryBusFiltersAndDelivers(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeOverlayPlaced}, Worlds: []string{"world"}},
		func(ctx context.Context, ev *Envelope) {
			mu.Lock()
			got = append(got, ev.World+"/"+ev.EventType)
			mu.Unlock()
		})
	require.NoError(t, err)

	for _, e := range []struct{ typ, world string }{
		{TypeOverlayPlaced, "world"},
		{TypeOverlayDestroyed, "world"},
		{TypeOverlayPlaced, "world_nether"},
	} {
		ev, err := NewEnvelope("test", e.typ, e.world, struct{}{})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	bus.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"world/OverlayPlaced"}, got)

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)

	ev, _ := NewEnvelope("test", TypeStorageError, "", StorageErrorEvent{Op: "save"})
	require.NoError(t, bus.Publish(context.Background(), ev))
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Never(t, func() bool { return len(calls) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestClosedBusRejects(t *testing.T) {
	bus := NewMemoryBus(1)
	bus.Close()
	bus.Close()

	ev, _ := NewEnvelope("test", TypeOverlayPlaced, "world", nil)
	assert.Error(t, bus.Publish(context.Background(), ev))
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.Error(t, err)
}
