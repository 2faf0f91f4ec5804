package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	var persisted, crawled int64

	_, err := bus.Subscribe([]EventType{EventRecordPersisted}, func(_ context.Context, _ *Event) error {
		atomic.AddInt64(&persisted, 1)
		return nil
	}, 4)
	require.NoError(t, err)

	_, err = bus.Subscribe([]EventType{EventPageCrawled}, func(_ context.Context, _ *Event) error {
		atomic.AddInt64(&crawled, 1)
		return nil
	}, 4)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewEvent(EventRecordPersisted, "stem", "https://a.org")))
	require.NoError(t, bus.Publish(NewEvent(EventRecordPersisted, "stem", "https://b.org")))
	require.NoError(t, bus.Publish(NewEvent(EventPageCrawled, "stem", "https://a.org")))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&persisted) == 2 && atomic.LoadInt64(&crawled) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	var delivered int64
	sub, err := bus.Subscribe([]EventType{EventRunCompleted}, func(_ context.Context, _ *Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	}, 4)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewEvent(EventRunCompleted, "", "")))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&delivered) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	require.NoError(t, bus.Publish(NewEvent(EventRunCompleted, "", "")))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&delivered))
}

func TestEventBusStats(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	_, err := bus.Subscribe([]EventType{EventSourceDiscovered}, func(_ context.Context, _ *Event) error {
		return nil
	}, 4)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewEvent(EventSourceDiscovered, "stem", "https://a.org")))

	assert.Eventually(t, func() bool {
		stats := bus.GetStats()
		return stats.EventsPublished == 1 && stats.EventsDelivered == 1 && stats.ActiveSubscribers == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusFullBufferDropsEvent(t *testing.T) {
	// No workers, so published events stay in the buffer.
	bus := NewEventBus(1, 0)
	defer bus.Close()

	require.NoError(t, bus.Publish(NewEvent(EventPageCrawled, "stem", "https://a.org")))
	err := bus.Publish(NewEvent(EventPageCrawled, "stem", "https://b.org"))
	assert.Error(t, err, "a full buffer drops the event instead of blocking")
}

func TestNewEventHasIdentity(t *testing.T) {
	e := NewEvent(EventRecordExtracted, "stem", "https://a.org")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventRecordExtracted, e.Type)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)

	other := NewEvent(EventRecordExtracted, "stem", "https://a.org")
	assert.NotEqual(t, e.ID, other.ID)
}
