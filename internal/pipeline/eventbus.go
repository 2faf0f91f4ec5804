package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// deliveryTimeout bounds how long the bus waits for a slow subscriber before
// counting the delivery as failed.
const deliveryTimeout = 5 * time.Second

// EventHandler is a function that handles pipeline events
type EventHandler func(ctx context.Context, event *Event) error

// Subscription represents an event subscription
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    EventHandler
	channel    chan *Event
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	active     bool
}

// EventBus manages pub/sub for pipeline events
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventBuffer   chan *Event
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stats         EventBusStats
	statsMu       sync.RWMutex
}

// EventBusStats tracks event bus statistics
type EventBusStats struct {
	EventsPublished   int64 `json:"events_published"`
	EventsDelivered   int64 `json:"events_delivered"`
	EventsFailed      int64 `json:"events_failed"`
	ActiveSubscribers int64 `json:"active_subscribers"`
	EventsInBuffer    int64 `json:"events_in_buffer"`
}

// NewEventBus creates a new event bus with the given buffer and worker count
func NewEventBus(bufferSize, workers int) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		subscriptions: make(map[string]*Subscription),
		eventBuffer:   make(chan *Event, bufferSize),
		ctx:           ctx,
		cancel:        cancel,
	}

	for i := 0; i < workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}

	log.Info().
		Int("buffer_size", bufferSize).
		Int("workers", workers).
		Msg("Event bus started")

	return eb
}

// Publish publishes an event to all matching subscribers. A full buffer
// drops the event rather than blocking the pipeline.
func (eb *EventBus) Publish(event *Event) error {
	select {
	case eb.eventBuffer <- event:
		eb.statsMu.Lock()
		eb.stats.EventsPublished++
		eb.stats.EventsInBuffer = int64(len(eb.eventBuffer))
		eb.statsMu.Unlock()
		return nil
	case <-eb.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
		log.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Event dropped due to full buffer")
		return fmt.Errorf("event buffer is full")
	}
}

// Subscribe creates a new subscription for specific event types
func (eb *EventBus) Subscribe(eventTypes []EventType, handler EventHandler, bufferSize int) (*Subscription, error) {
	ctx, cancel := context.WithCancel(eb.ctx)

	sub := &Subscription{
		ID:         "sub_" + uuid.NewString(),
		EventTypes: eventTypes,
		Handler:    handler,
		channel:    make(chan *Event, bufferSize),
		ctx:        ctx,
		cancel:     cancel,
		active:     true,
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers++
	eb.statsMu.Unlock()

	log.Debug().
		Str("subscription_id", sub.ID).
		Interface("event_types", eventTypes).
		Msg("New subscription created")

	return sub, nil
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	sub, exists := eb.subscriptions[subscriptionID]
	if !exists {
		eb.mu.Unlock()
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	eb.mu.Unlock()

	sub.mu.Lock()
	sub.active = false
	sub.cancel()
	close(sub.channel)
	sub.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers--
	eb.statsMu.Unlock()

	return nil
}

// Close shuts down the event bus
func (eb *EventBus) Close() {
	eb.cancel()
	eb.wg.Wait()

	eb.mu.Lock()
	for _, sub := range eb.subscriptions {
		sub.cancel()
	}
	eb.mu.Unlock()

	log.Info().Msg("Event bus shut down")
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	eb.statsMu.RLock()
	defer eb.statsMu.RUnlock()

	stats := eb.stats
	stats.EventsInBuffer = int64(len(eb.eventBuffer))
	return stats
}

func (eb *EventBus) worker(workerID int) {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventBuffer:
			eb.statsMu.Lock()
			eb.stats.EventsInBuffer = int64(len(eb.eventBuffer))
			eb.statsMu.Unlock()
			eb.deliverEvent(event)
		case <-eb.ctx.Done():
			log.Debug().Int("worker_id", workerID).Msg("Event bus worker stopping")
			return
		}
	}
}

func (eb *EventBus) deliverEvent(event *Event) {
	eb.mu.RLock()
	matching := make([]*Subscription, 0)
	for _, sub := range eb.subscriptions {
		if sub.matches(event) {
			matching = append(matching, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range matching {
		go eb.deliverToSubscription(event, sub)
	}
}

func (eb *EventBus) deliverToSubscription(event *Event, sub *Subscription) {
	sub.mu.Lock()
	if !sub.active {
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()

	ctx, cancel := context.WithTimeout(sub.ctx, deliveryTimeout)
	defer cancel()

	select {
	case sub.channel <- event:
		if err := sub.Handler(ctx, event); err != nil {
			eb.statsMu.Lock()
			eb.stats.EventsFailed++
			eb.statsMu.Unlock()
			log.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("event_id", event.ID).
				Msg("Event handler failed")
		} else {
			eb.statsMu.Lock()
			eb.stats.EventsDelivered++
			eb.statsMu.Unlock()
		}
		<-sub.channel
	case <-ctx.Done():
		eb.statsMu.Lock()
		eb.stats.EventsFailed++
		eb.statsMu.Unlock()
		log.Warn().
			Str("subscription_id", sub.ID).
			Str("event_id", event.ID).
			Msg("Event delivery timeout")
	}
}

func (sub *Subscription) matches(event *Event) bool {
	for _, eventType := range sub.EventTypes {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
