package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the console
type EventType string

const (
	EventCatalogReloaded    EventType = "CATALOG_RELOADED"
	EventUserLogin          EventType = "USER_LOGIN"
	EventUserLogout         EventType = "USER_LOGOUT"
	EventPreferencesUpdated EventType = "PREFERENCES_UPDATED"
	EventCoinMarketUpdated  EventType = "COINMARKET_UPDATED"
	EventExchangeKeyChanged EventType = "EXCHANGE_KEY_CHANGED"
	EventError              EventType = "ERROR"
	EventConnected          EventType = "CONNECTED"
)

// Event represents a console event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishCatalogReloaded publishes a catalog reload
func (eb *EventBus) PublishCatalogReloaded(source string, version uint64, roles []string) {
	eb.Publish(Event{
		Type: EventCatalogReloaded,
		Data: map[string]interface{}{
			"source":  source,
			"version": version,
			"roles":   roles,
		},
	})
}

// PublishUserLogin publishes a successful login
func (eb *EventBus) PublishUserLogin(username, clientIP string) {
	eb.Publish(Event{
		Type: EventUserLogin,
		Data: map[string]interface{}{
			"username":  username,
			"client_ip": clientIP,
		},
	})
}

// PublishUserLogout publishes a user logout event
func (eb *EventBus) PublishUserLogout(username string) {
	eb.Publish(Event{
		Type: EventUserLogout,
		Data: map[string]interface{}{
			"username": username,
		},
	})
}

// PublishSettingsUpdated publishes a change to a settings section
func (eb *EventBus) PublishSettingsUpdated(eventType EventType, username string) {
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"updated_by": username,
		},
	})
}

// PublishExchangeKeyChanged publishes a create, update or delete of an
// exchange key. Secrets are never part of the event.
func (eb *EventBus) PublishExchangeKeyChanged(action string, id int64, exchange, accountName string) {
	eb.Publish(Event{
		Type: EventExchangeKeyChanged,
		Data: map[string]interface{}{
			"action":       action,
			"id":           id,
			"exchange":     exchange,
			"account_name": accountName,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
