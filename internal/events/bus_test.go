package events

import (
	"testing"
	"time"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeReceivesOnlyItsType(t *testing.T) {
	bus := NewEventBus()
	reloads := make(chan Event, 2)
	bus.Subscribe(EventCatalogReloaded, func(e Event) { reloads <- e })

	bus.PublishUserLogout("admin")
	bus.PublishCatalogReloaded("builtin", 2, []string{"admin"})

	event := waitForEvent(t, reloads)
	if event.Type != EventCatalogReloaded {
		t.Errorf("Expected %s, got %s", EventCatalogReloaded, event.Type)
	}
	if event.Data["version"] != uint64(2) {
		t.Errorf("Expected version 2, got %v", event.Data["version"])
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	select {
	case extra := <-reloads:
		t.Errorf("Expected no further events, got %s", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	all := make(chan Event, 3)
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishUserLogin("vben", "127.0.0.1")
	bus.PublishExchangeKeyChanged("create", 1, "binance", "main")
	bus.PublishSettingsUpdated(EventPreferencesUpdated, "vben")

	seen := map[EventType]bool{}
	for i := 0; i < 3; i++ {
		seen[waitForEvent(t, all).Type] = true
	}
	for _, want := range []EventType{EventUserLogin, EventExchangeKeyChanged, EventPreferencesUpdated} {
		if !seen[want] {
			t.Errorf("Expected to receive %s", want)
		}
	}
}
