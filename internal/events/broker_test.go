package events

import (
	"testing"

	"renovationAi/internal/renovation"
)

func TestBrokerFiltersBySession(t *testing.T) {
	b := NewBroker()
	all := b.Subscribe("")
	one := b.Subscribe("a")
	defer b.Unsubscribe(all)
	defer b.Unsubscribe(one)

	b.Publish(Event{SessionID: "b", State: renovation.StateReady})
	b.Publish(Event{SessionID: "a", State: renovation.StateGenerating, Message: "generating"})

	if got := len(all.C); got != 2 {
		t.Fatalf("Expected 2 events for wildcard subscriber, got %d", got)
	}
	if got := len(one.C); got != 1 {
		t.Fatalf("Expected 1 event for session subscriber, got %d", got)
	}
	evt := <-one.C
	if !evt.Busy || evt.At.IsZero() || evt.Message != "generating" {
		t.Errorf("Unexpected event %+v", evt)
	}
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("")
	for i := 0; i < 20; i++ {
		b.Publish(Event{SessionID: "s", State: renovation.StateIdle})
	}
	if len(sub.C) != cap(sub.C) {
		t.Errorf("Expected full buffer of %d, got %d", cap(sub.C), len(sub.C))
	}
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	if _, ok := <-drain(sub.C); ok {
		t.Error("Expected closed channel after unsubscribe")
	}
}

func drain(ch chan Event) chan Event {
	for range ch {
	}
	return ch
}
