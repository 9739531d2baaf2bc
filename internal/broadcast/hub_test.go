package broadcast

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer first.Close()
	defer second.Close()

	hub.Publish(Event{Status: StatusStarted, Message: "go", InvocationID: "inv-1"})

	for i, sub := range []*Subscriber{first, second} {
		select {
		case evt := <-sub.Events():
			if evt.Status != StatusStarted || evt.InvocationID != "inv-1" {
				t.Fatalf("subscriber %d got unexpected event %+v", i, evt)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()
	hub.Publish(Event{Status: StatusCompleted, Message: "done"})

	late := hub.Subscribe()
	defer late.Close()

	select {
	case evt := <-late.Events():
		t.Fatalf("late subscriber should see nothing, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe()
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		// Overflow the buffer; Publish must never block.
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(Event{Status: StatusProcessing, Message: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	if got := hub.SubscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	sub.Close()
	sub.Close() // idempotent
	if got := hub.SubscriberCount(); got != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", got)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed events channel")
	}
}
