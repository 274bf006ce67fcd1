// internal/ssh/queue_test.go

package ssh

import (
	"runtime"
	"testing"
	"time"
)

func TestFifoPreservesOrder(t *testing.T) {
	q := newFifo[int]()
	const n = 100
	for i := 0; i < n; i++ {
		if !q.push(i) {
			t.Fatalf("push(%d) returned false on open queue", i)
		}
	}
	q.close()

	got := 0
	for v := range q.out {
		if v != got {
			t.Fatalf("expected %d, got %d", got, v)
		}
		got++
	}
	if got != n {
		t.Fatalf("expected %d items, got %d", n, got)
	}
}

func TestFifoPushAfterClose(t *testing.T) {
	q := newFifo[int]()
	q.close()
	if q.push(1) {
		t.Fatal("push after close should return false")
	}
	// Zamknięcie ponowne musi być bezpieczne.
	q.close()
}

func TestFifoSenderNeverBlocks(t *testing.T) {
	q := newFifo[int]()
	done := make(chan struct{})
	go func() {
		// Nikt nie odbiera, a push i tak musi wracać.
		for i := 0; i < 1000; i++ {
			q.push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked without a receiver")
	}
	q.discard()
}

func TestFifoDiscardDropsBufferedItems(t *testing.T) {
	q := newFifo[int]()
	q.push(1)
	q.push(2)
	q.discard()

	// Chwila na to, żeby pompa zauważyła zamknięcie.
	time.Sleep(50 * time.Millisecond)

	select {
	case v, ok := <-q.out:
		if ok {
			t.Fatalf("discarded item delivered: %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("out channel not closed after discard")
	}
}

func TestFifoDiscardReleasesPump(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 10; i++ {
		q := newFifo[int]()
		q.push(1)
		q.push(2)
		q.discard()
	}

	// Pompy schodzą asynchronicznie po zamknięciu.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("pump goroutines still alive: %d before, %d after",
				before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCancelWithPendingEventsReleasesQueue(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()

	b.publish(DataReceivedEvent{Data: []byte("pending")})
	b.publish(DataReceivedEvent{Data: []byte("pending")})
	sub.Cancel()

	time.Sleep(50 * time.Millisecond)

	// Niedoręczone zdarzenia są porzucane, kanał się zamyka.
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("event delivered after Cancel: %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Cancel")
	}
	b.close()
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster()
	s1 := b.subscribe()
	s2 := b.subscribe()

	b.publish(ConnectedEvent{})
	b.publish(DataReceivedEvent{Data: []byte("hi")})
	b.close()

	for _, sub := range []*Subscription{s1, s2} {
		var events []Event
		for ev := range sub.Events() {
			events = append(events, ev)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if _, ok := events[0].(ConnectedEvent); !ok {
			t.Fatalf("expected ConnectedEvent first, got %T", events[0])
		}
		if _, ok := events[1].(DataReceivedEvent); !ok {
			t.Fatalf("expected DataReceivedEvent second, got %T", events[1])
		}
	}
}

func TestBroadcasterPublishAfterCloseIsDropped(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()

	b.publish(DisconnectedEvent{})
	b.close()
	b.publish(DataReceivedEvent{Data: []byte("late")})

	var events []Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the event before close, got %d", len(events))
	}
	if _, ok := events[0].(DisconnectedEvent); !ok {
		t.Fatalf("expected DisconnectedEvent, got %T", events[0])
	}
}

func TestSubscribeAfterCloseYieldsClosedChannel(t *testing.T) {
	b := newBroadcaster()
	b.close()

	sub := b.subscribe()
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel of late subscription not closed")
	}
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()
	sub.Cancel()

	b.publish(ConnectedEvent{})

	for range sub.Events() {
		t.Fatal("cancelled subscription received an event")
	}
	// Cancel po Cancel jest no-op.
	sub.Cancel()
	b.close()
}
