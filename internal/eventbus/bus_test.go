package eventbus

import (
	"testing"
	"time"

	"pkt.systems/chimerax/schema"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	defer cancel()

	bus.OnOutput(schema.OutputEvent{UserID: "alice", TabID: "tab1", Lines: []string{"hi"}})

	got := recvEvent(t, ch)
	if got.Type != EventOutput {
		t.Fatalf("event type = %v, want %v", got.Type, EventOutput)
	}
	if got.Output.UserID != "alice" || got.Output.TabID != "tab1" {
		t.Fatalf("unexpected payload: %+v", got.Output)
	}
}

func TestPublishRoutesPerUser(t *testing.T) {
	bus := New(nil)
	aliceCh, cancelAlice := bus.Subscribe("alice")
	defer cancelAlice()
	_, cancelBob := bus.Subscribe("bob")
	defer cancelBob()

	bus.OnTabEvent(schema.TabEvent{UserID: "bob", Type: schema.TabEventCreated})
	bus.OnWindowEvent(schema.WindowEvent{UserID: "alice", Type: schema.WindowEventOpened})

	got := recvEvent(t, aliceCh)
	if got.Type != EventWindow {
		t.Fatalf("alice received %v, want her window event first", got.Type)
	}
	if got.Window.Type != schema.WindowEventOpened {
		t.Fatalf("unexpected window payload: %+v", got.Window)
	}
}

func TestMultipleSubscribersSameUser(t *testing.T) {
	bus := New(nil)
	first, cancelFirst := bus.Subscribe("alice")
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe("alice")
	defer cancelSecond()

	bus.OnSystemOutput(schema.SystemOutputEvent{UserID: "alice", Lines: []string{"note"}})

	for _, ch := range []<-chan Event{first, second} {
		if got := recvEvent(t, ch); got.Type != EventSystemOutput {
			t.Fatalf("event type = %v, want %v", got.Type, EventSystemOutput)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := New(nil)
	_, cancel := bus.Subscribe("alice")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// nobody drains, so this overruns the buffer by one
		for i := 0; i <= subscriberDepth; i++ {
			bus.OnOutput(schema.OutputEvent{UserID: "alice"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}
