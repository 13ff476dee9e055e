package events

import (
	"testing"
	"time"
)

func drain(c *Conn) []Event {
	var out []Event
	for {
		select {
		case e := <-c.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestPublishFansOutToRoom(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RunRoom("run-1"))
	other := d.Connect()
	d.Subscribe(other, RunRoom("run-2"))

	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{SubjectID: "doc-1"}})

	if got := drain(sub); len(got) != 1 {
		t.Fatalf("run-1 subscriber got %d events, want 1", len(got))
	}
	if got := drain(other); len(got) != 0 {
		t.Fatalf("run-2 subscriber got %d events, want 0", len(got))
	}
}

func TestSystemRoomSeesEverything(t *testing.T) {
	d := NewDistributor(8)
	sys := d.Connect()
	d.Subscribe(sys, RoomSystem)

	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}})
	d.Publish(Event{Type: TypeAgentStatus, RunID: "run-2", Payload: AgentStatusPayload{AgentID: "a1", Status: "busy"}})

	if got := drain(sys); len(got) != 2 {
		t.Fatalf("system subscriber got %d events, want 2", len(got))
	}
}

func TestAgentRoomScope(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, AgentRoom("a1"))

	d.Publish(Event{Type: TypeAgentStatus, RunID: "run-1", Payload: AgentStatusPayload{AgentID: "a1", Status: "idle"}})
	d.Publish(Event{Type: TypeAgentStatus, RunID: "run-1", Payload: AgentStatusPayload{AgentID: "a2", Status: "idle"}})

	if got := drain(sub); len(got) != 1 {
		t.Fatalf("agent subscriber got %d events, want 1", len(got))
	}
}

func TestNoDuplicateForOverlappingRooms(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RoomSystem)
	d.Subscribe(sub, RunRoom("run-1"))

	d.Publish(Event{Type: TypeRunEnded, RunID: "run-1", Payload: RunEndedPayload{}})

	if got := drain(sub); len(got) != 1 {
		t.Fatalf("got %d deliveries, want 1 (deduplicated across rooms)", len(got))
	}
}

func TestUnknownTypeDropped(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RoomSystem)

	d.Publish(Event{Type: Type("BOGUS"), RunID: "run-1", Payload: struct{}{}})

	if got := drain(sub); len(got) != 0 {
		t.Fatalf("unknown type delivered %d events, want 0", len(got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RunRoom("run-1"))
	d.Unsubscribe(sub, RunRoom("run-1"))

	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}})

	if got := drain(sub); got != nil {
		t.Fatalf("unsubscribed connection received %d events", len(got))
	}
}

func TestDisconnectDropsMemberships(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RoomSystem)
	d.Disconnect(sub)

	// Publish after disconnect must not panic or deliver.
	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}})

	if _, open := <-sub.Events(); open {
		t.Fatal("expected closed channel after disconnect")
	}
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	d := NewDistributor(2)
	sub := d.Connect()
	d.Subscribe(sub, RoomSystem)

	done := make(chan struct{})
	go func() {
		// Publish far more than the buffer holds without any consumer.
		for i := 0; i < 100; i++ {
			d.Publish(Event{Type: TypeTextMessageContent, RunID: "run-1", Payload: TextMessagePayload{Content: "x"}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if got := drain(sub); len(got) != 2 {
		t.Fatalf("buffered deliveries = %d, want channel capacity 2", len(got))
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	d := NewDistributor(8)
	sub := d.Connect()
	d.Subscribe(sub, RoomSystem)

	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}})

	got := drain(sub)
	if len(got) != 1 || got[0].Timestamp.IsZero() {
		t.Fatal("expected publish to stamp a timestamp")
	}
}

func TestLateJoinerGetsNoReplay(t *testing.T) {
	d := NewDistributor(8)
	d.Publish(Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}})

	late := d.Connect()
	d.Subscribe(late, RoomSystem)

	if got := drain(late); got != nil {
		t.Fatalf("late joiner received %d historical events", len(got))
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{Type: TypeRunStarted, RunID: "run-1", Payload: RunStartedPayload{}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}
	cases := []Event{
		{Type: Type("BOGUS"), RunID: "run-1", Payload: struct{}{}},
		{Type: TypeRunStarted, Payload: struct{}{}},
		{Type: TypeRunStarted, RunID: "run-1"},
	}
	for _, e := range cases {
		if err := e.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", e)
		}
	}
}
