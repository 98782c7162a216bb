package messaging

import (
	"context"
	"testing"

	"chipsplit/contexts/game-session/party-service/ports"
)

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx := context.Background()

	partyEvents, err := bus.Subscribe(ctx, "game-session.party", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	otherEvents, err := bus.Subscribe(ctx, "other.topic", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := ports.EventEnvelope{EventID: "evt-1", EventType: "party.ended"}
	if err := bus.Publish(ctx, "game-session.party", event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-partyEvents:
		if got.EventID != "evt-1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	default:
		t.Fatalf("expected an event on the party topic")
	}
	select {
	case got := <-otherEvents:
		t.Fatalf("event leaked to the wrong topic: %+v", got)
	default:
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}
	ctx := context.Background()

	events, err := bus.Subscribe(ctx, "game-session.party", 1)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// The buffer holds one event; the second must be dropped, not block.
	for i := 0; i < 2; i++ {
		if err := bus.Publish(ctx, "game-session.party", ports.EventEnvelope{EventID: "evt"}); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one buffered event, got %d", len(events))
	}
}
