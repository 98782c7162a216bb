package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	domainerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	"chipsplit/contexts/game-session/party-service/ports"
)

func testEnvelope(eventID string, occurredAt time.Time) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "party.created",
		OccurredAt:       occurredAt,
		SourceService:    "game-session/party-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "party_code",
		PartitionKey:     "AAAAA",
	}
}

func seedParty(t *testing.T, store *Store, code string) entities.Player {
	t.Helper()
	now := time.Now().UTC()
	host := entities.Player{
		PlayerID:    "host-" + code,
		PartyCode:   code,
		DisplayName: "Host",
		Role:        entities.PlayerRoleHost,
		JoinedAt:    now,
	}
	err := store.CreateParty(context.Background(), entities.Party{
		Code:         code,
		Status:       entities.PartyStatusOpen,
		BuyInCents:   1000,
		HostPlayerID: host.PlayerID,
		HostToken:    "token-" + code,
		CreatedAt:    now,
	}, host)
	if err != nil {
		t.Fatalf("seed party failed: %v", err)
	}
	return host
}

func TestCreatePartyRejectsDuplicateCode(t *testing.T) {
	store := NewStore()
	seedParty(t, store, "AAAAA")

	err := store.CreateParty(context.Background(), entities.Party{
		Code:   "AAAAA",
		Status: entities.PartyStatusOpen,
	}, entities.Player{PlayerID: "host-dup", PartyCode: "AAAAA"})
	if !errors.Is(err, domainerrors.ErrCodeConflict) {
		t.Fatalf("expected code conflict, got %v", err)
	}
}

func TestAppendSubmissionAssignsSequencesUnderConcurrency(t *testing.T) {
	store := NewStore()
	host := seedParty(t, store, "SEQAA")
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendSubmission(ctx, entities.Submission{
				SubmissionID:   fmt.Sprintf("sub-%d", i),
				PartyCode:      "SEQAA",
				PlayerID:       host.PlayerID,
				ValuationCents: int64(i),
			})
			if err != nil {
				t.Errorf("append %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	submissions, err := store.ListSubmissions(ctx, "SEQAA")
	if err != nil {
		t.Fatalf("list submissions failed: %v", err)
	}
	if len(submissions) != writers {
		t.Fatalf("expected %d submissions, got %d", writers, len(submissions))
	}
	for i, sub := range submissions {
		if sub.SequenceNumber != int64(i+1) {
			t.Fatalf("submission %d has sequence %d, want %d", i, sub.SequenceNumber, i+1)
		}
	}

	latest, ok, err := store.LatestSubmission(ctx, "SEQAA", host.PlayerID)
	if err != nil || !ok {
		t.Fatalf("latest submission lookup failed: ok=%v err=%v", ok, err)
	}
	if latest.SequenceNumber != writers {
		t.Fatalf("latest must carry the highest sequence, got %d", latest.SequenceNumber)
	}
}

func TestAppendSubmissionRejectsUnknownPlayer(t *testing.T) {
	store := NewStore()
	seedParty(t, store, "PLAYR")

	_, err := store.AppendSubmission(context.Background(), entities.Submission{
		SubmissionID: "sub-1",
		PartyCode:    "PLAYR",
		PlayerID:     "stranger",
	})
	if !errors.Is(err, domainerrors.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestBeginSettlementSwapsExactlyOnce(t *testing.T) {
	store := NewStore()
	seedParty(t, store, "CASAA")
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	priors := make([]entities.PartyStatus, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prior, err := store.BeginSettlement(ctx, "CASAA")
			if err != nil {
				t.Errorf("begin settlement failed: %v", err)
				return
			}
			priors[i] = prior
		}(i)
	}
	wg.Wait()

	sawOpen := 0
	for _, prior := range priors {
		if prior == entities.PartyStatusOpen {
			sawOpen++
		}
	}
	if sawOpen != 1 {
		t.Fatalf("exactly one caller must observe open, got %d", sawOpen)
	}
}

func TestSettlementTransitionGuards(t *testing.T) {
	store := NewStore()
	seedParty(t, store, "GUARD")
	ctx := context.Background()

	settlement := entities.Settlement{SettlementID: "st-1", PartyCode: "GUARD"}
	if err := store.CompleteSettlement(ctx, settlement, time.Now()); !errors.Is(err, domainerrors.ErrSettlementInProgress) {
		t.Fatalf("complete without begin must fail, got %v", err)
	}

	if _, err := store.BeginSettlement(ctx, "GUARD"); err != nil {
		t.Fatalf("begin settlement failed: %v", err)
	}
	if err := store.AbortSettlement(ctx, "GUARD"); err != nil {
		t.Fatalf("abort settlement failed: %v", err)
	}
	party, err := store.GetParty(ctx, "GUARD")
	if err != nil {
		t.Fatalf("get party failed: %v", err)
	}
	if party.Status != entities.PartyStatusOpen {
		t.Fatalf("abort must reopen the party, got %s", party.Status)
	}

	if _, err := store.BeginSettlement(ctx, "GUARD"); err != nil {
		t.Fatalf("second begin failed: %v", err)
	}
	endedAt := time.Now().UTC()
	if err := store.CompleteSettlement(ctx, settlement, endedAt); err != nil {
		t.Fatalf("complete settlement failed: %v", err)
	}
	party, err = store.GetParty(ctx, "GUARD")
	if err != nil {
		t.Fatalf("get party failed: %v", err)
	}
	if party.Status != entities.PartyStatusEnded || party.EndedAt == nil {
		t.Fatalf("completed party must be ended with a timestamp, got %+v", party)
	}
	stored, err := store.GetSettlement(ctx, "GUARD")
	if err != nil {
		t.Fatalf("get settlement failed: %v", err)
	}
	if stored.SettlementID != "st-1" {
		t.Fatalf("stored settlement mismatch: %+v", stored)
	}
}

func TestAddPlayerRejectedAfterSettlementBegins(t *testing.T) {
	store := NewStore()
	seedParty(t, store, "CLOSE")
	ctx := context.Background()

	if _, err := store.BeginSettlement(ctx, "CLOSE"); err != nil {
		t.Fatalf("begin settlement failed: %v", err)
	}
	err := store.AddPlayer(ctx, entities.Player{
		PlayerID:  "late-joiner",
		PartyCode: "CLOSE",
	})
	if !errors.Is(err, domainerrors.ErrPartyClosed) {
		t.Fatalf("expected party closed, got %v", err)
	}
}

func TestOutboxPendingAndPublishedLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := store.AppendOutbox(ctx, testEnvelope(fmt.Sprintf("evt-%d", i), base.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("append outbox %d failed: %v", i, err)
		}
	}
	// Duplicate event ids are absorbed, not duplicated.
	if err := store.AppendOutbox(ctx, testEnvelope("evt-0", base)); err != nil {
		t.Fatalf("duplicate append failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending rows, got %d", len(pending))
	}
	if pending[0].OutboxID != "evt-0" || pending[2].OutboxID != "evt-2" {
		t.Fatalf("pending rows must be ordered by creation time, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-0", time.Now()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending rows after publish, got %d", len(pending))
	}

	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrOutboxNotFound) {
		t.Fatalf("expected outbox not found, got %v", err)
	}
}
