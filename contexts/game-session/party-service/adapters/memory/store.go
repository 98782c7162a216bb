package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	domainerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	"chipsplit/contexts/game-session/party-service/ports"
	"chipsplit/internal/platform/partycode"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Store implements every port in memory. The outer lock only guards the
// party map; each party carries its own mutex so parties never contend with
// each other.
type Store struct {
	mu      sync.RWMutex
	parties map[string]*partyState
	outbox  map[string]outboxRecord
}

type partyState struct {
	mu          sync.Mutex
	party       entities.Party
	players     []entities.Player
	playerIndex map[string]int
	submissions []entities.Submission
	latest      map[string]int
	nextSeq     int64
	settlement  *entities.Settlement
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		parties: make(map[string]*partyState),
		outbox:  make(map[string]outboxRecord),
	}
}

func (s *Store) CreateParty(_ context.Context, party entities.Party, host entities.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := strings.TrimSpace(party.Code)
	if code == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.parties[code]; exists {
		return domainerrors.ErrCodeConflict
	}
	s.parties[code] = &partyState{
		party:       party,
		players:     []entities.Player{host},
		playerIndex: map[string]int{host.PlayerID: 0},
		latest:      make(map[string]int),
	}
	return nil
}

func (s *Store) state(code string) (*partyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.parties[strings.TrimSpace(code)]
	if !ok {
		return nil, domainerrors.ErrPartyNotFound
	}
	return state, nil
}

func (s *Store) GetParty(_ context.Context, code string) (entities.Party, error) {
	state, err := s.state(code)
	if err != nil {
		return entities.Party{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.party, nil
}

func (s *Store) AddPlayer(_ context.Context, player entities.Player) error {
	state, err := s.state(player.PartyCode)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.party.Status != entities.PartyStatusOpen {
		return domainerrors.ErrPartyClosed
	}
	if _, exists := state.playerIndex[player.PlayerID]; exists {
		return domainerrors.ErrInvalidInput
	}
	state.playerIndex[player.PlayerID] = len(state.players)
	state.players = append(state.players, player)
	return nil
}

func (s *Store) GetPlayer(_ context.Context, code string, playerID string) (entities.Player, error) {
	state, err := s.state(code)
	if err != nil {
		return entities.Player{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	idx, ok := state.playerIndex[strings.TrimSpace(playerID)]
	if !ok {
		return entities.Player{}, domainerrors.ErrPlayerNotFound
	}
	return state.players[idx], nil
}

func (s *Store) ListPlayers(_ context.Context, code string) ([]entities.Player, error) {
	state, err := s.state(code)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return append([]entities.Player(nil), state.players...), nil
}

func (s *Store) AppendSubmission(_ context.Context, submission entities.Submission) (entities.Submission, error) {
	state, err := s.state(submission.PartyCode)
	if err != nil {
		return entities.Submission{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.party.Status != entities.PartyStatusOpen {
		return entities.Submission{}, domainerrors.ErrPartyClosed
	}
	if _, ok := state.playerIndex[submission.PlayerID]; !ok {
		return entities.Submission{}, domainerrors.ErrPlayerNotFound
	}

	state.nextSeq++
	submission.SequenceNumber = state.nextSeq
	state.latest[submission.PlayerID] = len(state.submissions)
	state.submissions = append(state.submissions, submission)
	return submission, nil
}

func (s *Store) ListSubmissions(_ context.Context, code string) ([]entities.Submission, error) {
	state, err := s.state(code)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return append([]entities.Submission(nil), state.submissions...), nil
}

func (s *Store) LatestSubmission(_ context.Context, code string, playerID string) (entities.Submission, bool, error) {
	state, err := s.state(code)
	if err != nil {
		return entities.Submission{}, false, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	idx, ok := state.latest[strings.TrimSpace(playerID)]
	if !ok {
		return entities.Submission{}, false, nil
	}
	return state.submissions[idx], true, nil
}

func (s *Store) LatestSubmissions(_ context.Context, code string) (map[string]entities.Submission, error) {
	state, err := s.state(code)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	latest := make(map[string]entities.Submission, len(state.latest))
	for playerID, idx := range state.latest {
		latest[playerID] = state.submissions[idx]
	}
	return latest, nil
}

func (s *Store) BeginSettlement(_ context.Context, code string) (entities.PartyStatus, error) {
	state, err := s.state(code)
	if err != nil {
		return "", err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	prior := state.party.Status
	if prior == entities.PartyStatusOpen {
		state.party.Status = entities.PartyStatusEnding
	}
	return prior, nil
}

func (s *Store) CompleteSettlement(_ context.Context, settlement entities.Settlement, endedAt time.Time) error {
	state, err := s.state(settlement.PartyCode)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.party.Status != entities.PartyStatusEnding {
		return domainerrors.ErrSettlementInProgress
	}
	ts := endedAt.UTC()
	stored := settlement
	state.settlement = &stored
	state.party.Status = entities.PartyStatusEnded
	state.party.EndedAt = &ts
	return nil
}

func (s *Store) AbortSettlement(_ context.Context, code string) error {
	state, err := s.state(code)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.party.Status == entities.PartyStatusEnding {
		state.party.Status = entities.PartyStatusOpen
	}
	return nil
}

func (s *Store) GetSettlement(_ context.Context, code string) (entities.Settlement, error) {
	state, err := s.state(code)
	if err != nil {
		return entities.Settlement{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.settlement == nil {
		return entities.Settlement{}, domainerrors.ErrSettlementNotFound
	}
	return *state.settlement, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrOutboxNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) NewCode(_ context.Context) (string, error) {
	return partycode.NewCode(5)
}

func (s *Store) NewToken(_ context.Context) (string, error) {
	return partycode.NewToken(24)
}
