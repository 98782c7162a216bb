package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	domainerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	"chipsplit/contexts/game-session/party-service/ports"
)

const sourceService = "game-session/party-service"

type Service struct {
	Repo         ports.Repository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Codes        ports.CodeGenerator
	Tokens       ports.TokenGenerator
	CodeAttempts int
	Logger       *slog.Logger
}

func (s Service) CreateParty(ctx context.Context, input ports.CreatePartyInput) (ports.PartyCreated, error) {
	hostName := strings.TrimSpace(input.HostName)
	if hostName == "" || input.BuyInCents <= 0 {
		return ports.PartyCreated{}, domainerrors.ErrInvalidInput
	}

	now := s.now()
	hostID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.PartyCreated{}, err
	}
	hostToken, err := s.Tokens.NewToken(ctx)
	if err != nil {
		return ports.PartyCreated{}, err
	}

	for attempt := 0; attempt < s.codeAttempts(); attempt++ {
		code, err := s.Codes.NewCode(ctx)
		if err != nil {
			return ports.PartyCreated{}, err
		}

		party := entities.Party{
			Code:         code,
			Status:       entities.PartyStatusOpen,
			BuyInCents:   input.BuyInCents,
			HostPlayerID: hostID,
			HostToken:    hostToken,
			CreatedAt:    now,
		}
		host := entities.Player{
			PlayerID:     hostID,
			PartyCode:    code,
			DisplayName:  hostName,
			PayoutHandle: strings.TrimSpace(input.PayoutHandle),
			Role:         entities.PlayerRoleHost,
			JoinedAt:     now,
		}

		err = s.Repo.CreateParty(ctx, party, host)
		if errors.Is(err, domainerrors.ErrCodeConflict) {
			continue
		}
		if err != nil {
			return ports.PartyCreated{}, err
		}

		if err := s.appendPartyCreatedOutbox(ctx, party); err != nil {
			return ports.PartyCreated{}, err
		}

		ResolveLogger(s.Logger).Info("party created",
			"event", "party_created",
			"module", sourceService,
			"layer", "application",
			"party_code", party.Code,
			"host_player_id", host.PlayerID,
			"buy_in_cents", party.BuyInCents,
		)
		return ports.PartyCreated{Party: party, Host: host}, nil
	}
	return ports.PartyCreated{}, domainerrors.ErrCodeExhausted
}

func (s Service) JoinParty(ctx context.Context, code string, input ports.JoinPartyInput) (entities.Player, error) {
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return entities.Player{}, domainerrors.ErrInvalidInput
	}

	party, err := s.Repo.GetParty(ctx, strings.TrimSpace(code))
	if err != nil {
		return entities.Player{}, err
	}
	if party.Status != entities.PartyStatusOpen {
		return entities.Player{}, domainerrors.ErrPartyClosed
	}

	playerID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Player{}, err
	}
	player := entities.Player{
		PlayerID:     playerID,
		PartyCode:    party.Code,
		DisplayName:  displayName,
		PayoutHandle: strings.TrimSpace(input.PayoutHandle),
		Role:         entities.PlayerRoleParticipant,
		JoinedAt:     s.now(),
	}
	// The store revalidates the party is still open; a join racing EndGame
	// loses cleanly rather than adding a player the settlement never saw.
	if err := s.Repo.AddPlayer(ctx, player); err != nil {
		return entities.Player{}, err
	}

	ResolveLogger(s.Logger).Info("player joined",
		"event", "party_player_joined",
		"module", sourceService,
		"layer", "application",
		"party_code", party.Code,
		"player_id", player.PlayerID,
	)
	return player, nil
}

func (s Service) Submit(ctx context.Context, code string, input ports.SubmitInput) (entities.Submission, error) {
	if strings.TrimSpace(input.PlayerID) == "" || input.ValuationCents < 0 {
		return entities.Submission{}, domainerrors.ErrInvalidInput
	}

	submissionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Submission{}, err
	}
	submission := entities.Submission{
		SubmissionID:   submissionID,
		PartyCode:      strings.TrimSpace(code),
		PlayerID:       strings.TrimSpace(input.PlayerID),
		ValuationCents: input.ValuationCents,
		SourceRef:      strings.TrimSpace(input.SourceRef),
		Breakdown:      input.Breakdown,
		SubmittedAt:    s.now(),
	}

	stored, err := s.Repo.AppendSubmission(ctx, submission)
	if err != nil {
		return entities.Submission{}, err
	}

	ResolveLogger(s.Logger).Info("valuation submitted",
		"event", "party_valuation_submitted",
		"module", sourceService,
		"layer", "application",
		"party_code", stored.PartyCode,
		"player_id", stored.PlayerID,
		"sequence_number", stored.SequenceNumber,
		"valuation_cents", stored.ValuationCents,
	)
	return stored, nil
}

// ResolveTotal returns the valuation of the player's highest-sequence
// submission. The second result is false when the player never submitted.
func (s Service) ResolveTotal(ctx context.Context, code string, playerID string) (int64, bool, error) {
	if _, err := s.Repo.GetPlayer(ctx, strings.TrimSpace(code), strings.TrimSpace(playerID)); err != nil {
		return 0, false, err
	}
	latest, ok, err := s.Repo.LatestSubmission(ctx, strings.TrimSpace(code), strings.TrimSpace(playerID))
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	return latest.ValuationCents, true, nil
}

// PartySnapshot is the read-only dashboard view. It takes no write guard, so
// a party mid-transition is still reported as open.
func (s Service) PartySnapshot(ctx context.Context, code string) (ports.PartySnapshot, error) {
	party, err := s.Repo.GetParty(ctx, strings.TrimSpace(code))
	if err != nil {
		return ports.PartySnapshot{}, err
	}
	if party.Status == entities.PartyStatusEnding {
		party.Status = entities.PartyStatusOpen
	}

	players, err := s.Repo.ListPlayers(ctx, party.Code)
	if err != nil {
		return ports.PartySnapshot{}, err
	}
	latest, err := s.Repo.LatestSubmissions(ctx, party.Code)
	if err != nil {
		return ports.PartySnapshot{}, err
	}
	submissions, err := s.Repo.ListSubmissions(ctx, party.Code)
	if err != nil {
		return ports.PartySnapshot{}, err
	}

	snapshot := ports.PartySnapshot{
		Party:       party,
		Players:     make([]ports.PlayerSnapshot, 0, len(players)),
		Submissions: submissions,
	}
	for _, player := range players {
		view := ports.PlayerSnapshot{Player: player}
		if sub, ok := latest[player.PlayerID]; ok {
			view.Submitted = true
			view.ResolvedCents = sub.ValuationCents
		}
		snapshot.Players = append(snapshot.Players, view)
	}
	return snapshot, nil
}

// AuthorizeHost checks the opaque token issued at creation. Role-gated
// operations call this at the boundary; the engine itself is role-blind.
func (s Service) AuthorizeHost(ctx context.Context, code string, hostToken string) error {
	if strings.TrimSpace(hostToken) == "" {
		return domainerrors.ErrInvalidInput
	}
	party, err := s.Repo.GetParty(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if party.HostToken != strings.TrimSpace(hostToken) {
		return domainerrors.ErrHostTokenMismatch
	}
	return nil
}

func (s Service) GetSettlement(ctx context.Context, code string) (entities.Settlement, error) {
	party, err := s.Repo.GetParty(ctx, strings.TrimSpace(code))
	if err != nil {
		return entities.Settlement{}, err
	}
	if party.Status != entities.PartyStatusEnded {
		return entities.Settlement{}, domainerrors.ErrSettlementNotFound
	}
	return s.Repo.GetSettlement(ctx, party.Code)
}

func (s Service) appendPartyCreatedOutbox(ctx context.Context, party entities.Party) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(map[string]any{
		"party_code":   party.Code,
		"buy_in_cents": party.BuyInCents,
		"created_at":   party.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        "party.created",
		OccurredAt:       party.CreatedAt.UTC(),
		SourceService:    sourceService,
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: "party_code",
		PartitionKey:     party.Code,
		Data:             data,
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) codeAttempts() int {
	if s.CodeAttempts <= 0 {
		return 5
	}
	return s.CodeAttempts
}
