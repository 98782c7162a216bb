package ports

import (
	"context"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	contractsv1 "chipsplit/contracts/gen/events/v1"
)

type CreatePartyInput struct {
	HostName     string
	PayoutHandle string
	BuyInCents   int64
}

type JoinPartyInput struct {
	DisplayName  string
	PayoutHandle string
}

type SubmitInput struct {
	PlayerID       string
	ValuationCents int64
	SourceRef      string
	Breakdown      map[string]int64
}

type PartyCreated struct {
	Party entities.Party
	Host  entities.Player
}

// PlayerSnapshot is a player plus the derived submission view used by
// dashboards. ResolvedCents is meaningful only when Submitted is true.
type PlayerSnapshot struct {
	Player        entities.Player
	Submitted     bool
	ResolvedCents int64
}

type PartySnapshot struct {
	Party       entities.Party
	Players     []PlayerSnapshot
	Submissions []entities.Submission
}

// Repository owns party-scoped state. Implementations must make
// AppendSubmission's sequence assignment and the settlement status
// transitions atomic per party; nothing else may block across parties.
type Repository interface {
	CreateParty(ctx context.Context, party entities.Party, host entities.Player) error
	GetParty(ctx context.Context, code string) (entities.Party, error)
	AddPlayer(ctx context.Context, player entities.Player) error
	GetPlayer(ctx context.Context, code string, playerID string) (entities.Player, error)
	ListPlayers(ctx context.Context, code string) ([]entities.Player, error)

	// AppendSubmission validates the party is open and the player belongs to
	// it, assigns the next per-party sequence number, and appends. The input
	// SequenceNumber is ignored.
	AppendSubmission(ctx context.Context, submission entities.Submission) (entities.Submission, error)
	ListSubmissions(ctx context.Context, code string) ([]entities.Submission, error)
	LatestSubmission(ctx context.Context, code string, playerID string) (entities.Submission, bool, error)
	LatestSubmissions(ctx context.Context, code string) (map[string]entities.Submission, error)

	// BeginSettlement compare-and-swaps the party from open to ending and
	// reports the status seen before the swap. Only an open party actually
	// transitions; ending and ended are returned unchanged so the caller can
	// decide between fail-fast and replay.
	BeginSettlement(ctx context.Context, code string) (entities.PartyStatus, error)
	CompleteSettlement(ctx context.Context, settlement entities.Settlement, endedAt time.Time) error
	AbortSettlement(ctx context.Context, code string) error
	GetSettlement(ctx context.Context, code string) (entities.Settlement, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// CodeGenerator produces candidate join codes. Uniqueness is enforced by the
// repository; the service retries on conflict.
type CodeGenerator interface {
	NewCode(ctx context.Context) (string, error)
}

// TokenGenerator produces the opaque host token issued at party creation.
type TokenGenerator interface {
	NewToken(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
