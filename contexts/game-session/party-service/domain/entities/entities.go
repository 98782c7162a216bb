package entities

import "time"

type PartyStatus string

const (
	// PartyStatusOpen accepts joins and submissions.
	PartyStatusOpen PartyStatus = "open"
	// PartyStatusEnding is the transient guard while a settlement is being
	// computed. Callers never observe it; reads report it as open.
	PartyStatusEnding PartyStatus = "ending"
	// PartyStatusEnded is terminal. The stored settlement is immutable.
	PartyStatusEnded PartyStatus = "ended"
)

type PlayerRole string

const (
	PlayerRoleHost        PlayerRole = "host"
	PlayerRoleParticipant PlayerRole = "participant"
)

// Party is one poker session, identified by its shareable join code.
type Party struct {
	Code         string
	Status       PartyStatus
	BuyInCents   int64
	HostPlayerID string
	HostToken    string
	CreatedAt    time.Time
	EndedAt      *time.Time
}

type Player struct {
	PlayerID     string
	PartyCode    string
	DisplayName  string
	PayoutHandle string
	Role         PlayerRole
	JoinedAt     time.Time
}

// Submission is one externally-valuated chip stack reading. Rows are
// append-only; SequenceNumber is assigned by the store per party and gives
// the total order used for latest-wins resolution, independent of clocks.
type Submission struct {
	SubmissionID   string
	PartyCode      string
	PlayerID       string
	SequenceNumber int64
	ValuationCents int64
	SourceRef      string
	Breakdown      map[string]int64
	SubmittedAt    time.Time
}

// Transfer is a single directed payment instruction between two players.
type Transfer struct {
	FromPlayerID string
	FromName     string
	FromHandle   string
	ToPlayerID   string
	ToName       string
	ToHandle     string
	AmountCents  int64
}

// PlayerNet records the balance the engine settled for one player.
// RemainderCents is the part of the net that found no counterparty when the
// reported totals do not sum to zero.
type PlayerNet struct {
	PlayerID       string
	DisplayName    string
	PayoutHandle   string
	BuyInCents     int64
	CashOutCents   int64
	NetCents       int64
	Resolved       bool
	RemainderCents int64
}

// Settlement is the write-once result of ending a party.
type Settlement struct {
	SettlementID        string
	PartyCode           string
	BuyInCents          int64
	Nets                []PlayerNet
	Transfers           []Transfer
	ImbalanceCents      int64
	UnresolvedPlayerIDs []string
	SettledAt           time.Time
}
