package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePartyRequest struct {
	HostName     string `json:"host_name"`
	PayoutHandle string `json:"payout_handle,omitempty"`
	BuyInCents   int64  `json:"buy_in_cents"`
}

type PartyDTO struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	BuyInCents int64  `json:"buy_in_cents"`
	CreatedAt  string `json:"created_at"`
	EndedAt    string `json:"ended_at,omitempty"`
}

type PlayerDTO struct {
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name"`
	PayoutHandle  string `json:"payout_handle,omitempty"`
	Role          string `json:"role"`
	JoinedAt      string `json:"joined_at"`
	Submitted     bool   `json:"submitted"`
	ResolvedCents int64  `json:"resolved_cents"`
}

type SubmissionDTO struct {
	SubmissionID   string           `json:"submission_id"`
	PlayerID       string           `json:"player_id"`
	SequenceNumber int64            `json:"sequence_number"`
	ValuationCents int64            `json:"valuation_cents"`
	SourceRef      string           `json:"source_ref,omitempty"`
	Breakdown      map[string]int64 `json:"breakdown,omitempty"`
	SubmittedAt    string           `json:"submitted_at"`
}

type CreatePartyData struct {
	Party     PartyDTO  `json:"party"`
	Host      PlayerDTO `json:"host"`
	HostToken string    `json:"host_token"`
}

type CreatePartyResponse struct {
	Status string          `json:"status"`
	Data   CreatePartyData `json:"data"`
}

type JoinPartyRequest struct {
	DisplayName  string `json:"display_name"`
	PayoutHandle string `json:"payout_handle,omitempty"`
}

type JoinPartyResponse struct {
	Status string    `json:"status"`
	Data   PlayerDTO `json:"data"`
}

type SubmitRequest struct {
	PlayerID       string           `json:"player_id"`
	ValuationCents int64            `json:"valuation_cents"`
	SourceRef      string           `json:"source_ref,omitempty"`
	Breakdown      map[string]int64 `json:"breakdown,omitempty"`
}

type SubmitResponse struct {
	Status string        `json:"status"`
	Data   SubmissionDTO `json:"data"`
}

type PartyViewDTO struct {
	Party       PartyDTO        `json:"party"`
	Players     []PlayerDTO     `json:"players"`
	Submissions []SubmissionDTO `json:"submissions"`
}

type PartyViewResponse struct {
	Status string       `json:"status"`
	Data   PartyViewDTO `json:"data"`
}

type TransferDTO struct {
	FromPlayerID string `json:"from_player_id"`
	FromName     string `json:"from_name"`
	FromHandle   string `json:"from_handle,omitempty"`
	ToPlayerID   string `json:"to_player_id"`
	ToName       string `json:"to_name"`
	ToHandle     string `json:"to_handle,omitempty"`
	AmountCents  int64  `json:"amount_cents"`
}

type PlayerNetDTO struct {
	PlayerID       string `json:"player_id"`
	DisplayName    string `json:"display_name"`
	PayoutHandle   string `json:"payout_handle,omitempty"`
	BuyInCents     int64  `json:"buy_in_cents"`
	CashOutCents   int64  `json:"cash_out_cents"`
	NetCents       int64  `json:"net_cents"`
	Resolved       bool   `json:"resolved"`
	RemainderCents int64  `json:"remainder_cents,omitempty"`
}

type SettlementDTO struct {
	SettlementID        string         `json:"settlement_id"`
	PartyCode           string         `json:"party_code"`
	BuyInCents          int64          `json:"buy_in_cents"`
	Nets                []PlayerNetDTO `json:"nets"`
	Transfers           []TransferDTO  `json:"transfers"`
	ImbalanceCents      int64          `json:"imbalance_cents"`
	UnresolvedPlayerIDs []string       `json:"unresolved_player_ids,omitempty"`
	SettledAt           string         `json:"settled_at"`
}

type EndPartyRequest struct {
	HostToken string `json:"host_token"`
}

type EndPartyResponse struct {
	Status   string        `json:"status"`
	Replayed bool          `json:"replayed,omitempty"`
	Data     SettlementDTO `json:"data"`
}

type SettlementResponse struct {
	Status string        `json:"status"`
	Data   SettlementDTO `json:"data"`
}
