package postgresadapter

import (
	"encoding/json"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
)

type partyModel struct {
	Code         string `gorm:"column:code;primaryKey"`
	Status       string `gorm:"column:status"`
	BuyInCents   int64  `gorm:"column:buy_in_cents"`
	HostPlayerID string `gorm:"column:host_player_id"`
	HostToken    string `gorm:"column:host_token"`
	// NextSequence is the per-party submission counter, bumped under a row
	// lock so sequence numbers stay strictly increasing.
	NextSequence int64      `gorm:"column:next_sequence"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
}

func (partyModel) TableName() string { return "parties" }

type playerModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	PartyCode    string    `gorm:"column:party_code;index"`
	DisplayName  string    `gorm:"column:display_name"`
	PayoutHandle string    `gorm:"column:payout_handle"`
	Role         string    `gorm:"column:role"`
	JoinedAt     time.Time `gorm:"column:joined_at"`
}

func (playerModel) TableName() string { return "players" }

type submissionModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	PartyCode      string    `gorm:"column:party_code;index:idx_submissions_party_seq,priority:1"`
	PlayerID       string    `gorm:"column:player_id;index"`
	SequenceNumber int64     `gorm:"column:sequence_number;index:idx_submissions_party_seq,priority:2"`
	ValuationCents int64     `gorm:"column:valuation_cents"`
	SourceRef      string    `gorm:"column:source_ref"`
	BreakdownJSON  string    `gorm:"column:breakdown_json"`
	SubmittedAt    time.Time `gorm:"column:submitted_at"`
}

func (submissionModel) TableName() string { return "submissions" }

type settlementModel struct {
	PartyCode      string    `gorm:"column:party_code;primaryKey"`
	SettlementID   string    `gorm:"column:settlement_id"`
	BuyInCents     int64     `gorm:"column:buy_in_cents"`
	NetsJSON       string    `gorm:"column:nets_json"`
	TransfersJSON  string    `gorm:"column:transfers_json"`
	ImbalanceCents int64     `gorm:"column:imbalance_cents"`
	UnresolvedJSON string    `gorm:"column:unresolved_json"`
	SettledAt      time.Time `gorm:"column:settled_at"`
}

func (settlementModel) TableName() string { return "settlements" }

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "party_outbox" }

func partyModelFromEntity(party entities.Party) partyModel {
	return partyModel{
		Code:         party.Code,
		Status:       string(party.Status),
		BuyInCents:   party.BuyInCents,
		HostPlayerID: party.HostPlayerID,
		HostToken:    party.HostToken,
		CreatedAt:    party.CreatedAt.UTC(),
		EndedAt:      party.EndedAt,
	}
}

func (m partyModel) toEntity() entities.Party {
	return entities.Party{
		Code:         m.Code,
		Status:       entities.PartyStatus(m.Status),
		BuyInCents:   m.BuyInCents,
		HostPlayerID: m.HostPlayerID,
		HostToken:    m.HostToken,
		CreatedAt:    m.CreatedAt,
		EndedAt:      m.EndedAt,
	}
}

func playerModelFromEntity(player entities.Player) playerModel {
	return playerModel{
		ID:           player.PlayerID,
		PartyCode:    player.PartyCode,
		DisplayName:  player.DisplayName,
		PayoutHandle: player.PayoutHandle,
		Role:         string(player.Role),
		JoinedAt:     player.JoinedAt.UTC(),
	}
}

func (m playerModel) toEntity() entities.Player {
	return entities.Player{
		PlayerID:     m.ID,
		PartyCode:    m.PartyCode,
		DisplayName:  m.DisplayName,
		PayoutHandle: m.PayoutHandle,
		Role:         entities.PlayerRole(m.Role),
		JoinedAt:     m.JoinedAt,
	}
}

func submissionModelFromEntity(submission entities.Submission) (submissionModel, error) {
	breakdown := submission.Breakdown
	if breakdown == nil {
		breakdown = map[string]int64{}
	}
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return submissionModel{}, err
	}
	return submissionModel{
		ID:             submission.SubmissionID,
		PartyCode:      submission.PartyCode,
		PlayerID:       submission.PlayerID,
		SequenceNumber: submission.SequenceNumber,
		ValuationCents: submission.ValuationCents,
		SourceRef:      submission.SourceRef,
		BreakdownJSON:  string(raw),
		SubmittedAt:    submission.SubmittedAt.UTC(),
	}, nil
}

func (m submissionModel) toEntity() (entities.Submission, error) {
	breakdown := map[string]int64{}
	if m.BreakdownJSON != "" {
		if err := json.Unmarshal([]byte(m.BreakdownJSON), &breakdown); err != nil {
			return entities.Submission{}, err
		}
	}
	return entities.Submission{
		SubmissionID:   m.ID,
		PartyCode:      m.PartyCode,
		PlayerID:       m.PlayerID,
		SequenceNumber: m.SequenceNumber,
		ValuationCents: m.ValuationCents,
		SourceRef:      m.SourceRef,
		Breakdown:      breakdown,
		SubmittedAt:    m.SubmittedAt,
	}, nil
}

func settlementModelFromEntity(settlement entities.Settlement) (settlementModel, error) {
	nets, err := json.Marshal(settlement.Nets)
	if err != nil {
		return settlementModel{}, err
	}
	transfers, err := json.Marshal(settlement.Transfers)
	if err != nil {
		return settlementModel{}, err
	}
	unresolved, err := json.Marshal(settlement.UnresolvedPlayerIDs)
	if err != nil {
		return settlementModel{}, err
	}
	return settlementModel{
		PartyCode:      settlement.PartyCode,
		SettlementID:   settlement.SettlementID,
		BuyInCents:     settlement.BuyInCents,
		NetsJSON:       string(nets),
		TransfersJSON:  string(transfers),
		ImbalanceCents: settlement.ImbalanceCents,
		UnresolvedJSON: string(unresolved),
		SettledAt:      settlement.SettledAt.UTC(),
	}, nil
}

func (m settlementModel) toEntity() (entities.Settlement, error) {
	settlement := entities.Settlement{
		SettlementID:   m.SettlementID,
		PartyCode:      m.PartyCode,
		BuyInCents:     m.BuyInCents,
		ImbalanceCents: m.ImbalanceCents,
		SettledAt:      m.SettledAt,
	}
	if err := json.Unmarshal([]byte(m.NetsJSON), &settlement.Nets); err != nil {
		return entities.Settlement{}, err
	}
	if err := json.Unmarshal([]byte(m.TransfersJSON), &settlement.Transfers); err != nil {
		return entities.Settlement{}, err
	}
	if m.UnresolvedJSON != "" {
		if err := json.Unmarshal([]byte(m.UnresolvedJSON), &settlement.UnresolvedPlayerIDs); err != nil {
			return entities.Settlement{}, err
		}
	}
	return settlement, nil
}
