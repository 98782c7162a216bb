package application

import (
	"container/heap"
	"context"
	"encoding/json"
	"strings"
	"time"

	"chipsplit/contexts/game-session/party-service/domain/entities"
	domainerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	"chipsplit/contexts/game-session/party-service/ports"
)

// EndGame drives the one-shot open -> ending -> ended transition and computes
// the settlement. The replayed result is true when the party was already
// ended and the stored settlement was returned unchanged.
func (s Service) EndGame(ctx context.Context, code string) (entities.Settlement, bool, error) {
	code = strings.TrimSpace(code)

	prior, err := s.Repo.BeginSettlement(ctx, code)
	if err != nil {
		return entities.Settlement{}, false, err
	}
	switch prior {
	case entities.PartyStatusEnded:
		stored, err := s.Repo.GetSettlement(ctx, code)
		if err != nil {
			return entities.Settlement{}, false, err
		}
		return stored, true, nil
	case entities.PartyStatusEnding:
		return entities.Settlement{}, false, domainerrors.ErrSettlementInProgress
	}

	settlement, err := s.computeSettlement(ctx, code)
	if err != nil {
		// Roll the guard back so a later EndGame can retry; the failure
		// travels to the caller unchanged.
		_ = s.Repo.AbortSettlement(ctx, code)
		return entities.Settlement{}, false, err
	}

	if err := s.Repo.CompleteSettlement(ctx, settlement, settlement.SettledAt); err != nil {
		_ = s.Repo.AbortSettlement(ctx, code)
		return entities.Settlement{}, false, err
	}
	if err := s.appendPartyEndedOutbox(ctx, settlement); err != nil {
		return entities.Settlement{}, false, err
	}

	ResolveLogger(s.Logger).Info("party settled",
		"event", "party_settled",
		"module", sourceService,
		"layer", "application",
		"party_code", settlement.PartyCode,
		"settlement_id", settlement.SettlementID,
		"transfer_count", len(settlement.Transfers),
		"imbalance_cents", settlement.ImbalanceCents,
		"unresolved_count", len(settlement.UnresolvedPlayerIDs),
	)
	return settlement, false, nil
}

func (s Service) computeSettlement(ctx context.Context, code string) (entities.Settlement, error) {
	party, err := s.Repo.GetParty(ctx, code)
	if err != nil {
		return entities.Settlement{}, err
	}
	players, err := s.Repo.ListPlayers(ctx, code)
	if err != nil {
		return entities.Settlement{}, err
	}
	latest, err := s.Repo.LatestSubmissions(ctx, code)
	if err != nil {
		return entities.Settlement{}, err
	}
	settlementID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Settlement{}, err
	}

	settlement := entities.Settlement{
		SettlementID: strings.TrimSpace(settlementID),
		PartyCode:    party.Code,
		BuyInCents:   party.BuyInCents,
		Nets:         make([]entities.PlayerNet, 0, len(players)),
		SettledAt:    s.now(),
	}

	for _, player := range players {
		net := entities.PlayerNet{
			PlayerID:     player.PlayerID,
			DisplayName:  player.DisplayName,
			PayoutHandle: player.PayoutHandle,
			BuyInCents:   party.BuyInCents,
		}
		if sub, ok := latest[player.PlayerID]; ok {
			net.CashOutCents = sub.ValuationCents
			net.Resolved = true
		} else {
			// A player who never submitted defaults to a cash-out of zero,
			// a full loss of the buy-in. Recorded, not an error.
			settlement.UnresolvedPlayerIDs = append(settlement.UnresolvedPlayerIDs, player.PlayerID)
		}
		net.NetCents = net.CashOutCents - party.BuyInCents
		settlement.ImbalanceCents += net.NetCents
		settlement.Nets = append(settlement.Nets, net)
	}

	transfers, remainders := netDebts(settlement.Nets)
	settlement.Transfers = transfers
	for i := range settlement.Nets {
		settlement.Nets[i].RemainderCents = remainders[settlement.Nets[i].PlayerID]
	}
	return settlement, nil
}

// netDebts reduces per-player nets to at most one transfer fewer than the
// number of nonzero nets. Valuations are independent estimates, so the two
// sides need not balance; whatever cannot be matched is returned per player
// (positive for an uncovered credit, negative for an uncollected debt).
func netDebts(nets []entities.PlayerNet) ([]entities.Transfer, map[string]int64) {
	creditors := &netQueue{}
	debtors := &netQueue{}
	for _, net := range nets {
		switch {
		case net.NetCents > 0:
			heap.Push(creditors, netSide{
				playerID:  net.PlayerID,
				name:      net.DisplayName,
				handle:    net.PayoutHandle,
				remaining: net.NetCents,
			})
		case net.NetCents < 0:
			heap.Push(debtors, netSide{
				playerID:  net.PlayerID,
				name:      net.DisplayName,
				handle:    net.PayoutHandle,
				remaining: -net.NetCents,
			})
		}
	}

	transfers := make([]entities.Transfer, 0)
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := heap.Pop(creditors).(netSide)
		debtor := heap.Pop(debtors).(netSide)

		amount := min(creditor.remaining, debtor.remaining)
		transfers = append(transfers, entities.Transfer{
			FromPlayerID: debtor.playerID,
			FromName:     debtor.name,
			FromHandle:   debtor.handle,
			ToPlayerID:   creditor.playerID,
			ToName:       creditor.name,
			ToHandle:     creditor.handle,
			AmountCents:  amount,
		})

		creditor.remaining -= amount
		debtor.remaining -= amount
		if creditor.remaining > 0 {
			heap.Push(creditors, creditor)
		}
		if debtor.remaining > 0 {
			heap.Push(debtors, debtor)
		}
	}

	remainders := make(map[string]int64)
	for _, side := range creditors.items {
		remainders[side.playerID] = side.remaining
	}
	for _, side := range debtors.items {
		remainders[side.playerID] = -side.remaining
	}
	return transfers, remainders
}

type netSide struct {
	playerID  string
	name      string
	handle    string
	remaining int64
}

// netQueue orders by outstanding magnitude descending, player id ascending on
// ties. The tie-break keeps transfer lists reproducible.
type netQueue struct {
	items []netSide
}

func (q *netQueue) Len() int { return len(q.items) }

func (q *netQueue) Less(i, j int) bool {
	if q.items[i].remaining != q.items[j].remaining {
		return q.items[i].remaining > q.items[j].remaining
	}
	return q.items[i].playerID < q.items[j].playerID
}

func (q *netQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *netQueue) Push(x any) { q.items = append(q.items, x.(netSide)) }

func (q *netQueue) Pop() any {
	last := len(q.items) - 1
	item := q.items[last]
	q.items = q.items[:last]
	return item
}

func (s Service) appendPartyEndedOutbox(ctx context.Context, settlement entities.Settlement) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(map[string]any{
		"party_code":       settlement.PartyCode,
		"settlement_id":    settlement.SettlementID,
		"buy_in_cents":     settlement.BuyInCents,
		"transfer_count":   len(settlement.Transfers),
		"imbalance_cents":  settlement.ImbalanceCents,
		"unresolved_count": len(settlement.UnresolvedPlayerIDs),
		"settled_at":       settlement.SettledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        "party.ended",
		OccurredAt:       settlement.SettledAt.UTC(),
		SourceService:    sourceService,
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: "party_code",
		PartitionKey:     settlement.PartyCode,
		Data:             data,
	})
}
