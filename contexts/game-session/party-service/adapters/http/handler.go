package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"chipsplit/contexts/game-session/party-service/application"
	"chipsplit/contexts/game-session/party-service/domain/entities"
	"chipsplit/contexts/game-session/party-service/ports"
	httptransport "chipsplit/contexts/game-session/party-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreatePartyHandler(
	ctx context.Context,
	req httptransport.CreatePartyRequest,
) (httptransport.CreatePartyResponse, error) {
	created, err := h.Service.CreateParty(ctx, ports.CreatePartyInput{
		HostName:     req.HostName,
		PayoutHandle: req.PayoutHandle,
		BuyInCents:   req.BuyInCents,
	})
	if err != nil {
		return httptransport.CreatePartyResponse{}, err
	}
	return httptransport.CreatePartyResponse{
		Status: "success",
		Data: httptransport.CreatePartyData{
			Party:     toPartyDTO(created.Party),
			Host:      toPlayerDTO(created.Host, false, 0),
			HostToken: created.Party.HostToken,
		},
	}, nil
}

func (h Handler) JoinPartyHandler(
	ctx context.Context,
	code string,
	req httptransport.JoinPartyRequest,
) (httptransport.JoinPartyResponse, error) {
	player, err := h.Service.JoinParty(ctx, code, ports.JoinPartyInput{
		DisplayName:  req.DisplayName,
		PayoutHandle: req.PayoutHandle,
	})
	if err != nil {
		return httptransport.JoinPartyResponse{}, err
	}
	return httptransport.JoinPartyResponse{
		Status: "success",
		Data:   toPlayerDTO(player, false, 0),
	}, nil
}

func (h Handler) SubmitHandler(
	ctx context.Context,
	code string,
	req httptransport.SubmitRequest,
) (httptransport.SubmitResponse, error) {
	submission, err := h.Service.Submit(ctx, code, ports.SubmitInput{
		PlayerID:       req.PlayerID,
		ValuationCents: req.ValuationCents,
		SourceRef:      req.SourceRef,
		Breakdown:      req.Breakdown,
	})
	if err != nil {
		return httptransport.SubmitResponse{}, err
	}
	return httptransport.SubmitResponse{
		Status: "success",
		Data:   toSubmissionDTO(submission),
	}, nil
}

func (h Handler) PartyViewHandler(
	ctx context.Context,
	code string,
) (httptransport.PartyViewResponse, error) {
	snapshot, err := h.Service.PartySnapshot(ctx, code)
	if err != nil {
		return httptransport.PartyViewResponse{}, err
	}

	view := httptransport.PartyViewDTO{
		Party:       toPartyDTO(snapshot.Party),
		Players:     make([]httptransport.PlayerDTO, 0, len(snapshot.Players)),
		Submissions: make([]httptransport.SubmissionDTO, 0, len(snapshot.Submissions)),
	}
	for _, player := range snapshot.Players {
		view.Players = append(view.Players, toPlayerDTO(player.Player, player.Submitted, player.ResolvedCents))
	}
	for _, submission := range snapshot.Submissions {
		view.Submissions = append(view.Submissions, toSubmissionDTO(submission))
	}
	return httptransport.PartyViewResponse{Status: "success", Data: view}, nil
}

// EndPartyHandler authorizes the caller as host before invoking the engine.
// Host gating lives here at the boundary, not inside the settlement.
func (h Handler) EndPartyHandler(
	ctx context.Context,
	code string,
	req httptransport.EndPartyRequest,
) (httptransport.EndPartyResponse, error) {
	if err := h.Service.AuthorizeHost(ctx, code, req.HostToken); err != nil {
		return httptransport.EndPartyResponse{}, err
	}
	settlement, replayed, err := h.Service.EndGame(ctx, code)
	if err != nil {
		return httptransport.EndPartyResponse{}, err
	}
	return httptransport.EndPartyResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toSettlementDTO(settlement),
	}, nil
}

func (h Handler) SettlementHandler(
	ctx context.Context,
	code string,
) (httptransport.SettlementResponse, error) {
	settlement, err := h.Service.GetSettlement(ctx, code)
	if err != nil {
		return httptransport.SettlementResponse{}, err
	}
	return httptransport.SettlementResponse{
		Status: "success",
		Data:   toSettlementDTO(settlement),
	}, nil
}

func toPartyDTO(party entities.Party) httptransport.PartyDTO {
	dto := httptransport.PartyDTO{
		Code:       party.Code,
		Status:     string(party.Status),
		BuyInCents: party.BuyInCents,
		CreatedAt:  party.CreatedAt.UTC().Format(time.RFC3339),
	}
	if party.EndedAt != nil {
		dto.EndedAt = party.EndedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toPlayerDTO(player entities.Player, submitted bool, resolvedCents int64) httptransport.PlayerDTO {
	return httptransport.PlayerDTO{
		PlayerID:      player.PlayerID,
		DisplayName:   player.DisplayName,
		PayoutHandle:  player.PayoutHandle,
		Role:          string(player.Role),
		JoinedAt:      player.JoinedAt.UTC().Format(time.RFC3339),
		Submitted:     submitted,
		ResolvedCents: resolvedCents,
	}
}

func toSubmissionDTO(submission entities.Submission) httptransport.SubmissionDTO {
	return httptransport.SubmissionDTO{
		SubmissionID:   submission.SubmissionID,
		PlayerID:       submission.PlayerID,
		SequenceNumber: submission.SequenceNumber,
		ValuationCents: submission.ValuationCents,
		SourceRef:      submission.SourceRef,
		Breakdown:      submission.Breakdown,
		SubmittedAt:    submission.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

func toSettlementDTO(settlement entities.Settlement) httptransport.SettlementDTO {
	dto := httptransport.SettlementDTO{
		SettlementID:        settlement.SettlementID,
		PartyCode:           settlement.PartyCode,
		BuyInCents:          settlement.BuyInCents,
		Nets:                make([]httptransport.PlayerNetDTO, 0, len(settlement.Nets)),
		Transfers:           make([]httptransport.TransferDTO, 0, len(settlement.Transfers)),
		ImbalanceCents:      settlement.ImbalanceCents,
		UnresolvedPlayerIDs: settlement.UnresolvedPlayerIDs,
		SettledAt:           settlement.SettledAt.UTC().Format(time.RFC3339),
	}
	for _, net := range settlement.Nets {
		dto.Nets = append(dto.Nets, httptransport.PlayerNetDTO{
			PlayerID:       net.PlayerID,
			DisplayName:    net.DisplayName,
			PayoutHandle:   net.PayoutHandle,
			BuyInCents:     net.BuyInCents,
			CashOutCents:   net.CashOutCents,
			NetCents:       net.NetCents,
			Resolved:       net.Resolved,
			RemainderCents: net.RemainderCents,
		})
	}
	for _, transfer := range settlement.Transfers {
		dto.Transfers = append(dto.Transfers, httptransport.TransferDTO{
			FromPlayerID: transfer.FromPlayerID,
			FromName:     transfer.FromName,
			FromHandle:   transfer.FromHandle,
			ToPlayerID:   transfer.ToPlayerID,
			ToName:       transfer.ToName,
			ToHandle:     transfer.ToHandle,
			AmountCents:  transfer.AmountCents,
		})
	}
	return dto
}
