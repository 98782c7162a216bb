package application

import (
	"testing"

	"chipsplit/contexts/game-session/party-service/domain/entities"
)

func playerNet(playerID string, netCents int64) entities.PlayerNet {
	return entities.PlayerNet{
		PlayerID:    playerID,
		DisplayName: "player " + playerID,
		NetCents:    netCents,
	}
}

func TestNetDebtsBalancedGame(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-host", 1000),
		playerNet("p-two", -500),
		playerNet("p-three", -500),
	}

	transfers, remainders := netDebts(nets)
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d: %+v", len(transfers), transfers)
	}
	for _, transfer := range transfers {
		if transfer.ToPlayerID != "p-host" {
			t.Fatalf("expected all transfers to p-host, got %+v", transfer)
		}
		if transfer.AmountCents != 500 {
			t.Fatalf("expected transfer of 500, got %d", transfer.AmountCents)
		}
	}
	if len(remainders) != 0 {
		t.Fatalf("balanced game should leave no remainders, got %v", remainders)
	}
}

func TestNetDebtsTieBreaksOnPlayerID(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-c", 600),
		playerNet("p-b", -300),
		playerNet("p-a", -300),
	}

	transfers, _ := netDebts(nets)
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	if transfers[0].FromPlayerID != "p-a" || transfers[1].FromPlayerID != "p-b" {
		t.Fatalf("expected equal debtors ordered by player id, got %s then %s",
			transfers[0].FromPlayerID, transfers[1].FromPlayerID)
	}
}

func TestNetDebtsIsDeterministic(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-1", 2500),
		playerNet("p-2", -700),
		playerNet("p-3", -700),
		playerNet("p-4", -400),
		playerNet("p-5", -700),
	}

	first, _ := netDebts(nets)
	for run := 0; run < 10; run++ {
		again, _ := netDebts(nets)
		if len(again) != len(first) {
			t.Fatalf("run %d produced %d transfers, first run produced %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("run %d transfer %d differs: %+v vs %+v", run, i, again[i], first[i])
			}
		}
	}
}

func TestNetDebtsTransferCountBound(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-1", 900),
		playerNet("p-2", -300),
		playerNet("p-3", -300),
		playerNet("p-4", -300),
		playerNet("p-5", 0),
	}

	transfers, _ := netDebts(nets)
	nonzero := 0
	for _, net := range nets {
		if net.NetCents != 0 {
			nonzero++
		}
	}
	if len(transfers) > nonzero-1 {
		t.Fatalf("expected at most %d transfers, got %d", nonzero-1, len(transfers))
	}

	// The matched amounts must reproduce every net exactly.
	settled := make(map[string]int64)
	for _, transfer := range transfers {
		settled[transfer.ToPlayerID] += transfer.AmountCents
		settled[transfer.FromPlayerID] -= transfer.AmountCents
	}
	for _, net := range nets {
		if settled[net.PlayerID] != net.NetCents {
			t.Fatalf("player %s settled to %d, net was %d", net.PlayerID, settled[net.PlayerID], net.NetCents)
		}
	}
}

func TestNetDebtsAllZeroNets(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-1", 0),
		playerNet("p-2", 0),
	}

	transfers, remainders := netDebts(nets)
	if len(transfers) != 0 {
		t.Fatalf("expected no transfers, got %+v", transfers)
	}
	if len(remainders) != 0 {
		t.Fatalf("expected no remainders, got %v", remainders)
	}
}

func TestNetDebtsUncoveredCreditRemainder(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-win", 700),
		playerNet("p-lose", -500),
	}

	transfers, remainders := netDebts(nets)
	if len(transfers) != 1 || transfers[0].AmountCents != 500 {
		t.Fatalf("expected a single 500 transfer, got %+v", transfers)
	}
	if remainders["p-win"] != 200 {
		t.Fatalf("expected uncovered credit of 200 for p-win, got %v", remainders)
	}
	if _, ok := remainders["p-lose"]; ok {
		t.Fatalf("p-lose was fully matched, remainders: %v", remainders)
	}
}

func TestNetDebtsUncollectedDebtRemainder(t *testing.T) {
	nets := []entities.PlayerNet{
		playerNet("p-win", 300),
		playerNet("p-lose", -500),
	}

	transfers, remainders := netDebts(nets)
	if len(transfers) != 1 || transfers[0].AmountCents != 300 {
		t.Fatalf("expected a single 300 transfer, got %+v", transfers)
	}
	if remainders["p-lose"] != -200 {
		t.Fatalf("expected uncollected debt of -200 for p-lose, got %v", remainders)
	}
}
