package rules

import (
	"testing"

	"github.com/phantom-night/server/internal/domain/player"
)

func TestDistributeBounds(t *testing.T) {
	if _, err := Distribute(MinPlayers-1, true); err == nil {
		t.Error("expected error below minimum roster size")
	}
	if _, err := Distribute(MaxPlayers+1, true); err == nil {
		t.Error("expected error above maximum roster size")
	}
}

func TestDistributeInvariants(t *testing.T) {
	for n := MinPlayers; n <= MaxPlayers; n++ {
		for _, hasHuman := range []bool{true, false} {
			d, err := Distribute(n, hasHuman)
			if err != nil {
				t.Fatalf("n=%d hasHuman=%v: %v", n, hasHuman, err)
			}

			total := d.Phantoms + d.Oracles + d.Guardians + d.Fanatics + d.Debuggers + d.Citizens
			if total != n {
				t.Errorf("n=%d hasHuman=%v: roles sum to %d", n, hasHuman, total)
			}
			if d.Phantoms < 1 {
				t.Errorf("n=%d: no phantoms dealt", n)
			}
			if d.Oracles != 1 {
				t.Errorf("n=%d: expected exactly one oracle, got %d", n, d.Oracles)
			}
			if d.Citizens < 0 {
				t.Errorf("n=%d hasHuman=%v: negative citizens", n, hasHuman)
			}
			if d.PhantomAlignedCount() >= d.CitizenAlignedCount() {
				t.Errorf("n=%d hasHuman=%v: phantom side %d not outnumbered by citizen side %d",
					n, hasHuman, d.PhantomAlignedCount(), d.CitizenAlignedCount())
			}
			if !hasHuman && d.Debuggers != 0 {
				t.Errorf("n=%d: debugger dealt without any human", n)
			}
			if hasHuman && n >= 7 && d.Debuggers != 1 {
				t.Errorf("n=%d: expected a debugger with humans present", n)
			}
		}
	}
}

func TestDeckMatchesDistribution(t *testing.T) {
	d, err := Distribute(10, true)
	if err != nil {
		t.Fatal(err)
	}
	deck := Deck(d)
	if len(deck) != 10 {
		t.Fatalf("deck size %d, want 10", len(deck))
	}

	counts := make(map[player.Role]int)
	for _, r := range deck {
		counts[r]++
	}
	if counts[player.RolePhantom] != d.Phantoms {
		t.Errorf("phantoms in deck %d, want %d", counts[player.RolePhantom], d.Phantoms)
	}
	if counts[player.RoleOracle] != d.Oracles {
		t.Errorf("oracles in deck %d, want %d", counts[player.RoleOracle], d.Oracles)
	}
	if counts[player.RoleFanatic] != d.Fanatics {
		t.Errorf("fanatics in deck %d, want %d", counts[player.RoleFanatic], d.Fanatics)
	}
}

func TestAssignDealsEveryone(t *testing.T) {
	roster := make([]*player.Player, 0, 8)
	for i := 0; i < 8; i++ {
		kind := player.KindAgent
		if i == 0 {
			kind = player.KindHuman
		}
		roster = append(roster, player.NewPlayer(
			"p", "g", "r", "name", kind))
	}

	dist, err := Assign(roster)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range roster {
		if p.Role == "" {
			t.Errorf("player %d left without a role", i)
		}
		if p.Team != player.TeamForRole(p.Role) {
			t.Errorf("player %d team %q does not match role %q", i, p.Team, p.Role)
		}
	}
	if dist.Phantoms != 2 {
		t.Errorf("8 players should deal 2 phantoms, got %d", dist.Phantoms)
	}
}

func TestFanaticSitsOnCitizenTeamButPhantomAligned(t *testing.T) {
	if player.TeamForRole(player.RoleFanatic) != player.TeamCitizens {
		t.Error("fanatic must not share the phantom chat channel")
	}
	if !player.PhantomAligned(player.RoleFanatic) {
		t.Error("fanatic must count on the phantom side for win math")
	}
	if player.TeamForRole(player.RolePhantom) != player.TeamPhantoms {
		t.Error("phantom team mismatch")
	}
}

func TestPresetByIDFallsBack(t *testing.T) {
	if PresetByID("short").ID != "short" {
		t.Error("known preset not returned")
	}
	if PresetByID("warp-speed").ID != PresetStandard.ID {
		t.Error("unknown preset must fall back to standard")
	}
}
