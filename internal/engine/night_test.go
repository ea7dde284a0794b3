package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/events"
)

func TestNightKillResolvesAtExpiry(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantom := c.phantoms()[0]
	victim := c.seats[6] // plain citizen
	if err := e.SubmitNightAction(c.gameID, phantom.ResidentID, ActionAttack, victim.ID); err != nil {
		t.Fatal(err)
	}

	// Nothing happens before the deadline.
	e.Sweep()
	mustStatus(t, e, c.gameID, StatusNight)
	if !victim.IsAlive {
		t.Fatal("victim died before resolution")
	}

	expirePhase(t, e, clock, c.gameID)
	game := mustStatus(t, e, c.gameID, StatusDay)
	if game.CurrentRound != 2 {
		t.Errorf("round %d after first resolution, want 2", game.CurrentRound)
	}
	if victim.IsAlive {
		t.Error("victim survived an unblocked attack")
	}
	if victim.EliminatedRound != 1 {
		t.Errorf("eliminated round %d, want 1", victim.EliminatedRound)
	}
	if countEvents(e, c.gameID, events.EventTypePhantomKill, 1) != 1 {
		t.Error("expected exactly one phantom_kill event for night 1")
	}

	// The kill reveals the victim to everyone.
	roster, err := e.Players(c.gameID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range roster {
		if p.ID == victim.ID && p.RevealedRole != string(player.RoleCitizen) {
			t.Errorf("victim revealed as %q, want citizen", p.RevealedRole)
		}
		if p.ID != victim.ID && p.IsAlive && p.RevealedRole != "" {
			t.Errorf("living player %s leaked role %q", p.Name, p.RevealedRole)
		}
	}
}

func TestGuardianBlocksTheAttack(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantom := c.phantoms()[0]
	guardian := c.byRole(player.RoleGuardian)
	target := c.seats[6]

	if err := e.SubmitNightAction(c.gameID, guardian.ResidentID, ActionProtect, target.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitNightAction(c.gameID, phantom.ResidentID, ActionAttack, target.ID); err != nil {
		t.Fatal(err)
	}

	expirePhase(t, e, clock, c.gameID)
	if !target.IsAlive {
		t.Fatal("protected target died")
	}
	if countEvents(e, c.gameID, events.EventTypeProtected, 1) != 1 {
		t.Error("expected a protected event")
	}
	if countEvents(e, c.gameID, events.EventTypeNoKill, 1) != 1 {
		t.Error("a blocked attack still reads as a quiet night")
	}
}

func TestQuietNightWithoutAttack(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	expirePhase(t, e, clock, c.gameID)
	mustStatus(t, e, c.gameID, StatusDay)
	if countEvents(e, c.gameID, events.EventTypeNoKill, 1) != 1 {
		t.Error("expected a no_kill event when the phantoms never acted")
	}
	for _, p := range c.seats {
		if !p.IsAlive {
			t.Errorf("%s died on a quiet night", p.Name)
		}
	}
}

func TestLastPhantomSubmissionWins(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantoms := c.phantoms()
	first, second := c.seats[6], c.seats[7]

	if err := e.SubmitNightAction(c.gameID, phantoms[0].ResidentID, ActionAttack, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitNightAction(c.gameID, phantoms[1].ResidentID, ActionAttack, second.ID); err != nil {
		t.Fatal(err)
	}

	expirePhase(t, e, clock, c.gameID)
	if !first.IsAlive {
		t.Error("earlier target died; the team consensus is the last submission")
	}
	if second.IsAlive {
		t.Error("final target survived")
	}
}

func TestResubmissionOverwrites(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantom := c.phantoms()[0]
	first, second := c.seats[6], c.seats[7]

	if err := e.SubmitNightAction(c.gameID, phantom.ResidentID, ActionAttack, first.ID); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	if err := e.SubmitNightAction(c.gameID, phantom.ResidentID, ActionAttack, second.ID); err != nil {
		t.Fatal(err)
	}

	expirePhase(t, e, clock, c.gameID)
	if !first.IsAlive {
		t.Error("overwritten target died")
	}
	if second.IsAlive {
		t.Error("replacement target survived")
	}
}

func TestNightActionValidation(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantoms := c.phantoms()
	oracle := c.byRole(player.RoleOracle)
	citizen := c.seats[6]

	cases := []struct {
		name     string
		resident string
		typ      ActionType
		target   string
		want     error
	}{
		{"citizen cannot attack", hostResident, ActionAttack, citizen.ID, ErrValidation},
		{"phantom cannot investigate", phantoms[0].ResidentID, ActionInvestigate, citizen.ID, ErrValidation},
		{"no friendly fire", phantoms[0].ResidentID, ActionAttack, phantoms[1].ID, ErrValidation},
		{"no self attack", phantoms[0].ResidentID, ActionAttack, phantoms[0].ID, ErrValidation},
		{"unknown target", oracle.ResidentID, ActionInvestigate, "nobody", ErrValidation},
		{"unknown resident", "resident-ghost", ActionAttack, citizen.ID, ErrNotFound},
	}
	for _, tc := range cases {
		if err := e.SubmitNightAction(c.gameID, tc.resident, tc.typ, tc.target); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	// The guardian may shield itself; nobody else self-targets.
	guardian := c.byRole(player.RoleGuardian)
	if err := e.SubmitNightAction(c.gameID, guardian.ResidentID, ActionProtect, guardian.ID); err != nil {
		t.Errorf("guardian self-protect: %v", err)
	}
}

func TestSubmissionAfterExpiryNeverApplies(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	game := mustStatus(t, e, c.gameID, StatusNight)
	clock.Set(game.PhaseEndsAt.Add(time.Second))

	// The phase has expired but the sweep has not run yet. The submission
	// is rejected outright rather than racing the resolution.
	phantom := c.phantoms()[0]
	err := e.SubmitNightAction(c.gameID, phantom.ResidentID, ActionAttack, c.seats[6].ID)
	if !errors.Is(err, ErrStateConflict) {
		t.Errorf("late submission: got %v, want ErrStateConflict", err)
	}

	e.Sweep()
	if !c.seats[6].IsAlive {
		t.Error("late submission was applied")
	}
}

func TestOracleReadsFanaticAsPhantom(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	oracle := c.byRole(player.RoleOracle)
	fanatic := c.byRole(player.RoleFanatic)
	if err := e.SubmitNightAction(c.gameID, oracle.ResidentID, ActionInvestigate, fanatic.ID); err != nil {
		t.Fatal(err)
	}
	expirePhase(t, e, clock, c.gameID)

	rv, err := e.MyRole(c.gameID, oracle.ResidentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rv.InvestigationResults) != 1 {
		t.Fatalf("investigations %d, want 1", len(rv.InvestigationResults))
	}
	got := rv.InvestigationResults[0]
	if got.Result != ResultPhantom {
		t.Errorf("fanatic read %q, want %q", got.Result, ResultPhantom)
	}
	if got.TargetID != fanatic.ID || got.Round != 1 {
		t.Errorf("investigation misfiled: %+v", got)
	}

	// Investigation results are private to the oracle.
	hv, err := e.MyRole(c.gameID, hostResident)
	if err != nil {
		t.Fatal(err)
	}
	if len(hv.InvestigationResults) != 0 {
		t.Error("investigation leaked to a non-oracle")
	}
}

// debuggerRoles puts the debugger on the human host so the kind contrast
// with agent targets is under test control.
func debuggerRoles() []player.Role {
	return []player.Role{
		player.RoleDebugger, // seat 0, human
		player.RolePhantom,
		player.RolePhantom,
		player.RoleOracle,
		player.RoleGuardian,
		player.RoleFanatic,
		player.RoleCitizen,
		player.RoleCitizen,
	}
}

func TestDebuggerExposesOppositeKind(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, debuggerRoles())

	target := c.seats[6] // agent citizen, opposite kind of the human debugger
	if err := e.SubmitNightAction(c.gameID, hostResident, ActionIdentify, target.ID); err != nil {
		t.Fatal(err)
	}
	expirePhase(t, e, clock, c.gameID)

	if target.IsAlive {
		t.Error("opposite-kind target survived the identify")
	}
	if !c.seats[0].IsAlive {
		t.Error("debugger died on a correct guess")
	}
	if countEvents(e, c.gameID, events.EventTypeIdentifierKill, 1) != 1 {
		t.Error("expected an identifier_kill event")
	}
}

func TestDebuggerBackfiresOnSameKind(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// Two humans: the debugger host plus a human citizen target.
	game, err := e.CreateLobby(t.Name(), hostResident, "Hope", 8, "short")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.JoinLobby(game.ID, "resident-2", "Iris"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StartGame(game.ID, hostResident); err != nil {
		t.Fatal(err)
	}

	gs, _ := e.gameByID(game.ID)
	gs.mu.Lock()
	seats := gs.orderedPlayers()
	layout := []player.Role{
		player.RoleDebugger, // human host
		player.RoleCitizen,  // human target
		player.RolePhantom,
		player.RolePhantom,
		player.RoleOracle,
		player.RoleGuardian,
		player.RoleFanatic,
		player.RoleCitizen,
	}
	for i, p := range seats {
		p.Assign(layout[i])
	}
	gs.mu.Unlock()

	if err := e.SubmitNightAction(game.ID, hostResident, ActionIdentify, seats[1].ID); err != nil {
		t.Fatal(err)
	}
	expirePhase(t, e, clock, game.ID)

	if !seats[1].IsAlive {
		t.Error("same-kind target died; the guess should backfire instead")
	}
	if seats[0].IsAlive {
		t.Error("debugger survived a backfire")
	}
	if countEvents(e, game.ID, events.EventTypeIdentifierBackfire, 1) != 1 {
		t.Error("expected an identifier_backfire event")
	}
}

func TestAllActorsSubmittedResolvesEarly(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantoms := c.phantoms()
	oracle := c.byRole(player.RoleOracle)
	guardian := c.byRole(player.RoleGuardian)
	victim := c.seats[6]

	for _, ph := range phantoms {
		if err := e.SubmitNightAction(c.gameID, ph.ResidentID, ActionAttack, victim.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.SubmitNightAction(c.gameID, oracle.ResidentID, ActionInvestigate, victim.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitNightAction(c.gameID, guardian.ResidentID, ActionProtect, guardian.ID); err != nil {
		t.Fatal(err)
	}

	// Deadline untouched; every eligible actor has moved, so the next
	// sweep resolves without waiting.
	e.Sweep()
	mustStatus(t, e, c.gameID, StatusDay)
	if victim.IsAlive {
		t.Error("early resolution skipped the attack")
	}
}
