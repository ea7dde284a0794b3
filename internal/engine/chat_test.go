package engine

import (
	"errors"
	"testing"

	"github.com/phantom-night/server/internal/domain/player"
)

func TestPhantomChatIsTeamOnly(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	phantoms := c.phantoms()
	if err := e.SendPhantomChat(c.gameID, phantoms[0].ResidentID, "the guardian first?"); err != nil {
		t.Fatal(err)
	}
	if err := e.SendPhantomChat(c.gameID, phantoms[1].ResidentID, "too obvious, take the oracle"); err != nil {
		t.Fatal(err)
	}

	msgs, err := e.PhantomChat(c.gameID, phantoms[0].ResidentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages %d, want 2", len(msgs))
	}
	if msgs[0].SenderID != phantoms[0].ID || msgs[1].SenderID != phantoms[1].ID {
		t.Error("sender attribution wrong")
	}

	// Citizens, the host included, have no access either way.
	if _, err := e.PhantomChat(c.gameID, hostResident); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("citizen read: got %v, want ErrNotAuthorized", err)
	}
	if err := e.SendPhantomChat(c.gameID, hostResident, "hello?"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("citizen write: got %v, want ErrNotAuthorized", err)
	}

	// The fanatic sits on the citizens team and stays locked out.
	fanatic := c.byRole(player.RoleFanatic)
	if _, err := e.PhantomChat(c.gameID, fanatic.ResidentID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("fanatic read: got %v, want ErrNotAuthorized", err)
	}
}

func TestPhantomChatRejectsEmptyAndUnknown(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())
	phantom := c.phantoms()[0]

	if err := e.SendPhantomChat(c.gameID, phantom.ResidentID, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank message: got %v, want ErrValidation", err)
	}
	if err := e.SendPhantomChat("nope", phantom.ResidentID, "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown game: got %v, want ErrNotFound", err)
	}
	if _, err := e.PhantomChat(c.gameID, "resident-ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown resident: got %v, want ErrNotFound", err)
	}
}

func TestPhantomChatClosedOutsideRunningGames(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// Preparing: roles are not dealt, the channel does not exist yet.
	game, err := e.CreateLobby(t.Name(), hostResident, "Hope", 8, "short")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.PhantomChat(game.ID, hostResident); !errors.Is(err, ErrStateConflict) {
		t.Errorf("preparing read: got %v, want ErrStateConflict", err)
	}

	// Finished: the channel closes with the game.
	if _, err := e.StartGame(game.ID, hostResident); err != nil {
		t.Fatal(err)
	}
	gs, _ := e.gameByID(game.ID)
	gs.mu.Lock()
	seats := gs.orderedPlayers()
	for i, p := range seats {
		p.Assign(defaultRoles()[i])
	}
	var phantomResident string
	for _, p := range seats {
		if p.Role == player.RolePhantom {
			phantomResident = p.ResidentID
			break
		}
	}
	for _, p := range seats {
		if p.Role != player.RolePhantom {
			p.Eliminate(1)
		}
	}
	gs.mu.Unlock()

	expirePhase(t, e, clock, game.ID)
	mustStatus(t, e, game.ID, StatusFinished)

	if err := e.SendPhantomChat(game.ID, phantomResident, "ggs"); !errors.Is(err, ErrStateConflict) {
		t.Errorf("post-game write: got %v, want ErrStateConflict", err)
	}
}

func TestIsPhantomRouting(t *testing.T) {
	e := newTestEngine(newFakeClock())
	c := startRigged(t, e, defaultRoles())

	if !e.IsPhantom(c.gameID, c.phantoms()[0].ID) {
		t.Error("phantom not recognized")
	}
	if e.IsPhantom(c.gameID, c.seats[0].ID) {
		t.Error("citizen recognized as phantom")
	}
	if e.IsPhantom(c.gameID, c.byRole(player.RoleFanatic).ID) {
		t.Error("fanatic must not receive phantom-channel pushes")
	}
	if e.IsPhantom("nope", c.seats[0].ID) {
		t.Error("unknown game treated as phantom")
	}
}
