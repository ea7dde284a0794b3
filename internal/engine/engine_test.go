package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/logger"
)

const hostResident = "resident-host"

// fakeClock lets tests own the engine's wall clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newTestEngine(clock *fakeClock) *Engine {
	return NewEngine(events.NewEventLog(nil), logger.NewLogger(), nil, nil, WithClock(clock.Now))
}

// cast is a started game with deterministic roles, addressable by seat.
type cast struct {
	gameID string
	seats  []*player.Player // join order; seat 0 is the human host
}

func (c *cast) byRole(r player.Role) *player.Player {
	for _, p := range c.seats {
		if p.Role == r {
			return p
		}
	}
	return nil
}

func (c *cast) phantoms() []*player.Player {
	var out []*player.Player
	for _, p := range c.seats {
		if p.Role == player.RolePhantom {
			out = append(out, p)
		}
	}
	return out
}

// startRigged opens an 8-seat game and overrides the random deal with a
// fixed layout so resolutions are deterministic.
func startRigged(t *testing.T, e *Engine, roles []player.Role) *cast {
	t.Helper()

	game, err := e.CreateLobby(t.Name(), hostResident, "Hope", len(roles), "short")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if _, err := e.StartGame(game.ID, hostResident); err != nil {
		t.Fatalf("start game: %v", err)
	}

	gs, ok := e.gameByID(game.ID)
	if !ok {
		t.Fatal("started game missing from registry")
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	seats := gs.orderedPlayers()
	if len(seats) != len(roles) {
		t.Fatalf("roster size %d, want %d", len(seats), len(roles))
	}
	for i, p := range seats {
		p.Assign(roles[i])
	}
	return &cast{gameID: game.ID, seats: seats}
}

// defaultRoles is the standard 8-seat layout: the human host is a plain
// citizen, agents hold the specials.
func defaultRoles() []player.Role {
	return []player.Role{
		player.RoleCitizen, // seat 0, human
		player.RolePhantom,
		player.RolePhantom,
		player.RoleOracle,
		player.RoleGuardian,
		player.RoleFanatic,
		player.RoleCitizen,
		player.RoleCitizen,
	}
}

// expirePhase pushes the clock past the current deadline and sweeps.
func expirePhase(t *testing.T, e *Engine, clock *fakeClock, gameID string) {
	t.Helper()
	game, err := e.GameByID(gameID)
	if err != nil {
		t.Fatalf("game lookup: %v", err)
	}
	clock.Set(game.PhaseEndsAt.Add(time.Second))
	e.Sweep()
}

// toDay walks a fresh game from night 1 into day 2 without casualties.
func toDay(t *testing.T, e *Engine, clock *fakeClock, gameID string) {
	t.Helper()
	expirePhase(t, e, clock, gameID)
	game, err := e.GameByID(gameID)
	if err != nil {
		t.Fatal(err)
	}
	if game.Status != StatusDay {
		t.Fatalf("expected day phase, got %s", game.Status)
	}
}

func mustStatus(t *testing.T, e *Engine, gameID string, want Status) *GameView {
	t.Helper()
	game, err := e.GameByID(gameID)
	if err != nil {
		t.Fatalf("game lookup: %v", err)
	}
	if game.Status != want {
		t.Fatalf("status %s, want %s", game.Status, want)
	}
	return game
}

func hasEvent(e *Engine, gameID string, typ events.EventType) bool {
	for _, ev := range e.EventLog().GetByGame(gameID) {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func countEvents(e *Engine, gameID string, typ events.EventType, round int) int {
	n := 0
	for _, ev := range e.EventLog().GetByGame(gameID) {
		if ev.Type == typ && ev.Round == round {
			n++
		}
	}
	return n
}
