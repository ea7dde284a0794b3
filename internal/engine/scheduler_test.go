package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phantom-night/server/internal/events"
)

func TestConcurrentSweepsResolveOnce(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	game := mustStatus(t, e, c.gameID, StatusNight)
	clock.Set(game.PhaseEndsAt.Add(time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Sweep()
		}()
	}
	wg.Wait()

	// Sixteen racing triggers, one resolution: a single day_start and no
	// double-applied night outcome.
	if n := countEvents(e, c.gameID, events.EventTypeDayStart, 2); n != 1 {
		t.Errorf("day_start events %d, want 1", n)
	}
	game = mustStatus(t, e, c.gameID, StatusDay)
	if game.CurrentRound != 2 {
		t.Errorf("round %d, want 2", game.CurrentRound)
	}
}

func TestPhaseExpiredHintNeverResolvesDirectly(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	// Before the deadline the hint is client clock skew.
	if err := e.PhaseExpiredHint(c.gameID, 1, string(StatusNight)); !errors.Is(err, ErrValidation) {
		t.Errorf("early hint: got %v, want ErrValidation", err)
	}

	game := mustStatus(t, e, c.gameID, StatusNight)
	clock.Set(game.PhaseEndsAt.Add(time.Second))

	// A valid hint acknowledges but does not resolve; the sweep owns that.
	if err := e.PhaseExpiredHint(c.gameID, 1, string(StatusNight)); err != nil {
		t.Errorf("valid hint: %v", err)
	}
	mustStatus(t, e, c.gameID, StatusNight)

	e.Sweep()
	mustStatus(t, e, c.gameID, StatusDay)

	// The old hint is now stale.
	if err := e.PhaseExpiredHint(c.gameID, 1, string(StatusNight)); !errors.Is(err, ErrStateConflict) {
		t.Errorf("stale hint: got %v, want ErrStateConflict", err)
	}
	if err := e.PhaseExpiredHint("nope", 1, string(StatusNight)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown game hint: got %v, want ErrNotFound", err)
	}
}

func TestCancelAuthorization(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	agent := c.seats[1]
	if err := e.Cancel(c.gameID, agent.ResidentID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("agent cancel with a living human around: got %v, want ErrNotAuthorized", err)
	}
	if err := e.Cancel(c.gameID, "resident-stranger"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger cancel: got %v, want ErrNotAuthorized", err)
	}

	if err := e.Cancel(c.gameID, hostResident); err != nil {
		t.Fatalf("creator cancel: %v", err)
	}
	if e.CurrentGame(t.Name()) != nil {
		t.Error("cancelled game still current in scope")
	}
	if !hasEvent(e, c.gameID, events.EventTypeGameCancelled) {
		t.Error("missing game_cancelled event")
	}
	if err := e.Cancel(c.gameID, hostResident); !errors.Is(err, ErrNotFound) {
		t.Errorf("double cancel: got %v, want ErrNotFound", err)
	}
}

func TestCancelledGameIgnoredByLaterSweeps(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	c := startRigged(t, e, defaultRoles())

	game := mustStatus(t, e, c.gameID, StatusNight)
	if err := e.Cancel(c.gameID, hostResident); err != nil {
		t.Fatal(err)
	}

	clock.Set(game.PhaseEndsAt.Add(time.Second))
	e.Sweep()

	// No resolution events appear for the dead registry entry.
	if hasEvent(e, c.gameID, events.EventTypeDayStart) {
		t.Error("cancelled game advanced phase after cancellation")
	}
	if _, err := e.GameByID(c.gameID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancelled game lookup: got %v, want ErrNotFound", err)
	}
}

func TestFinishedGameFreesTheScope(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	layout := defaultRoles()
	c := startRigged(t, e, layout)

	// Drive the game to a phantom win by mass elimination.
	gs, _ := e.gameByID(c.gameID)
	gs.mu.Lock()
	for _, p := range c.seats[3:] {
		p.Eliminate(1)
	}
	gs.mu.Unlock()

	expirePhase(t, e, clock, c.gameID)
	mustStatus(t, e, c.gameID, StatusFinished)

	// CurrentGame still reports the finished game for the results screen.
	if e.CurrentGame(t.Name()) == nil {
		t.Error("finished game should stay visible in its scope")
	}
	// But the scope accepts a fresh lobby.
	if _, err := e.CreateLobby(t.Name(), "resident-2", "Iris", 8, "short"); err != nil {
		t.Errorf("new lobby after finish: %v", err)
	}
}
