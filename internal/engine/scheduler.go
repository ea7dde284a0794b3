package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/metrics"
)

// sweepInterval is the scheduler's clock resolution. Phase durations are
// minutes, so a one-second sweep is plenty.
const sweepInterval = 1 * time.Second

// Rewarder is the karma/reward collaborator, invoked once per finished
// game. Implementations must not block.
type Rewarder interface {
	DistributeRewards(gameID string, winner player.Team, winnerPlayerIDs []string)
}

// WithRewarder attaches the reward collaborator.
func WithRewarder(r Rewarder) Option {
	return func(e *Engine) { e.rewarder = r }
}

// StartScheduler spawns the sweep loop. The server's wall clock is the
// only authority for phase expiry; client hints never resolve directly.
func (e *Engine) StartScheduler(ctx context.Context) {
	go func() {
		e.logger.Info("Phase scheduler started.")
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				e.logger.Info("Phase scheduler stopped.")
				return
			case <-ticker.C:
				e.Sweep()
			}
		}
	}()
}

// Sweep visits every active game once and resolves any phase that has
// expired or gone early-complete. Exported for the scenario harness.
func (e *Engine) Sweep() {
	e.mu.RLock()
	states := make([]*gameState, 0, len(e.games))
	for _, gs := range e.games {
		states = append(states, gs)
	}
	e.mu.RUnlock()

	now := e.now()
	for _, gs := range states {
		gs.mu.Lock()
		if !gs.cancelled && gs.resolvableLocked(now) {
			e.resolvePhaseLocked(gs)
		}
		gs.mu.Unlock()
	}
}

func (gs *gameState) resolvableLocked(now time.Time) bool {
	if gs.game.Status != StatusDay && gs.game.Status != StatusNight {
		return false
	}
	return gs.allSubmitted || !now.Before(gs.game.PhaseEndsAt)
}

// PhaseExpiredHint is the client-side "phase expired" signal. It is only
// a hint: the engine re-derives authority from its own clock and the
// stored deadline. Duplicate hints are harmless; the idempotency guard
// in resolvePhaseLocked keeps resolution single-shot regardless.
func (e *Engine) PhaseExpiredHint(gameID string, round int, phase string) error {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if string(gs.game.Status) != phase || gs.game.CurrentRound != round {
		return ErrStateConflict // stale hint for an already-resolved phase
	}
	if e.now().Before(gs.game.PhaseEndsAt) {
		return ErrValidation // clock skew on the client; deadline not reached
	}
	// Acknowledged. The sweep loop resolves within one interval.
	return nil
}

// resolvePhaseLocked runs exactly one resolution per (game, round, phase)
// even under concurrent triggers. Caller holds gs.mu.
func (e *Engine) resolvePhaseLocked(gs *gameState) {
	key := phaseKey(gs.game.CurrentRound, gs.game.Status)
	if gs.resolved[key] {
		// A second trigger slipped in behind the first; the guard makes
		// it a logged no-op instead of a double-apply.
		metrics.Get().RecordDuplicateResolution()
		e.logger.Warn("Duplicate resolution attempt blocked: " + gs.game.ID + " " + key)
		return
	}
	gs.resolved[key] = true

	started := time.Now()
	now := e.now()
	phase := gs.game.Status

	var resolutionEvents []events.GameEvent
	var eliminated []string

	switch phase {
	case StatusNight:
		out := resolveNight(gs, now)
		resolutionEvents = out.events
		eliminated = out.eliminated
		for oracleID, inv := range out.investigations {
			gs.investigations[oracleID] = append(gs.investigations[oracleID], inv)
		}
	case StatusDay:
		out := resolveDay(gs, now)
		resolutionEvents = out.events
		eliminated = out.eliminated
	}

	for _, id := range eliminated {
		if p := gs.players[id]; p != nil && p.IsAlive {
			p.Eliminate(gs.game.CurrentRound)
			e.persistPlayer(p)
		}
	}
	for _, ev := range resolutionEvents {
		e.eventLog.Append(ev)
	}

	if winner, done := evaluateWin(gs); done {
		e.finishGameLocked(gs, winner, now)
	} else {
		e.advancePhaseLocked(gs, now)
	}

	metrics.Get().RecordResolution(time.Since(started))
	e.notify(gs.game.ID, RefreshPhaseChange)
	e.notify(gs.game.ID, RefreshGame)
	e.notify(gs.game.ID, RefreshPlayers)
	e.notify(gs.game.ID, RefreshEvents)
	e.notify(gs.game.ID, RefreshVotes)
}

// advancePhaseLocked increments the round and opens the opposite phase
// with a fresh deadline.
func (e *Engine) advancePhaseLocked(gs *gameState, now time.Time) {
	gs.game.CurrentRound++
	gs.allSubmitted = false

	if gs.game.Status == StatusNight {
		gs.game.Status = StatusDay
		gs.game.PhaseEndsAt = now.Add(gs.game.Speed.DayDuration)
		e.eventLog.Append(events.GameEvent{
			ID:        events.GenerateEventID(),
			GameID:    gs.game.ID,
			Timestamp: now,
			Type:      events.EventTypeDayStart,
			Round:     gs.game.CurrentRound,
			Phase:     events.PhaseDay,
			Message:   "Day breaks. The town deliberates.",
		})
	} else {
		gs.game.Status = StatusNight
		gs.game.PhaseEndsAt = now.Add(gs.game.Speed.NightDuration)
		e.eventLog.Append(events.GameEvent{
			ID:        events.GenerateEventID(),
			GameID:    gs.game.ID,
			Timestamp: now,
			Type:      events.EventTypeNightStart,
			Round:     gs.game.CurrentRound,
			Phase:     events.PhaseNight,
			Message:   "Night falls again.",
		})
	}

	e.logger.Event("PHASE_ADVANCE", "SCHEDULER",
		gs.game.ID+" round "+strconv.Itoa(gs.game.CurrentRound)+" -> "+string(gs.game.Status))
	e.persistGame(gs.game)
}

// finishGameLocked transitions to finished and triggers the reward
// collaborator.
func (e *Engine) finishGameLocked(gs *gameState, winner player.Team, now time.Time) {
	gs.game.Status = StatusFinished
	gs.game.WinnerTeam = winner
	gs.game.EndedAt = now
	gs.game.PhaseEndsAt = time.Time{}

	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gs.game.ID,
		Timestamp: now,
		Type:      events.EventTypeGameEnd,
		Round:     gs.game.CurrentRound,
		Message:   "The " + string(winner) + " have won.",
	})
	e.logger.Event("GAME_END", "SCHEDULER", gs.game.ID+" winner="+string(winner))
	e.persistGame(gs.game)
	for _, p := range gs.players {
		e.persistPlayer(p)
	}

	if e.rewarder != nil {
		var winnerIDs []string
		for _, id := range gs.joinOrder {
			p := gs.players[id]
			aligned := player.PhantomAligned(p.Role)
			if (winner == player.TeamPhantoms) == aligned {
				winnerIDs = append(winnerIDs, p.ID)
			}
		}
		go e.rewarder.DistributeRewards(gs.game.ID, winner, winnerIDs)
	}
}

// StartBackups spawns the periodic re-upsert loop: every interval the
// full set of registered games is snapshotted to storage, catching any
// write-through lost to a transient storage failure.
func (e *Engine) StartBackups(ctx context.Context, interval time.Duration) {
	if e.store == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		e.logger.Info("Backup loop started.")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				e.logger.Info("Backup loop stopped.")
				return
			case <-ticker.C:
				e.Backup()
			}
		}
	}()
}

// Backup re-upserts every registered game and its roster. Exported so the
// backup loop and tests share one path.
func (e *Engine) Backup() {
	e.mu.RLock()
	states := make([]*gameState, 0, len(e.games))
	for _, gs := range e.games {
		states = append(states, gs)
	}
	e.mu.RUnlock()

	for _, gs := range states {
		gs.mu.Lock()
		e.persistGame(gs.game)
		for _, p := range gs.players {
			e.persistPlayer(p)
		}
		gs.mu.Unlock()
	}
}

func (e *Engine) persistGame(g *Game) {
	snapshot := *g
	e.persist("game snapshot", func(ctx context.Context) error {
		return e.store.UpsertGame(ctx, &snapshot)
	})
}

func (e *Engine) persistPlayer(p *player.Player) {
	snapshot := *p
	e.persist("player snapshot", func(ctx context.Context) error {
		return e.store.UpsertPlayer(ctx, &snapshot)
	})
}

