// Package agents runs the AI participants. Each seat gets an AgentMind
// executing the Perception-Cognition-Action loop against the engine's
// public API, and a Pool watches the event log to spawn and retire minds
// as games start and end.
package agents

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/phantom-night/server/internal/agents/action"
	"github.com/phantom-night/server/internal/agents/cognition"
	"github.com/phantom-night/server/internal/agents/perception"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/platform/logger"
)

// AgentMind drives one AI seat. It acts at most once per phase, after a
// jittered delay so a table of agents does not move in lockstep.
type AgentMind struct {
	eng       *engine.Engine
	perceiver *perception.Perceiver
	cognitor  *cognition.Cognitor
	executor  *action.Executor
	logger    *logger.Logger
	rng       *rand.Rand

	gameID string
	seat   engine.AgentSeat

	tick     time.Duration
	actedKey string // "round:phase" already moved in
	actAt    time.Time
	chatted  bool // one phantom chat message per phase
}

// NewAgentMind wires one mind to its seat.
func NewAgentMind(eng *engine.Engine, p *perception.Perceiver, c *cognition.Cognitor, x *action.Executor, rng *rand.Rand, log *logger.Logger, gameID string, seat engine.AgentSeat) *AgentMind {
	return &AgentMind{
		eng:       eng,
		perceiver: p,
		cognitor:  c,
		executor:  x,
		logger:    log,
		rng:       rng,
		gameID:    gameID,
		seat:      seat,
		tick:      2 * time.Second,
	}
}

// Run loops until the context is cancelled or the game disappears.
func (m *AgentMind) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := m.step(ctx); done {
				return
			}
		}
	}
}

// step runs one observation cycle. Returns true when the mind should
// retire.
func (m *AgentMind) step(ctx context.Context) bool {
	game, err := m.eng.GameByID(m.gameID)
	if err != nil {
		return errors.Is(err, engine.ErrNotFound) // cancelled game: stand down
	}
	if game.Status == engine.StatusFinished {
		return true
	}
	if game.Status != engine.StatusDay && game.Status != engine.StatusNight {
		return false
	}

	key := phaseKey(game.CurrentRound, string(game.Status))
	if key != m.actedKey && m.actAt.IsZero() {
		// New phase: schedule a move somewhere in its first stretch.
		window := time.Until(game.PhaseEndsAt) / 3
		if window > 20*time.Second {
			window = 20 * time.Second
		}
		if window < time.Second {
			window = time.Second
		}
		m.actAt = time.Now().Add(time.Second + time.Duration(m.rng.Int63n(int64(window))))
		m.chatted = false
		return false
	}
	if key == m.actedKey || time.Now().Before(m.actAt) {
		return false
	}

	digest, err := m.perceiver.BuildDigest(m.gameID, m.seat.ResidentID, m.seat.PlayerID, m.seat.Name)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return true
		}
		m.logger.Warn("agent " + m.seat.Name + " perception: " + err.Error())
		return false
	}

	decision, err := m.cognitor.Decide(ctx, digest)
	if err != nil {
		m.logger.Warn("agent " + m.seat.Name + " cognition: " + err.Error())
		return false
	}

	if decision.Kind == cognition.KindChat && m.chatted {
		decision = &cognition.Decision{Kind: cognition.KindPass, Reason: "already chatted", Source: decision.Source}
	}

	if err := m.executor.Execute(m.gameID, m.seat.ResidentID, decision); err != nil {
		// Phase turned over mid-decision; re-observe next tick.
		m.actAt = time.Time{}
		return false
	}

	// Chat does not consume the agent's move for the phase.
	if decision.Kind == cognition.KindChat {
		m.chatted = true
		return false
	}
	m.actedKey = key
	m.actAt = time.Time{}
	return false
}

func phaseKey(round int, phase string) string {
	return strconv.Itoa(round) + ":" + phase
}
