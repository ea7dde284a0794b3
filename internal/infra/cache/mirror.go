// Package cache - mirror.go
// Keeps the snapshot cache current from the engine's notify path.
package cache

import (
	"context"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/platform/logger"
)

// GameSource is the slice of the engine the mirror reads snapshots from.
type GameSource interface {
	GameByID(gameID string) (*engine.GameView, error)
}

// RefreshMirror decorates the engine's notifier: every state-bearing
// refresh hint also re-publishes the game's public snapshot, so other
// server instances and dashboards can read it without touching the
// engine. Team-scoped hints carry no public state and pass through.
type RefreshMirror struct {
	next   engine.Notifier
	cache  *SnapshotCache
	source GameSource
	logger *logger.Logger
}

// NewRefreshMirror wraps the real notifier. The engine is attached later
// because it takes the mirror as its notifier at construction.
func NewRefreshMirror(next engine.Notifier, c *SnapshotCache, log *logger.Logger) *RefreshMirror {
	return &RefreshMirror{next: next, cache: c, logger: log}
}

// AttachSource wires the engine in after construction. Must be called
// before the first game starts.
func (m *RefreshMirror) AttachSource(src GameSource) {
	m.source = src
}

// Refresh implements engine.Notifier.
func (m *RefreshMirror) Refresh(gameID, scope string) {
	m.next.Refresh(gameID, scope)
	switch scope {
	case engine.RefreshGame, engine.RefreshPlayers, engine.RefreshPhaseChange:
		go m.publish(gameID)
	}
}

// RefreshTeam implements engine.Notifier.
func (m *RefreshMirror) RefreshTeam(gameID string, team player.Team, scope string) {
	m.next.RefreshTeam(gameID, team, scope)
}

func (m *RefreshMirror) publish(gameID string) {
	if m.source == nil {
		return
	}
	view, err := m.source.GameByID(gameID)
	if err != nil {
		return // cancelled games age out via the cache expiration
	}

	snap := GameSnapshot{
		GameID:      view.ID,
		Scope:       view.Scope,
		Status:      string(view.Status),
		Round:       view.CurrentRound,
		PlayerCount: view.PlayerCount,
		HumanCount:  view.HumanCount,
		AgentCount:  view.AgentCount,
		LastSync:    time.Now().Unix(),
	}
	if !view.PhaseEndsAt.IsZero() {
		snap.PhaseEndsAt = view.PhaseEndsAt.Unix()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.cache.SetGameSnapshot(ctx, snap); err != nil {
		m.logger.Warn("snapshot publish failed: " + err.Error())
	}
}
