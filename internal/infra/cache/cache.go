// Package cache provides Redis-based caching for quick lobby and game
// snapshot reads (not the source of truth).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values ...interface{}) error
}

// GameSnapshot is the cached public view of a game, enough for a lobby
// list or a reconnecting client to render without hitting the engine.
type GameSnapshot struct {
	GameID      string `json:"game_id"`
	Scope       string `json:"scope"`
	Status      string `json:"status"`
	Round       int    `json:"round"`
	PhaseEndsAt int64  `json:"phase_ends_at"` // Unix timestamp, 0 when none
	PlayerCount int    `json:"player_count"`
	HumanCount  int    `json:"human_count"`
	AgentCount  int    `json:"agent_count"`
	LastSync    int64  `json:"last_sync"`
}

// SnapshotCache provides fast access to game state snapshots.
type SnapshotCache struct {
	client     RedisClient
	expiration time.Duration
}

// NewSnapshotCache creates a new snapshot cache instance.
func NewSnapshotCache(client RedisClient) *SnapshotCache {
	return &SnapshotCache{
		client:     client,
		expiration: 5 * time.Minute,
	}
}

// SetGameSnapshot caches the public view of one game.
func (c *SnapshotCache) SetGameSnapshot(ctx context.Context, snap GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal game snapshot: %w", err)
	}
	return c.client.Set(ctx, c.gameKey(snap.GameID), data, c.expiration)
}

// GetGameSnapshot retrieves the cached view of a game.
func (c *SnapshotCache) GetGameSnapshot(ctx context.Context, gameID string) (*GameSnapshot, error) {
	data, err := c.client.Get(ctx, c.gameKey(gameID))
	if err != nil {
		return nil, err // cache miss or error
	}

	var snap GameSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game snapshot: %w", err)
	}
	return &snap, nil
}

// SetScopeLobbies caches the open-lobby listing for a scope.
// Uses a Redis hash keyed by game ID.
func (c *SnapshotCache) SetScopeLobbies(ctx context.Context, scope string, snaps map[string]GameSnapshot) error {
	values := make([]interface{}, 0, len(snaps)*2)
	for id, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot for %s: %w", id, err)
		}
		values = append(values, id, string(data))
	}
	return c.client.HSet(ctx, c.scopeKey(scope), values...)
}

// GetScopeLobbies retrieves the cached open-lobby listing for a scope.
func (c *SnapshotCache) GetScopeLobbies(ctx context.Context, scope string) (map[string]GameSnapshot, error) {
	data, err := c.client.HGetAll(ctx, c.scopeKey(scope))
	if err != nil {
		return nil, err
	}

	snaps := make(map[string]GameSnapshot)
	for id, jsonStr := range data {
		var snap GameSnapshot
		if err := json.Unmarshal([]byte(jsonStr), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", id, err)
		}
		snaps[id] = snap
	}
	return snaps, nil
}

// Invalidate removes cached state for a game and its scope listing.
func (c *SnapshotCache) Invalidate(ctx context.Context, gameID, scope string) error {
	return c.client.Del(ctx, c.gameKey(gameID), c.scopeKey(scope))
}

func (c *SnapshotCache) gameKey(gameID string) string {
	return fmt.Sprintf("game:%s:snapshot", gameID)
}

func (c *SnapshotCache) scopeKey(scope string) string {
	return fmt.Sprintf("scope:%s:lobbies", scope)
}
