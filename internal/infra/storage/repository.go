// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern; the engine stays pure
// and writes through the adapter in adapter.go.
package storage

import (
	"context"
	"time"
)

// GameRow mirrors the engine's Game aggregate for persistence.
type GameRow struct {
	ID           string     `json:"id" db:"id"`
	Scope        string     `json:"scope" db:"scope"`
	CreatorID    string     `json:"creator_id" db:"creator_id"`
	Status       string     `json:"status" db:"status"`
	CurrentRound int        `json:"current_round" db:"current_round"`
	GameNumber   int        `json:"game_number" db:"game_number"`
	MaxPlayers   int        `json:"max_players" db:"max_players"`
	Speed        string     `json:"speed" db:"speed"`
	PhaseEndsAt  *time.Time `json:"phase_ends_at" db:"phase_ends_at"`
	WinnerTeam   string     `json:"winner_team" db:"winner_team"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	StartedAt    *time.Time `json:"started_at" db:"started_at"`
	EndedAt      *time.Time `json:"ended_at" db:"ended_at"`
}

// PlayerRow mirrors a participant for persistence.
type PlayerRow struct {
	ID              string    `json:"id" db:"id"`
	GameID          string    `json:"game_id" db:"game_id"`
	ResidentID      string    `json:"resident_id" db:"resident_id"`
	Name            string    `json:"name" db:"name"`
	Role            string    `json:"role" db:"role"`
	Team            string    `json:"team" db:"team"`
	Kind            string    `json:"kind" db:"kind"`
	IsAlive         bool      `json:"is_alive" db:"is_alive"`
	EliminatedRound int       `json:"eliminated_round" db:"eliminated_round"`
	JoinedAt        time.Time `json:"joined_at" db:"joined_at"`
}

// ActionRow mirrors a night action for persistence.
type ActionRow struct {
	GameID      string    `json:"game_id" db:"game_id"`
	Round       int       `json:"round" db:"round"`
	ActorID     string    `json:"actor_id" db:"actor_id"`
	ActionType  string    `json:"action_type" db:"action_type"`
	TargetID    string    `json:"target_id" db:"target_id"`
	Result      string    `json:"result" db:"result"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// VoteRow mirrors a day vote for persistence.
type VoteRow struct {
	GameID      string    `json:"game_id" db:"game_id"`
	Round       int       `json:"round" db:"round"`
	VoterID     string    `json:"voter_id" db:"voter_id"`
	TargetID    string    `json:"target_id" db:"target_id"`
	Reason      string    `json:"reason" db:"reason"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// ChatRow mirrors a phantom-channel message for persistence.
type ChatRow struct {
	ID         string    `json:"id" db:"id"`
	GameID     string    `json:"game_id" db:"game_id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EventRow mirrors an audit event for persistence.
type EventRow struct {
	ID           string    `json:"id" db:"id"`
	GameID       string    `json:"game_id" db:"game_id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	EventType    string    `json:"event_type" db:"event_type"`
	ActorID      string    `json:"actor_id" db:"actor_id"`
	TargetID     string    `json:"target_id" db:"target_id"`
	Round        int       `json:"round" db:"round"`
	Phase        string    `json:"phase" db:"phase"`
	Message      string    `json:"message" db:"message"`
	RevealedRole string    `json:"revealed_role" db:"revealed_role"`
	RevealedType string    `json:"revealed_type" db:"revealed_type"`
}

// GameRepository persists game aggregates and their owned rows.
type GameRepository interface {
	UpsertGame(ctx context.Context, g GameRow) error
	GetGame(ctx context.Context, gameID string) (*GameRow, error)
	DeleteGame(ctx context.Context, gameID string) error

	UpsertPlayer(ctx context.Context, p PlayerRow) error
	DeletePlayer(ctx context.Context, playerID string) error
	GetPlayers(ctx context.Context, gameID string) ([]PlayerRow, error)

	UpsertAction(ctx context.Context, a ActionRow) error
	UpsertVote(ctx context.Context, v VoteRow) error
	SaveChat(ctx context.Context, m ChatRow) error
	GetChat(ctx context.Context, gameID string) ([]ChatRow, error)
}

// EventRepository persists the immutable audit ledger.
type EventRepository interface {
	Append(ctx context.Context, e EventRow) error
	GetByGameID(ctx context.Context, gameID string) ([]EventRow, error)
	GetByRound(ctx context.Context, gameID string, round int) ([]EventRow, error)
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]EventRow, error)
}
