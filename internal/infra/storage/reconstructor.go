// Package storage - reconstructor.go
// Rebuilds game outcome views from the event ledger: state = f(events).
package storage

import (
	"context"
	"fmt"
)

// Reconstructor rebuilds game state from the event ledger.
// This is used for:
// 1. The post-game recap screen shown after a game finishes
// 2. Rebuilding a player's fate after a reconnect
// 3. Auditing and debugging resolved rounds
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuiltPlayer holds a player's fate as derived from the ledger.
type RebuiltPlayer struct {
	PlayerID        string `json:"player_id"`
	IsAlive         bool   `json:"is_alive"`
	EliminatedRound int    `json:"eliminated_round"`
	EliminatedBy    string `json:"eliminated_by"` // event type that removed them
	RevealedRole    string `json:"revealed_role"`
}

// RecapEvent is a simplified event for the post-game recap screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	Round     int    `json:"round"`
	Phase     string `json:"phase"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
	Impact    string `json:"impact"` // "POSITIVE", "NEGATIVE", "NEUTRAL" from the citizens' view
}

// eliminationEvents are the ledger entries that remove a player.
var eliminationEvents = map[string]bool{
	"phantom_kill":        true,
	"vote_elimination":    true,
	"identifier_kill":     true,
	"identifier_backfire": true,
}

// RebuildPlayerFate reconstructs a player's elimination status from events.
func (r *Reconstructor) RebuildPlayerFate(ctx context.Context, gameID, playerID string) (*RebuiltPlayer, error) {
	allEvents, err := r.eventRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game events: %w", err)
	}

	state := RebuiltPlayer{PlayerID: playerID, IsAlive: true}

	for _, e := range allEvents {
		victim := e.TargetID
		if e.EventType == "identifier_backfire" {
			victim = e.ActorID
		}
		if victim != playerID || !eliminationEvents[e.EventType] {
			continue
		}
		state.IsAlive = false
		state.EliminatedRound = e.Round
		state.EliminatedBy = e.EventType
		state.RevealedRole = e.RevealedRole
	}

	return &state, nil
}

// GenerateRecap builds the public timeline for a game from a round onwards.
// Role reveals appear exactly as the ledger recorded them, so the recap
// never leaks information the game itself did not.
func (r *Reconstructor) GenerateRecap(ctx context.Context, gameID string, sinceRound int) ([]RecapEvent, error) {
	allEvents, err := r.eventRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	var recap []RecapEvent
	for _, e := range allEvents {
		if e.Round < sinceRound {
			continue
		}
		recap = append(recap, RecapEvent{
			Timestamp: e.Timestamp.Format("15:04:05"),
			Round:     e.Round,
			Phase:     e.Phase,
			EventType: e.EventType,
			Summary:   r.summarizeEvent(e),
			Impact:    r.determineImpact(e),
		})
	}

	return recap, nil
}

func (r *Reconstructor) summarizeEvent(e EventRow) string {
	switch e.EventType {
	case "game_start":
		return "The game began. Roles were dealt in secret."
	case "night_start":
		return "Night fell over the village."
	case "day_start":
		return "Dawn broke. The village gathers to deliberate."
	case "phantom_kill":
		return "A body was found at dawn."
	case "protected":
		return "The guardian's ward held through the night."
	case "no_kill":
		return "The night passed without bloodshed."
	case "vote_elimination":
		return "The village voted to cast someone out."
	case "no_elimination":
		return "The vote split. Nobody was cast out."
	case "identifier_kill":
		return "An identification struck true."
	case "identifier_backfire":
		return "An identification backfired."
	case "game_end":
		return "The game is over."
	case "game_cancelled":
		return "The game was cancelled."
	default:
		return e.Message
	}
}

func (r *Reconstructor) determineImpact(e EventRow) string {
	switch e.EventType {
	case "phantom_kill", "identifier_backfire":
		return "NEGATIVE"
	case "protected", "no_kill", "vote_elimination", "identifier_kill":
		return "POSITIVE"
	default:
		return "NEUTRAL"
	}
}
