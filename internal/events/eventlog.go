// Package events provides the append-only audit log for the game engine.
// Every resolution outcome lands here; clients read it back as the timeline.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeGameStart          EventType = "game_start"
	EventTypeDayStart           EventType = "day_start"
	EventTypeNightStart         EventType = "night_start"
	EventTypePhantomKill        EventType = "phantom_kill"
	EventTypeProtected          EventType = "protected"
	EventTypeNoKill             EventType = "no_kill"
	EventTypeVoteElimination    EventType = "vote_elimination"
	EventTypeNoElimination      EventType = "no_elimination"
	EventTypeIdentifierKill     EventType = "identifier_kill"
	EventTypeIdentifierBackfire EventType = "identifier_backfire"
	EventTypeGameEnd            EventType = "game_end"
	EventTypePlayerJoined       EventType = "player_joined"
	EventTypePlayerLeft         EventType = "player_left"
	EventTypeGameCancelled      EventType = "game_cancelled"
)

// Phase names recorded on events.
const (
	PhaseDay   = "day"
	PhaseNight = "night"
)

// GameEvent is an immutable audit record. Never mutated after Append.
type GameEvent struct {
	ID           string    `json:"id"`
	GameID       string    `json:"game_id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         EventType `json:"type"`
	ActorID      string    `json:"actor_id,omitempty"`  // who performed the action
	TargetID     string    `json:"target_id,omitempty"` // who was affected
	Round        int       `json:"round"`
	Phase        string    `json:"phase,omitempty"`
	Message      string    `json:"message"`
	RevealedRole string    `json:"revealed_role,omitempty"` // populated post-elimination only
	RevealedType string    `json:"revealed_type,omitempty"` // human|agent, same rule
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of game events, optionally
// written through to persistent storage.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.events = append(el.events, event)

	if el.persister != nil {
		// Write through to persistent storage off the hot path.
		go func(e GameEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// GetByGame returns all events for a game in append order.
func (el *EventLog) GetByGame(gameID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameID == gameID {
			result = append(result, e)
		}
	}
	return result
}

// GetByRound returns a game's events for one round.
func (el *EventLog) GetByRound(gameID string, round int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameID == gameID && e.Round == round {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns the full history of events across all games.
// Pollers (hub fan-out, agent pool) slice from their last seen index.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
