// Package player defines the core domain entities for game participants.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

import "time"

// Role represents the hidden role dealt to a participant at game start.
type Role string

const (
	RolePhantom  Role = "phantom"  // Night killer, wins at parity
	RoleCitizen  Role = "citizen"  // No special action
	RoleOracle   Role = "oracle"   // Learns one target's alignment per night
	RoleGuardian Role = "guardian" // Shields one target from the night attack
	RoleFanatic  Role = "fanatic"  // Citizen-facing, phantom-aligned for win/oracle purposes
	RoleDebugger Role = "debugger" // Guesses human vs agent; backfires on a same-kind guess
)

// Team is the chat/teammate grouping of a player.
type Team string

const (
	TeamCitizens Team = "citizens"
	TeamPhantoms Team = "phantoms"
)

// Kind distinguishes human participants from AI-controlled ones.
type Kind string

const (
	KindHuman Kind = "human"
	KindAgent Kind = "agent"
)

// TeamForRole returns the team a role belongs to. The fanatic sits on the
// citizens team: it does not share phantom chat or know the phantoms.
func TeamForRole(r Role) Team {
	if r == RolePhantom {
		return TeamPhantoms
	}
	return TeamCitizens
}

// PhantomAligned reports whether a role counts toward the phantom side for
// win-condition and oracle-reveal purposes. The fanatic is the only role
// whose alignment differs from its team.
func PhantomAligned(r Role) bool {
	return r == RolePhantom || r == RoleFanatic
}

// Player represents one participant in a game. Role and Team are fixed at
// assignment time and never mutate afterwards.
type Player struct {
	ID              string    `json:"id" db:"id"`
	GameID          string    `json:"game_id" db:"game_id"`
	ResidentID      string    `json:"resident_id" db:"resident_id"` // external identity reference
	Name            string    `json:"name" db:"name"`
	Role            Role      `json:"-" db:"role"`
	Team            Team      `json:"-" db:"team"`
	Kind            Kind      `json:"kind" db:"kind"`
	IsAlive         bool      `json:"is_alive" db:"is_alive"`
	EliminatedRound int       `json:"eliminated_round,omitempty" db:"eliminated_round"` // 0 while alive
	JoinedAt        time.Time `json:"joined_at" db:"joined_at"`
}

// NewPlayer creates a living, unassigned participant.
func NewPlayer(id, gameID, residentID, name string, kind Kind) *Player {
	return &Player{
		ID:         id,
		GameID:     gameID,
		ResidentID: residentID,
		Name:       name,
		Kind:       kind,
		IsAlive:    true,
		JoinedAt:   time.Now(),
	}
}

// Assign fixes the role/team pair. Must be called exactly once, before the
// first phase starts.
func (p *Player) Assign(r Role) {
	p.Role = r
	p.Team = TeamForRole(r)
}

// Eliminate marks the player dead in the given round.
func (p *Player) Eliminate(round int) {
	p.IsAlive = false
	p.EliminatedRound = round
}

// Revealed reports whether the player's role may be shown to everyone:
// only after elimination (or game end, which the caller checks).
func (p *Player) Revealed() bool {
	return !p.IsAlive
}
