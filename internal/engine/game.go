package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/domain/rules"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusDay       Status = "day"
	StatusNight     Status = "night"
	StatusFinished  Status = "finished"
)

// ActionType tags a night action submission.
type ActionType string

const (
	ActionAttack      ActionType = "attack"
	ActionInvestigate ActionType = "investigate"
	ActionProtect     ActionType = "protect"
	ActionIdentify    ActionType = "identify"
)

// Investigation results returned to the oracle.
const (
	ResultPhantom    = "phantom"
	ResultNotPhantom = "not_phantom"
)

// Game is the aggregate root. All mutation happens under the owning
// gameState's mutex.
type Game struct {
	ID           string            `json:"id" db:"id"`
	Scope        string            `json:"scope" db:"scope"`
	CreatorID    string            `json:"creator_id" db:"creator_id"` // resident reference
	Status       Status            `json:"status" db:"status"`
	CurrentRound int               `json:"current_round" db:"current_round"`
	GameNumber   int               `json:"game_number" db:"game_number"`
	MaxPlayers   int               `json:"max_players" db:"max_players"`
	Speed        rules.SpeedPreset `json:"speed" db:"-"`
	PhaseEndsAt  time.Time         `json:"phase_ends_at,omitempty" db:"phase_ends_at"` // zero unless day/night
	WinnerTeam   player.Team       `json:"winner_team,omitempty" db:"winner_team"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	StartedAt    time.Time         `json:"started_at,omitempty" db:"started_at"`
	EndedAt      time.Time         `json:"ended_at,omitempty" db:"ended_at"`
}

// RoleCounts is the public role breakdown shown in the lobby and results.
type RoleCounts struct {
	Phantoms  int `json:"phantoms"`
	Citizens  int `json:"citizens"`
	Oracles   int `json:"oracles"`
	Guardians int `json:"guardians"`
	Debuggers int `json:"debuggers"`
}

// NightAction is one pending or resolved night submission.
// At most one effective action exists per (actor, round); resubmission
// before phase expiry overwrites, never after.
type NightAction struct {
	Round       int        `json:"round" db:"round"`
	ActorID     string     `json:"actor_id" db:"actor_id"`
	Type        ActionType `json:"type" db:"action_type"`
	TargetID    string     `json:"target_id" db:"target_id"`
	Result      string     `json:"result,omitempty" db:"result"` // filled at resolution
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`

	seq int // engine-wide submission order, breaks SubmittedAt ties
}

// DayVote is one vote in a day round. One per (voter, round); void once
// the voter is eliminated.
type DayVote struct {
	Round       int       `json:"round" db:"round"`
	VoterID     string    `json:"voter_id" db:"voter_id"`
	TargetID    string    `json:"target_id" db:"target_id"`
	Reason      string    `json:"reason,omitempty" db:"reason"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// ChatMessage is a phantom-channel message.
type ChatMessage struct {
	ID         string    `json:"id" db:"id"`
	GameID     string    `json:"game_id" db:"game_id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Investigation is a private oracle result, visible only to its owner.
type Investigation struct {
	Round      int    `json:"round"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Result     string `json:"result"`
}

// gameState is one game's full mutable state plus its lock. The lock
// serializes submissions, chat, cancellation and phase resolution for
// this game; reads copy out under the same lock.
type gameState struct {
	mu sync.Mutex

	game       *Game
	players    map[string]*player.Player // by player id
	byResident map[string]string         // resident id -> player id
	joinOrder  []string

	actions        map[int]map[string]*NightAction // round -> actor id
	votes          map[int]map[string]*DayVote     // round -> voter id
	chat           []ChatMessage
	investigations map[string][]Investigation // oracle player id -> results

	// resolved guards phase resolution: exactly one resolution per
	// (round, phase) even under concurrent expiry triggers.
	resolved map[string]bool

	// allSubmitted flags early resolution; reset at each phase start.
	allSubmitted bool

	// cancelled tells a sweep holding a stale pointer to back off.
	cancelled bool

	seq int
}

func newGameState(g *Game) *gameState {
	return &gameState{
		game:           g,
		players:        make(map[string]*player.Player),
		byResident:     make(map[string]string),
		actions:        make(map[int]map[string]*NightAction),
		votes:          make(map[int]map[string]*DayVote),
		investigations: make(map[string][]Investigation),
		resolved:       make(map[string]bool),
	}
}

func phaseKey(round int, status Status) string {
	return fmt.Sprintf("%d:%s", round, status)
}

// playerOf resolves a resident to their player in this game.
func (gs *gameState) playerOf(residentID string) *player.Player {
	id, ok := gs.byResident[residentID]
	if !ok {
		return nil
	}
	return gs.players[id]
}

// addPlayer registers a participant in join order.
func (gs *gameState) addPlayer(p *player.Player) {
	gs.players[p.ID] = p
	gs.byResident[p.ResidentID] = p.ID
	gs.joinOrder = append(gs.joinOrder, p.ID)
}

// removePlayer drops a participant (lobby phase only).
func (gs *gameState) removePlayer(p *player.Player) {
	delete(gs.players, p.ID)
	delete(gs.byResident, p.ResidentID)
	for i, id := range gs.joinOrder {
		if id == p.ID {
			gs.joinOrder = append(gs.joinOrder[:i], gs.joinOrder[i+1:]...)
			break
		}
	}
}

// orderedPlayers returns players in join order.
func (gs *gameState) orderedPlayers() []*player.Player {
	out := make([]*player.Player, 0, len(gs.joinOrder))
	for _, id := range gs.joinOrder {
		if p, ok := gs.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// livingByRole returns the living holders of a role.
func (gs *gameState) livingByRole(r player.Role) []*player.Player {
	var out []*player.Player
	for _, id := range gs.joinOrder {
		p := gs.players[id]
		if p != nil && p.IsAlive && p.Role == r {
			out = append(out, p)
		}
	}
	return out
}

// countKind counts participants of a kind.
func (gs *gameState) countKind(k player.Kind) int {
	n := 0
	for _, p := range gs.players {
		if p.Kind == k {
			n++
		}
	}
	return n
}

// roundActions returns the action map for a round, creating it on demand.
func (gs *gameState) roundActions(round int) map[string]*NightAction {
	m, ok := gs.actions[round]
	if !ok {
		m = make(map[string]*NightAction)
		gs.actions[round] = m
	}
	return m
}

// roundVotes returns the vote map for a round, creating it on demand.
func (gs *gameState) roundVotes(round int) map[string]*DayVote {
	m, ok := gs.votes[round]
	if !ok {
		m = make(map[string]*DayVote)
		gs.votes[round] = m
	}
	return m
}

// nightEligible lists the living actors with a night action this round.
func (gs *gameState) nightEligible() []*player.Player {
	var out []*player.Player
	for _, id := range gs.joinOrder {
		p := gs.players[id]
		if p == nil || !p.IsAlive {
			continue
		}
		switch p.Role {
		case player.RolePhantom, player.RoleOracle, player.RoleGuardian, player.RoleDebugger:
			out = append(out, p)
		}
	}
	return out
}

// livingPlayers lists everyone still alive.
func (gs *gameState) livingPlayers() []*player.Player {
	var out []*player.Player
	for _, id := range gs.joinOrder {
		p := gs.players[id]
		if p != nil && p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

// roleCounts builds the public breakdown from assigned roles.
// The fanatic deliberately shows up in the citizen column.
func (gs *gameState) roleCounts() RoleCounts {
	var rc RoleCounts
	for _, p := range gs.players {
		switch p.Role {
		case player.RolePhantom:
			rc.Phantoms++
		case player.RoleOracle:
			rc.Oracles++
		case player.RoleGuardian:
			rc.Guardians++
		case player.RoleDebugger:
			rc.Debuggers++
		default:
			rc.Citizens++
		}
	}
	return rc
}
