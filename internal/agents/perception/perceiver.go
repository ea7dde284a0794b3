// Package perception provides the "eyes" of an agent player.
//
// It reads the engine's redacted views plus the agent's private role
// knowledge and condenses them into a digest the cognition module can
// reason over. Agents see exactly what a human client would see, nothing
// more.
package perception

import (
	"fmt"
	"strings"

	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/platform/logger"
)

// Digest is everything an agent knows at one moment.
type Digest struct {
	GameID       string
	Round        int
	Phase        string // "day" or "night"
	You          *engine.RoleView
	YourPlayerID string
	YourName     string
	Roster       []engine.PlayerView
	Tally        *engine.TallyView
	PhantomChat  []engine.ChatMessage
	RecentEvents []string
	Summary      string // LLM-ready narrative
}

// LivingOthers returns every living roster entry except the agent itself.
func (d *Digest) LivingOthers() []engine.PlayerView {
	var out []engine.PlayerView
	for _, p := range d.Roster {
		if p.IsAlive && p.ID != d.YourPlayerID {
			out = append(out, p)
		}
	}
	return out
}

// IsTeammateName reports whether a name belongs to a known phantom
// teammate. Phantoms use this to avoid friendly fire.
func (d *Digest) IsTeammateName(name string) bool {
	for _, mate := range d.You.Teammates {
		if mate == name {
			return true
		}
	}
	return false
}

// Perceiver builds digests from the engine's public and private views.
type Perceiver struct {
	eng    *engine.Engine
	logger *logger.Logger
}

// NewPerceiver creates a new perception module.
func NewPerceiver(eng *engine.Engine, log *logger.Logger) *Perceiver {
	return &Perceiver{eng: eng, logger: log}
}

// BuildDigest assembles the agent's current knowledge.
func (p *Perceiver) BuildDigest(gameID, residentID, playerID, name string) (*Digest, error) {
	game, err := p.eng.GameByID(gameID)
	if err != nil {
		return nil, err
	}
	role, err := p.eng.MyRole(gameID, residentID)
	if err != nil {
		return nil, err
	}
	roster, err := p.eng.Players(gameID)
	if err != nil {
		return nil, err
	}

	d := &Digest{
		GameID:       gameID,
		Round:        game.CurrentRound,
		Phase:        string(game.Status),
		You:          role,
		YourPlayerID: playerID,
		YourName:     name,
		Roster:       roster,
	}

	if game.Status == engine.StatusDay {
		if tally, err := p.eng.VoteTally(gameID); err == nil {
			d.Tally = tally
		}
	}
	if chat, err := p.eng.PhantomChat(gameID, residentID); err == nil {
		d.PhantomChat = chat
	}

	timeline, err := p.eng.Events(gameID)
	if err != nil {
		return nil, err
	}
	start := 0
	if len(timeline) > 12 {
		start = len(timeline) - 12
	}
	for _, e := range timeline[start:] {
		d.RecentEvents = append(d.RecentEvents,
			fmt.Sprintf("[round %d] %s: %s", e.Round, e.Type, e.Message))
	}

	d.Summary = p.buildSummary(d)
	return d, nil
}

// buildSummary creates the LLM-ready context string.
func (p *Perceiver) buildSummary(d *Digest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are %s. Round %d, %s phase.\n", d.YourName, d.Round, d.Phase))
	sb.WriteString(fmt.Sprintf("Your role: %s (%s team). Alive: %v.\n", d.You.Role, d.You.Team, d.You.IsAlive))

	if len(d.You.Teammates) > 0 {
		sb.WriteString("Your phantom teammates: " + strings.Join(d.You.Teammates, ", ") + "\n")
	}
	for _, inv := range d.You.InvestigationResults {
		sb.WriteString(fmt.Sprintf("Investigation round %d: %s reads %s.\n",
			inv.Round, inv.TargetName, inv.Result))
	}

	sb.WriteString("\nRoster:\n")
	for _, pl := range d.Roster {
		status := "alive"
		if !pl.IsAlive {
			status = fmt.Sprintf("eliminated round %d", pl.EliminatedRound)
			if pl.RevealedRole != "" {
				status += ", was " + pl.RevealedRole
			}
		}
		sb.WriteString(fmt.Sprintf("- %s (id %s): %s\n", pl.Name, pl.ID, status))
	}

	if d.Tally != nil && d.Tally.TotalVoted > 0 {
		sb.WriteString(fmt.Sprintf("\nVotes so far (%d of %d alive):\n", d.Tally.TotalVoted, d.Tally.TotalAlive))
		for _, entry := range d.Tally.Tally {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", entry.TargetName, entry.Votes))
		}
	}

	if len(d.PhantomChat) > 0 {
		sb.WriteString("\nPhantom channel (last messages):\n")
		start := 0
		if len(d.PhantomChat) > 6 {
			start = len(d.PhantomChat) - 6
		}
		for _, m := range d.PhantomChat[start:] {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", m.SenderName, m.Message))
		}
	}

	return sb.String()
}
