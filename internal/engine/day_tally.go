package engine

import (
	"time"

	"github.com/phantom-night/server/internal/events"
)

// dayOutcome is the pure result of resolving one day vote.
type dayOutcome struct {
	events     []events.GameEvent
	eliminated []string
}

// resolveDay tallies the round's votes and eliminates the plurality
// target. Votes from since-eliminated voters are void. A tie means no
// elimination: the defenders hold.
func resolveDay(gs *gameState, now time.Time) dayOutcome {
	var out dayOutcome
	g := gs.game
	round := g.CurrentRound

	counts := make(map[string]int)
	for voterID, v := range gs.roundVotes(round) {
		voter := gs.players[voterID]
		if voter == nil || !voter.IsAlive {
			continue
		}
		target := gs.players[v.TargetID]
		if target == nil || !target.IsAlive {
			continue
		}
		counts[v.TargetID]++
	}

	leaderID := ""
	leaderVotes := 0
	tie := false
	// Join order keeps the scan deterministic; the tie flag makes the
	// order irrelevant to the outcome.
	for _, id := range gs.joinOrder {
		n, ok := counts[id]
		if !ok {
			continue
		}
		if n > leaderVotes {
			leaderID, leaderVotes, tie = id, n, false
		} else if n == leaderVotes {
			tie = true
		}
	}

	if leaderID == "" || tie {
		out.events = append(out.events, events.GameEvent{
			ID:        events.GenerateEventID(),
			GameID:    g.ID,
			Timestamp: now,
			Type:      events.EventTypeNoElimination,
			Round:     round,
			Phase:     events.PhaseDay,
			Message:   "The town could not agree. Nobody was cast out.",
		})
		return out
	}

	victim := gs.players[leaderID]
	out.eliminated = append(out.eliminated, victim.ID)
	out.events = append(out.events, events.GameEvent{
		ID:           events.GenerateEventID(),
		GameID:       g.ID,
		Timestamp:    now,
		Type:         events.EventTypeVoteElimination,
		TargetID:     victim.ID,
		Round:        round,
		Phase:        events.PhaseDay,
		Message:      victim.Name + " was voted out.",
		RevealedRole: string(victim.Role),
		RevealedType: string(victim.Kind),
	})
	return out
}
