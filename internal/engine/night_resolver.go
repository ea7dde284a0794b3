package engine

import (
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/events"
)

// nightOutcome is the pure result of resolving one night: events to
// append, eliminations to apply, oracle results to record.
type nightOutcome struct {
	events         []events.GameEvent
	eliminated     []string                 // player ids, in resolution order
	investigations map[string]Investigation // oracle id -> result
	protectedID    string
}

// resolveNight computes the night outcome from the round's submitted
// actions as of expiry. A missing action for an eligible role simply
// produces no effect. Resolution order:
//
//  1. guardian protect
//  2. phantom attack (team target = last submission before lock-in)
//  3. oracle investigate
//  4. debugger identify
//
// An actor eliminated in an earlier step no longer acts; a target
// eliminated in an earlier step no longer suffers later effects.
func resolveNight(gs *gameState, now time.Time) nightOutcome {
	out := nightOutcome{investigations: make(map[string]Investigation)}
	g := gs.game
	round := g.CurrentRound
	acts := gs.roundActions(round)

	alive := func(id string) bool {
		p := gs.players[id]
		if p == nil {
			return false
		}
		for _, dead := range out.eliminated {
			if dead == id {
				return false
			}
		}
		return p.IsAlive
	}

	appendEvent := func(typ events.EventType, actorID, targetID, msg string, reveal *player.Player) {
		ev := events.GameEvent{
			ID:        events.GenerateEventID(),
			GameID:    g.ID,
			Timestamp: now,
			Type:      typ,
			ActorID:   actorID,
			TargetID:  targetID,
			Round:     round,
			Phase:     events.PhaseNight,
			Message:   msg,
		}
		if reveal != nil {
			ev.RevealedRole = string(reveal.Role)
			ev.RevealedType = string(reveal.Kind)
		}
		out.events = append(out.events, ev)
	}

	// 1. Guardian shield, recorded before the attack lands.
	for _, guardian := range gs.livingByRole(player.RoleGuardian) {
		if a, ok := acts[guardian.ID]; ok && a.Type == ActionProtect {
			out.protectedID = a.TargetID
		}
	}

	// 2. Phantom attack: the team consensus target is the last attack
	// submitted before lock-in.
	var attack *NightAction
	for _, phantom := range gs.livingByRole(player.RolePhantom) {
		if a, ok := acts[phantom.ID]; ok && a.Type == ActionAttack {
			if attack == nil || a.seq > attack.seq {
				attack = a
			}
		}
	}
	if attack != nil && alive(attack.TargetID) {
		victim := gs.players[attack.TargetID]
		if attack.TargetID == out.protectedID {
			attack.Result = "protected"
			appendEvent(events.EventTypeProtected, "", victim.ID, victim.Name+" was attacked, but something stood in the way.", nil)
			appendEvent(events.EventTypeNoKill, "", "", "Nobody died tonight.", nil)
		} else {
			attack.Result = "killed"
			out.eliminated = append(out.eliminated, victim.ID)
			appendEvent(events.EventTypePhantomKill, "", victim.ID, victim.Name+" was found dead at dawn.", victim)
		}
	} else if attack == nil {
		appendEvent(events.EventTypeNoKill, "", "", "The phantoms stayed their hand tonight.", nil)
	}

	// 3. Oracle investigations. Private; the fanatic deliberately reads
	// as allied to the phantoms.
	for _, oracle := range gs.livingByRole(player.RoleOracle) {
		if !alive(oracle.ID) {
			continue
		}
		a, ok := acts[oracle.ID]
		if !ok || a.Type != ActionInvestigate {
			continue
		}
		target := gs.players[a.TargetID]
		if target == nil {
			continue
		}
		result := ResultNotPhantom
		if player.PhantomAligned(target.Role) {
			result = ResultPhantom
		}
		a.Result = result
		out.investigations[oracle.ID] = Investigation{
			Round:      round,
			TargetID:   target.ID,
			TargetName: target.Name,
			Result:     result,
		}
	}

	// 4. Debugger identify: opposite participant kind kills the target,
	// a same-kind guess backfires on the debugger.
	for _, debugger := range gs.livingByRole(player.RoleDebugger) {
		if !alive(debugger.ID) {
			continue
		}
		a, ok := acts[debugger.ID]
		if !ok || a.Type != ActionIdentify {
			continue
		}
		if !alive(a.TargetID) {
			continue // corpse; no effect
		}
		target := gs.players[a.TargetID]
		if target.Kind != debugger.Kind {
			a.Result = "identified"
			out.eliminated = append(out.eliminated, target.ID)
			appendEvent(events.EventTypeIdentifierKill, debugger.ID, target.ID,
				target.Name+" was exposed and eliminated.", target)
		} else {
			a.Result = "backfired"
			out.eliminated = append(out.eliminated, debugger.ID)
			appendEvent(events.EventTypeIdentifierBackfire, debugger.ID, target.ID,
				debugger.Name+"'s accusation collapsed on itself.", debugger)
		}
	}

	return out
}
