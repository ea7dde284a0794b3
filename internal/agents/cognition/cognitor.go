// Package cognition provides the "brain" of an agent player.
//
// Decisions come from a deterministic heuristic layer; when an LLM
// provider is configured the heuristic becomes the fallback for budget
// exhaustion, bad JSON, or provider outages.
package cognition

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/phantom-night/server/internal/agents/perception"
	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/infra/ai"
	"github.com/phantom-night/server/internal/platform/logger"
	"github.com/phantom-night/server/internal/platform/metrics"
)

// Decision kinds produced by the cognitor.
const (
	KindNightAction = "night_action"
	KindVote        = "vote"
	KindChat        = "chat"
	KindPass        = "pass"
)

// Decision is one planned move for an agent.
type Decision struct {
	Kind     string
	Action   engine.ActionType // night actions only
	TargetID string
	Message  string // chat only
	Reason   string
	Source   string // "heuristic" or "llm"
}

// Cognitor decides an agent's move from its digest.
type Cognitor struct {
	logger *logger.Logger
	llm    ai.LLMProvider
	rng    *rand.Rand
}

// NewCognitor creates a cognition module. llm may be nil; the heuristic
// layer then carries every decision.
func NewCognitor(llm ai.LLMProvider, rng *rand.Rand, log *logger.Logger) *Cognitor {
	return &Cognitor{logger: log, llm: llm, rng: rng}
}

// Decide produces a move, preferring the LLM when one is wired.
func (c *Cognitor) Decide(ctx context.Context, d *perception.Digest) (*Decision, error) {
	if c.llm != nil && c.llm.IsAvailable() {
		if dec, err := c.decideWithLLM(ctx, d); err == nil {
			return dec, nil
		}
		metrics.Get().RecordLLMFallback()
	}
	return c.decideHeuristic(d), nil
}

// decideHeuristic is the rule-based layer. It always returns a legal
// move for the current phase, or a pass.
func (c *Cognitor) decideHeuristic(d *perception.Digest) *Decision {
	if !d.You.IsAlive {
		return &Decision{Kind: KindPass, Reason: "eliminated", Source: "heuristic"}
	}

	switch d.Phase {
	case string(engine.StatusNight):
		return c.nightMove(d)
	case string(engine.StatusDay):
		return c.dayMove(d)
	default:
		return &Decision{Kind: KindPass, Reason: "no active phase", Source: "heuristic"}
	}
}

func (c *Cognitor) nightMove(d *perception.Digest) *Decision {
	others := d.LivingOthers()
	if len(others) == 0 {
		return &Decision{Kind: KindPass, Reason: "nobody to target", Source: "heuristic"}
	}

	switch d.You.Role {
	case player.RolePhantom:
		// Pick a victim outside the phantom team, leaning on the vote
		// tally when one exists: loud accusers go first.
		victims := make([]engine.PlayerView, 0, len(others))
		for _, p := range others {
			if !d.IsTeammateName(p.Name) {
				victims = append(victims, p)
			}
		}
		if len(victims) == 0 {
			return &Decision{Kind: KindPass, Reason: "no valid victim", Source: "heuristic"}
		}
		pick := victims[c.rng.Intn(len(victims))]
		return &Decision{
			Kind:     KindNightAction,
			Action:   engine.ActionAttack,
			TargetID: pick.ID,
			Reason:   "phantom attack",
			Source:   "heuristic",
		}

	case player.RoleOracle:
		// Investigate someone not yet checked.
		seen := make(map[string]bool)
		for _, inv := range d.You.InvestigationResults {
			seen[inv.TargetID] = true
		}
		fresh := make([]engine.PlayerView, 0, len(others))
		for _, p := range others {
			if !seen[p.ID] {
				fresh = append(fresh, p)
			}
		}
		if len(fresh) == 0 {
			fresh = others
		}
		pick := fresh[c.rng.Intn(len(fresh))]
		return &Decision{
			Kind:     KindNightAction,
			Action:   engine.ActionInvestigate,
			TargetID: pick.ID,
			Reason:   "oracle investigation",
			Source:   "heuristic",
		}

	case player.RoleGuardian:
		// Shield self most nights, a random other occasionally.
		targetID := d.YourPlayerID
		if c.rng.Float64() < 0.35 {
			targetID = others[c.rng.Intn(len(others))].ID
		}
		return &Decision{
			Kind:     KindNightAction,
			Action:   engine.ActionProtect,
			TargetID: targetID,
			Reason:   "guardian shield",
			Source:   "heuristic",
		}

	case player.RoleDebugger:
		// Identifying wrong is fatal, so the heuristic only fires a small
		// fraction of nights.
		if c.rng.Float64() < 0.15 {
			pick := others[c.rng.Intn(len(others))]
			return &Decision{
				Kind:     KindNightAction,
				Action:   engine.ActionIdentify,
				TargetID: pick.ID,
				Reason:   "debugger gamble",
				Source:   "heuristic",
			}
		}
		return &Decision{Kind: KindPass, Reason: "debugger holds", Source: "heuristic"}
	}

	// Citizens and the fanatic have no night action.
	return &Decision{Kind: KindPass, Reason: "no night action for role", Source: "heuristic"}
}

func (c *Cognitor) dayMove(d *perception.Digest) *Decision {
	others := d.LivingOthers()
	if len(others) == 0 {
		return &Decision{Kind: KindPass, Reason: "nobody to vote for", Source: "heuristic"}
	}

	candidates := others
	if d.You.Team == player.TeamPhantoms {
		// Phantoms pile votes onto citizens.
		safe := make([]engine.PlayerView, 0, len(others))
		for _, p := range others {
			if !d.IsTeammateName(p.Name) {
				safe = append(safe, p)
			}
		}
		if len(safe) > 0 {
			candidates = safe
		}
	} else if d.You.Role == player.RoleOracle {
		// Vote a confirmed phantom read when one is still alive.
		for _, inv := range d.You.InvestigationResults {
			if inv.Result != engine.ResultPhantom {
				continue
			}
			for _, p := range others {
				if p.ID == inv.TargetID {
					return &Decision{
						Kind:     KindVote,
						TargetID: p.ID,
						Reason:   "oracle confirmed read",
						Source:   "heuristic",
					}
				}
			}
		}
	}

	pick := candidates[c.rng.Intn(len(candidates))]
	return &Decision{
		Kind:     KindVote,
		TargetID: pick.ID,
		Reason:   "day vote",
		Source:   "heuristic",
	}
}

// decideWithLLM asks the provider for a structured move and validates it
// against the digest before trusting it.
func (c *Cognitor) decideWithLLM(ctx context.Context, d *perception.Digest) (*Decision, error) {
	task := "It is the " + d.Phase + " phase. Choose your move."
	req := ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: ai.BuildSystemPrompt(string(d.You.Role))},
			{Role: "user", Content: ai.BuildContextPrompt(d.Summary, d.RecentEvents, task)},
		},
		MaxTokens:   400,
		Temperature: 0.8,
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		c.logger.Warn("COGNITION: LLM call failed: " + err.Error())
		return nil, err
	}
	metrics.Get().RecordLLMRequest(resp.TotalTokens)

	var parsed ai.AgentDecisionResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		c.logger.Warn("COGNITION: LLM returned bad JSON: " + err.Error())
		return nil, err
	}
	if err := ai.ValidateDecisionResponse(&parsed); err != nil {
		c.logger.Warn("COGNITION: LLM decision invalid: " + err.Error())
		return nil, err
	}

	dec, err := c.mapLLMDecision(d, &parsed)
	if err != nil {
		c.logger.Warn("COGNITION: LLM decision rejected: " + err.Error())
		return nil, err
	}
	c.logger.Event("COGNITION", d.YourPlayerID,
		fmt.Sprintf("llm move: %s -> %s", dec.Kind, dec.TargetID))
	return dec, nil
}

// mapLLMDecision converts the JSON decision to an internal one, checking
// the target is a living roster member. The LLM never gets to invent a
// player ID.
func (c *Cognitor) mapLLMDecision(d *perception.Digest, r *ai.AgentDecisionResponse) (*Decision, error) {
	switch r.Decision.Action {
	case "pass":
		return &Decision{Kind: KindPass, Reason: r.Reasoning, Source: "llm"}, nil
	case "chat":
		return &Decision{Kind: KindChat, Message: r.Decision.Message, Source: "llm"}, nil
	}

	target := c.resolveTarget(d, r.Decision.Target)
	if target == "" {
		return nil, fmt.Errorf("unknown or dead target %q", r.Decision.Target)
	}

	if r.Decision.Action == "vote" {
		return &Decision{Kind: KindVote, TargetID: target, Reason: r.Reasoning, Source: "llm"}, nil
	}

	actionKinds := map[string]engine.ActionType{
		"attack":      engine.ActionAttack,
		"investigate": engine.ActionInvestigate,
		"protect":     engine.ActionProtect,
		"identify":    engine.ActionIdentify,
	}
	typ, ok := actionKinds[r.Decision.Action]
	if !ok {
		return nil, fmt.Errorf("unmapped action %q", r.Decision.Action)
	}
	return &Decision{
		Kind:     KindNightAction,
		Action:   typ,
		TargetID: target,
		Reason:   r.Reasoning,
		Source:   "llm",
	}, nil
}

// resolveTarget accepts either a player ID or a display name.
func (c *Cognitor) resolveTarget(d *perception.Digest, raw string) string {
	for _, p := range d.Roster {
		if (p.ID == raw || p.Name == raw) && p.IsAlive {
			return p.ID
		}
	}
	return ""
}
