// Package ai - prompts.go
// Prompt construction for agent players. Each agent gets a role-specific
// system prompt plus a dynamic game digest, and must answer in a strict
// JSON decision format.
package ai

import (
	"fmt"
	"strings"
)

// AgentSystemPrompt is the base instruction set for every agent player.
const AgentSystemPrompt = `
# IDENTITY

You are a player in a turn-based social deduction game. The village has a
hidden phantom faction trying to eliminate everyone else. You know ONLY
your own role and what public events have revealed. Play to win for your
team, stay in character, and never reveal hidden information you should
not have.

## RULES YOU MUST FOLLOW

1. Base decisions only on the information given in the game digest.
2. Never claim knowledge of another player's hidden role unless an event revealed it.
3. During the day, vote for exactly one living player other than yourself.
4. During the night, use your role's action if you have one.
5. Answer ONLY in the JSON format below, nothing else.

## RESPONSE FORMAT

{
  "reasoning": "Your step-by-step thinking, kept private",
  "decision": {
    "action": "vote|attack|investigate|protect|identify|chat|pass",
    "target": "player_id or empty",
    "message": "chat text when action is chat, else empty"
  }
}
`

// roleBriefings give each role its private objective.
var roleBriefings = map[string]string{
	"phantom":  "You are a PHANTOM. Each night, coordinate with your teammates to pick one victim. During the day, blend in and steer suspicion toward citizens.",
	"citizen":  "You are a CITIZEN. You have no night action. Watch voting patterns and day discussion to find the phantoms.",
	"oracle":   "You are the ORACLE. Each night you may investigate one living player and learn whether they read as phantom-aligned. Use your findings carefully; revealing yourself makes you a target.",
	"guardian": "You are the GUARDIAN. Each night you may shield one living player (including yourself) from the phantom attack.",
	"fanatic":  "You are the FANATIC. You win with the phantoms but do not know who they are, and they do not know you. You read as phantom-aligned to investigation. Sow confusion among the citizens.",
	"debugger": "You are the DEBUGGER. Once per night you may accuse one living player of being a different kind of participant than you (human versus AI). If they are, they are eliminated; if they are your own kind, YOU are eliminated. Certainty before action.",
}

// BuildSystemPrompt combines the base prompt with a role briefing.
func BuildSystemPrompt(role string) string {
	briefing, ok := roleBriefings[role]
	if !ok {
		briefing = roleBriefings["citizen"]
	}
	return AgentSystemPrompt + "\n## YOUR ROLE\n\n" + briefing + "\n"
}

// BuildContextPrompt constructs the dynamic game digest for LLM reasoning.
func BuildContextPrompt(gameDigest string, recentEvents []string, task string) string {
	var sb strings.Builder

	sb.WriteString("## CURRENT GAME STATE\n\n")
	sb.WriteString(gameDigest)
	sb.WriteString("\n\n## RECENT EVENTS\n\n")

	for i, event := range recentEvents {
		if i >= 12 {
			sb.WriteString("... (older events omitted)\n")
			break
		}
		sb.WriteString(fmt.Sprintf("- %s\n", event))
	}

	sb.WriteString("\n## TASK\n\n")
	sb.WriteString(task)
	sb.WriteString(" Think step by step in the reasoning field, then give exactly one decision.\n")

	return sb.String()
}

// AgentDecisionResponse is the expected structured response from the LLM.
type AgentDecisionResponse struct {
	Reasoning string `json:"reasoning"`
	Decision  struct {
		Action  string `json:"action"`
		Target  string `json:"target"`
		Message string `json:"message"`
	} `json:"decision"`
}

// ValidateDecisionResponse checks if the LLM response is usable.
func ValidateDecisionResponse(resp *AgentDecisionResponse) error {
	if resp.Reasoning == "" {
		return fmt.Errorf("missing reasoning")
	}

	validActions := map[string]bool{
		"vote":        true,
		"attack":      true,
		"investigate": true,
		"protect":     true,
		"identify":    true,
		"chat":        true,
		"pass":        true,
	}

	if !validActions[resp.Decision.Action] {
		return fmt.Errorf("invalid action: %s", resp.Decision.Action)
	}

	needsTarget := map[string]bool{
		"vote": true, "attack": true, "investigate": true,
		"protect": true, "identify": true,
	}
	if needsTarget[resp.Decision.Action] && resp.Decision.Target == "" {
		return fmt.Errorf("action %s requires a target", resp.Decision.Action)
	}

	if resp.Decision.Action == "chat" && resp.Decision.Message == "" {
		return fmt.Errorf("chat action requires a message")
	}

	return nil
}
