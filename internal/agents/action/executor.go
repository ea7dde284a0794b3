// Package action provides the "hands" of an agent player.
//
// It submits cognition decisions through the same engine entry points a
// human client uses, so agent moves get the full validation path.
package action

import (
	"github.com/phantom-night/server/internal/agents/cognition"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/platform/logger"
)

// Executor submits decisions on behalf of one agent.
type Executor struct {
	eng    *engine.Engine
	logger *logger.Logger
}

// NewExecutor creates a new action executor.
func NewExecutor(eng *engine.Engine, log *logger.Logger) *Executor {
	return &Executor{eng: eng, logger: log}
}

// Execute performs the decided move. A rejected submission is normal
// during phase turnover and is reported back for the mind to retry.
func (e *Executor) Execute(gameID, residentID string, d *cognition.Decision) error {
	switch d.Kind {
	case cognition.KindNightAction:
		return e.eng.SubmitNightAction(gameID, residentID, d.Action, d.TargetID)
	case cognition.KindVote:
		return e.eng.SubmitVote(gameID, residentID, d.TargetID, d.Reason)
	case cognition.KindChat:
		return e.eng.SendPhantomChat(gameID, residentID, d.Message)
	case cognition.KindPass:
		return nil
	default:
		e.logger.Warn("ACTION: unknown decision kind: " + d.Kind)
		return nil
	}
}
