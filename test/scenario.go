// Package test - scenario.go
// Shadow-mode scenario: runs a complete game offline against a fake
// clock, with agent minds deciding through the heuristic pipeline and a
// scripted human seat. Verifies the engine reaches a clean conclusion.
package test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/phantom-night/server/internal/agents/action"
	"github.com/phantom-night/server/internal/agents/cognition"
	"github.com/phantom-night/server/internal/agents/perception"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/logger"
)

const humanResident = "scenario-human"

// maxRounds caps the simulation. A real game of 8 ends well before this.
const maxRounds = 40

// TestResult captures the outcome of each checked scenario condition.
type TestResult struct {
	ScenarioName string
	Expected     string
	Actual       string
	Passed       bool
	Reason       string
}

// FullGameScenario drives one complete offline game.
type FullGameScenario struct {
	logger    *logger.Logger
	eventLog  *events.EventLog
	eng       *engine.Engine
	perceiver *perception.Perceiver
	executor  *action.Executor
	rng       *rand.Rand

	clock   time.Time
	results []TestResult
}

// NewFullGameScenario creates the harness. The engine runs with a fake
// clock and no storage or notifier.
func NewFullGameScenario(seed int64) *FullGameScenario {
	log := logger.NewLogger()
	el := events.NewEventLog(nil)

	s := &FullGameScenario{
		logger:   log,
		eventLog: el,
		rng:      rand.New(rand.NewSource(seed)),
		clock:    time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC),
		results:  make([]TestResult, 0),
	}
	s.eng = engine.NewEngine(el, log, nil, nil, engine.WithClock(func() time.Time {
		return s.clock
	}))
	s.perceiver = perception.NewPerceiver(s.eng, log)
	s.executor = action.NewExecutor(s.eng, log)
	return s
}

// GetResults returns all recorded check outcomes.
func (s *FullGameScenario) GetResults() []TestResult {
	return s.results
}

func (s *FullGameScenario) record(name, expected, actual string, passed bool, reason string) {
	s.results = append(s.results, TestResult{
		ScenarioName: name,
		Expected:     expected,
		Actual:       actual,
		Passed:       passed,
		Reason:       reason,
	})
	marker := "PASS"
	if !passed {
		marker = "FAIL"
	}
	fmt.Printf("  [%s] %s: expected %s, got %s\n", marker, name, expected, actual)
}

// RunTest executes the full-game scenario.
func (s *FullGameScenario) RunTest(ctx context.Context) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SCENARIO: FULL GAME, HEURISTIC AGENTS")
	fmt.Println(strings.Repeat("=", 60))

	game, err := s.eng.CreateLobby("scenario", humanResident, "Sam", 8, "short")
	if err != nil {
		s.record("lobby created", "no error", err.Error(), false, "cannot continue")
		return
	}
	gameID := game.ID

	game, err = s.eng.StartGame(gameID, humanResident)
	if err != nil {
		s.record("game started", "no error", err.Error(), false, "cannot continue")
		return
	}

	s.record("opening phase", string(engine.StatusNight), string(game.Status),
		game.Status == engine.StatusNight, "games open on night 1")
	s.record("roster filled", "8 players", fmt.Sprintf("%d players", game.PlayerCount),
		game.PlayerCount == 8, "agents fill the empty seats")
	s.record("phantom count", "2 phantoms", fmt.Sprintf("%d phantoms", game.RoleCounts.Phantoms),
		game.RoleCounts.Phantoms == 2, "role distribution for 8 players")

	// Phase loop: let every seat act, then expire the clock and sweep.
	for round := 0; round < maxRounds; round++ {
		game, err = s.eng.GameByID(gameID)
		if err != nil {
			s.record("game lookup", "no error", err.Error(), false, "registry lost the game")
			return
		}
		if game.Status == engine.StatusFinished {
			break
		}

		s.playPhase(ctx, gameID, game)

		s.clock = game.PhaseEndsAt.Add(time.Second)
		s.eng.Sweep()
	}

	s.checkConclusion(gameID)
}

// playPhase submits a move for every living seat in the current phase.
func (s *FullGameScenario) playPhase(ctx context.Context, gameID string, game *engine.GameView) {
	// The human seat plays too: a vote by day, nothing by night. Citizens
	// have no night action, and the deck deals the human a citizen-side
	// role often enough that a braver script is not worth the flaking.
	if game.Status == engine.StatusDay {
		s.humanVote(gameID)
	}

	for _, seat := range s.eng.AgentSeats(gameID) {
		if !seat.IsAlive {
			continue
		}
		cog := cognition.NewCognitor(nil, s.rng, s.logger)
		digest, err := s.perceiver.BuildDigest(gameID, seat.ResidentID, seat.PlayerID, seat.Name)
		if err != nil {
			continue
		}
		decision, err := cog.Decide(ctx, digest)
		if err != nil || decision == nil {
			continue
		}
		// Rejections are fine here: dead targets, wrong-phase moves.
		_ = s.executor.Execute(gameID, seat.ResidentID, decision)
	}
}

// humanVote votes for a random living non-self player, when the human
// still breathes and holds a vote this phase.
func (s *FullGameScenario) humanVote(gameID string) {
	role, err := s.eng.MyRole(gameID, humanResident)
	if err != nil || !role.IsAlive {
		return
	}
	players, err := s.eng.Players(gameID)
	if err != nil {
		return
	}
	var targets []string
	for _, p := range players {
		if p.IsAlive && p.Name != "Sam" {
			targets = append(targets, p.ID)
		}
	}
	if len(targets) == 0 {
		return
	}
	target := targets[s.rng.Intn(len(targets))]
	_ = s.eng.SubmitVote(gameID, humanResident, target, "scenario pick")
}

// checkConclusion verifies the end state and the audit trail.
func (s *FullGameScenario) checkConclusion(gameID string) {
	game, err := s.eng.GameByID(gameID)
	if err != nil {
		s.record("final lookup", "no error", err.Error(), false, "")
		return
	}

	s.record("game concluded", string(engine.StatusFinished), string(game.Status),
		game.Status == engine.StatusFinished, "parity or extinction must occur within the round cap")
	s.record("winner declared", "non-empty team", string(game.WinnerTeam),
		game.WinnerTeam != "", "finished games always carry a winner")

	log := s.eventLog.GetByGame(gameID)
	var sawStart, sawEnd bool
	lastRound := 0
	ordered := true
	for _, e := range log {
		switch e.Type {
		case events.EventTypeGameStart:
			sawStart = true
		case events.EventTypeGameEnd:
			sawEnd = true
		}
		if e.Round < lastRound {
			ordered = false
		}
		if e.Round > lastRound {
			lastRound = e.Round
		}
	}
	s.record("audit trail bounds", "game_start and game_end present",
		fmt.Sprintf("start=%v end=%v", sawStart, sawEnd), sawStart && sawEnd, "")
	s.record("audit trail order", "rounds non-decreasing",
		fmt.Sprintf("ordered=%v", ordered), ordered, "append order follows game time")

	// A finished game lifts the redaction: every role is visible.
	players, err := s.eng.Players(gameID)
	if err != nil {
		s.record("roster readback", "no error", err.Error(), false, "")
		return
	}
	revealsOK := true
	for _, p := range players {
		if p.RevealedRole == "" || p.RevealedType == "" {
			revealsOK = false
		}
	}
	s.record("role reveals", "all roles visible post-game",
		fmt.Sprintf("consistent=%v", revealsOK), revealsOK, "")
}
