package cognition

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/phantom-night/server/internal/agents/perception"
	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/infra/ai"
	"github.com/phantom-night/server/internal/platform/logger"
)

func digest(phase string, role player.Role, team player.Team) *perception.Digest {
	return &perception.Digest{
		GameID:       "g",
		Round:        1,
		Phase:        phase,
		YourPlayerID: "me",
		YourName:     "Vesper",
		You:          &engine.RoleView{Role: role, Team: team, IsAlive: true},
		Roster: []engine.PlayerView{
			{ID: "me", Name: "Vesper", IsAlive: true},
			{ID: "p1", Name: "Morrow", IsAlive: true},
			{ID: "p2", Name: "Quill", IsAlive: true},
			{ID: "p3", Name: "Sable", IsAlive: false},
		},
	}
}

func testCognitor(llm ai.LLMProvider) *Cognitor {
	return NewCognitor(llm, rand.New(rand.NewSource(7)), logger.NewLogger())
}

func TestHeuristicPhantomNeverHitsTeammatesOrSelf(t *testing.T) {
	c := testCognitor(nil)
	d := digest(string(engine.StatusNight), player.RolePhantom, player.TeamPhantoms)
	d.You.Teammates = []string{"Morrow"}

	for i := 0; i < 50; i++ {
		dec, err := c.Decide(context.Background(), d)
		if err != nil {
			t.Fatal(err)
		}
		if dec.Kind != KindNightAction || dec.Action != engine.ActionAttack {
			t.Fatalf("phantom decided %+v", dec)
		}
		if dec.TargetID != "p2" {
			// me is excluded, Morrow is a teammate, Sable is dead.
			t.Fatalf("phantom picked %q, only Quill is a legal victim", dec.TargetID)
		}
	}
}

func TestHeuristicOraclePrefersUninvestigated(t *testing.T) {
	c := testCognitor(nil)
	d := digest(string(engine.StatusNight), player.RoleOracle, player.TeamCitizens)
	d.You.InvestigationResults = []engine.Investigation{
		{Round: 1, TargetID: "p1", TargetName: "Morrow", Result: engine.ResultNotPhantom},
	}

	for i := 0; i < 50; i++ {
		dec, err := c.Decide(context.Background(), d)
		if err != nil {
			t.Fatal(err)
		}
		if dec.Action != engine.ActionInvestigate || dec.TargetID != "p2" {
			t.Fatalf("oracle should check the unseen Quill, got %+v", dec)
		}
	}
}

func TestHeuristicCitizenPassesAtNightVotesByDay(t *testing.T) {
	c := testCognitor(nil)

	night := digest(string(engine.StatusNight), player.RoleCitizen, player.TeamCitizens)
	dec, err := c.Decide(context.Background(), night)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Kind != KindPass {
		t.Errorf("citizen night move %+v, want pass", dec)
	}

	day := digest(string(engine.StatusDay), player.RoleCitizen, player.TeamCitizens)
	dec, err = c.Decide(context.Background(), day)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Kind != KindVote {
		t.Fatalf("citizen day move %+v, want vote", dec)
	}
	if dec.TargetID == "me" || dec.TargetID == "p3" {
		t.Errorf("citizen voted an illegal target %q", dec.TargetID)
	}
}

func TestHeuristicOracleVotesConfirmedPhantom(t *testing.T) {
	c := testCognitor(nil)
	d := digest(string(engine.StatusDay), player.RoleOracle, player.TeamCitizens)
	d.You.InvestigationResults = []engine.Investigation{
		{Round: 1, TargetID: "p2", TargetName: "Quill", Result: engine.ResultPhantom},
	}

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Kind != KindVote || dec.TargetID != "p2" {
		t.Errorf("oracle ignored a confirmed read: %+v", dec)
	}
}

func TestHeuristicEliminatedAgentsPass(t *testing.T) {
	c := testCognitor(nil)
	d := digest(string(engine.StatusDay), player.RolePhantom, player.TeamPhantoms)
	d.You.IsAlive = false

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Kind != KindPass {
		t.Errorf("dead agent still acting: %+v", dec)
	}
}

// scriptedLLM returns a canned completion, or an error.
type scriptedLLM struct {
	content string
	err     error
}

func (s *scriptedLLM) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.CompletionResponse{Content: s.content}, nil
}

func (s *scriptedLLM) GetUsageStats() ai.UsageStats { return ai.UsageStats{} }
func (s *scriptedLLM) ResetUsage()                  {}
func (s *scriptedLLM) Name() string                 { return "scripted" }
func (s *scriptedLLM) IsAvailable() bool            { return true }

func TestLLMDecisionByName(t *testing.T) {
	llm := &scriptedLLM{content: `{"reasoning":"loud accuser","decision":{"action":"vote","target":"Quill"}}`}
	c := testCognitor(llm)
	d := digest(string(engine.StatusDay), player.RoleCitizen, player.TeamCitizens)

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Source != "llm" {
		t.Fatalf("source %q, want llm", dec.Source)
	}
	if dec.Kind != KindVote || dec.TargetID != "p2" {
		t.Errorf("name not resolved to id: %+v", dec)
	}
}

func TestLLMInventedTargetFallsBackToHeuristic(t *testing.T) {
	llm := &scriptedLLM{content: `{"reasoning":"x","decision":{"action":"vote","target":"Nobody"}}`}
	c := testCognitor(llm)
	d := digest(string(engine.StatusDay), player.RoleCitizen, player.TeamCitizens)

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Source != "heuristic" {
		t.Errorf("invented target accepted: %+v", dec)
	}
}

func TestLLMOutageFallsBackToHeuristic(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("rate limited")}
	c := testCognitor(llm)
	d := digest(string(engine.StatusNight), player.RolePhantom, player.TeamPhantoms)

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Source != "heuristic" || dec.Kind != KindNightAction {
		t.Errorf("outage not absorbed: %+v", dec)
	}
}

func TestLLMBadJSONFallsBackToHeuristic(t *testing.T) {
	llm := &scriptedLLM{content: "I think we should vote for Quill!"}
	c := testCognitor(llm)
	d := digest(string(engine.StatusDay), player.RoleCitizen, player.TeamCitizens)

	dec, err := c.Decide(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Source != "heuristic" {
		t.Errorf("prose response accepted as a decision: %+v", dec)
	}
}
