package ai

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBudgetGateLimits(t *testing.T) {
	bg := NewBudgetGate(1.0, 5.0)

	if !bg.CanSpend(0.5) {
		t.Error("spend within both limits refused")
	}
	bg.RecordSpend(0.8)
	if bg.CanSpend(0.5) {
		t.Error("spend over the daily limit allowed")
	}
	if !bg.CanSpend(0.2) {
		t.Error("spend up to the daily limit refused")
	}
	if got := bg.MonthRemaining(); got != 4.2 {
		t.Errorf("month remaining %.2f, want 4.20", got)
	}
}

func TestBudgetGateMonthlyCapBinds(t *testing.T) {
	// Monthly cap lower than what the daily cap alone would allow.
	bg := NewBudgetGate(10.0, 1.0)
	bg.RecordSpend(0.9)
	if bg.CanSpend(0.5) {
		t.Error("spend over the monthly limit allowed")
	}
}

func TestBudgetGateConcurrentAccess(t *testing.T) {
	bg := NewBudgetGate(1000, 10000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bg.CanSpend(0.01)
			bg.RecordSpend(0.01)
		}()
	}
	wg.Wait()
	want := 10000 - 50*0.01
	if got := bg.MonthRemaining(); got < want-0.001 || got > want+0.001 {
		t.Errorf("month remaining %.4f, want about %.2f", got, want)
	}
}

func TestProviderConfigOverrides(t *testing.T) {
	gate := NewBudgetGate(1, 1)

	a := NewAnthropicProvider(gate, "", 0)
	if a.model != defaultAnthropicModel {
		t.Errorf("anthropic default model %q", a.model)
	}
	if a.client.Timeout != 60*time.Second {
		t.Errorf("anthropic default timeout %v", a.client.Timeout)
	}

	a = NewAnthropicProvider(gate, "claude-3-5-sonnet-20241022", 5*time.Second)
	if a.model != "claude-3-5-sonnet-20241022" || a.client.Timeout != 5*time.Second {
		t.Errorf("anthropic overrides ignored: %q %v", a.model, a.client.Timeout)
	}

	o := NewOpenAIProvider(gate, "", 0)
	if o.model != defaultOpenAIModel || o.client.Timeout != 60*time.Second {
		t.Errorf("openai defaults: %q %v", o.model, o.client.Timeout)
	}
	o = NewOpenAIProvider(gate, "gpt-4o", 5*time.Second)
	if o.model != "gpt-4o" || o.client.Timeout != 5*time.Second {
		t.Errorf("openai overrides ignored: %q %v", o.model, o.client.Timeout)
	}
}

func TestRateForUnknownModel(t *testing.T) {
	if rateFor("future-model") != 0.00001 {
		t.Error("unknown model should bill at the fallback rate")
	}
	if rateFor("gpt-4o-mini") >= rateFor("gpt-4o") {
		t.Error("mini model should be cheaper than the full model")
	}
}

func TestUsageTrackerConcurrentRecords(t *testing.T) {
	var tr usageTracker
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.record(100, 0.01)
		}()
	}
	wg.Wait()
	s := tr.snapshot(1.0)
	if s.TotalRequests != 50 || s.TotalTokens != 5000 {
		t.Errorf("tracker totals %+v", s)
	}
	if s.BudgetRemaining != 1.0 {
		t.Errorf("budget remaining %v", s.BudgetRemaining)
	}
	tr.reset()
	if s := tr.snapshot(0); s.TotalRequests != 0 || s.LastReset.IsZero() {
		t.Errorf("reset left %+v", s)
	}
}

func TestValidateDecisionResponse(t *testing.T) {
	mk := func(action, target, message string) *AgentDecisionResponse {
		r := &AgentDecisionResponse{Reasoning: "because"}
		r.Decision.Action = action
		r.Decision.Target = target
		r.Decision.Message = message
		return r
	}

	cases := []struct {
		name string
		resp *AgentDecisionResponse
		ok   bool
	}{
		{"vote with target", mk("vote", "p1", ""), true},
		{"pass without target", mk("pass", "", ""), true},
		{"chat with message", mk("chat", "", "hello"), true},
		{"vote without target", mk("vote", "", ""), false},
		{"attack without target", mk("attack", "", ""), false},
		{"chat without message", mk("chat", "", ""), false},
		{"made-up action", mk("moonwalk", "p1", ""), false},
	}
	for _, tc := range cases {
		err := ValidateDecisionResponse(tc.resp)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}

	empty := mk("vote", "p1", "")
	empty.Reasoning = ""
	if err := ValidateDecisionResponse(empty); err == nil {
		t.Error("missing reasoning accepted")
	}
}

func TestBuildSystemPromptFallsBackToCitizen(t *testing.T) {
	phantom := BuildSystemPrompt("phantom")
	if !strings.Contains(phantom, "PHANTOM") {
		t.Error("phantom briefing missing")
	}
	unknown := BuildSystemPrompt("jester")
	if !strings.Contains(unknown, "CITIZEN") {
		t.Error("unknown role should fall back to the citizen briefing")
	}

	// The briefing must state the actual risk: accusing your own kind of
	// participant eliminates you, not a wrong guess in general.
	debugger := BuildSystemPrompt("debugger")
	if !strings.Contains(debugger, "different kind of participant") ||
		!strings.Contains(debugger, "your own kind") {
		t.Error("debugger briefing does not match the identify rule")
	}
}

func TestBuildContextPromptCapsEvents(t *testing.T) {
	events := make([]string, 20)
	for i := range events {
		events[i] = "event"
	}
	out := BuildContextPrompt("digest", events, "Choose.")
	if !strings.Contains(out, "older events omitted") {
		t.Error("long event list not truncated")
	}
	if got := strings.Count(out, "- event"); got != 12 {
		t.Errorf("events included %d, want 12", got)
	}
}
