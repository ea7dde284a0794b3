// Package metrics provides observability for the game server.
// Counters are cheap atomics so the hot paths never contend on a lock.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Phase resolution metrics
	ResolutionsRun     int64
	DuplicateAttempts  int64 // resolution attempts blocked by the idempotency guard
	ResolutionLatSum   int64 // nanoseconds
	ResolutionLatMax   int64

	// Submission metrics
	ActionsAccepted int64
	ActionsRejected int64
	VotesAccepted   int64
	VotesRejected   int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// LLM metrics
	LLMRequests   int64
	LLMTokensUsed int64
	LLMFallbacks  int64

	// System
	StartTime time.Time
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordResolution records a completed phase resolution.
func (c *Collector) RecordResolution(latency time.Duration) {
	atomic.AddInt64(&c.ResolutionsRun, 1)
	atomic.AddInt64(&c.ResolutionLatSum, int64(latency))

	// Non-atomic max update is acceptable for metrics
	if int64(latency) > atomic.LoadInt64(&c.ResolutionLatMax) {
		atomic.StoreInt64(&c.ResolutionLatMax, int64(latency))
	}
}

// RecordDuplicateResolution records a resolution attempt stopped by the guard.
func (c *Collector) RecordDuplicateResolution() {
	atomic.AddInt64(&c.DuplicateAttempts, 1)
}

// RecordAction records a night action submission.
func (c *Collector) RecordAction(accepted bool) {
	if accepted {
		atomic.AddInt64(&c.ActionsAccepted, 1)
	} else {
		atomic.AddInt64(&c.ActionsRejected, 1)
	}
}

// RecordVote records a day vote submission.
func (c *Collector) RecordVote(accepted bool) {
	if accepted {
		atomic.AddInt64(&c.VotesAccepted, 1)
	} else {
		atomic.AddInt64(&c.VotesRejected, 1)
	}
}

// RecordWSConnection tracks websocket connect/disconnect.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage tracks websocket traffic.
func (c *Collector) RecordWSMessage(in bool) {
	if in {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError tracks websocket send failures.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordLLMRequest tracks an LLM call for an agent decision.
func (c *Collector) RecordLLMRequest(tokens int) {
	atomic.AddInt64(&c.LLMRequests, 1)
	atomic.AddInt64(&c.LLMTokensUsed, int64(tokens))
}

// RecordLLMFallback tracks a provider failure handled by heuristics.
func (c *Collector) RecordLLMFallback() {
	atomic.AddInt64(&c.LLMFallbacks, 1)
}

// Snapshot returns the current metrics as a serializable map.
func (c *Collector) Snapshot() map[string]interface{} {
	resolutions := atomic.LoadInt64(&c.ResolutionsRun)
	avgLatMs := float64(0)
	if resolutions > 0 {
		avgLatMs = float64(atomic.LoadInt64(&c.ResolutionLatSum)) / float64(resolutions) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),
		"resolutions": map[string]interface{}{
			"run":                resolutions,
			"duplicate_attempts": atomic.LoadInt64(&c.DuplicateAttempts),
			"avg_latency_ms":     avgLatMs,
			"max_latency_ms":     float64(atomic.LoadInt64(&c.ResolutionLatMax)) / 1e6,
		},
		"submissions": map[string]interface{}{
			"actions_accepted": atomic.LoadInt64(&c.ActionsAccepted),
			"actions_rejected": atomic.LoadInt64(&c.ActionsRejected),
			"votes_accepted":   atomic.LoadInt64(&c.VotesAccepted),
			"votes_rejected":   atomic.LoadInt64(&c.VotesRejected),
		},
		"websocket": map[string]interface{}{
			"active":       atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":  atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out": atomic.LoadInt64(&c.WSMessagesOut),
			"errors":       atomic.LoadInt64(&c.WSErrors),
		},
		"llm": map[string]interface{}{
			"requests":  atomic.LoadInt64(&c.LLMRequests),
			"tokens":    atomic.LoadInt64(&c.LLMTokensUsed),
			"fallbacks": atomic.LoadInt64(&c.LLMFallbacks),
		},
	}
}

// Handler serves the metrics snapshot as JSON.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get().Snapshot())
	}
}
