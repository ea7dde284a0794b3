// Package network - timeline.go
// Public JSON export of a game's audit timeline, filterable by round and
// event type. Backs the post-game recap screen and moderation tooling.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/logger"
)

// TimelineHandler serves the sanitized event timeline.
type TimelineHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(el *events.EventLog, log *logger.Logger) *TimelineHandler {
	return &TimelineHandler{eventLog: el, logger: log}
}

// TimelineEvent is a sanitized event for public viewing. Role reveals
// appear exactly as the ledger recorded them.
type TimelineEvent struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Round        int    `json:"round"`
	Phase        string `json:"phase,omitempty"`
	Type         string `json:"type"`
	TargetID     string `json:"target_id,omitempty"`
	Message      string `json:"message"`
	RevealedRole string `json:"revealed_role,omitempty"`
	RevealedType string `json:"revealed_type,omitempty"`
}

// TimelineResponse is the API response for the timeline export.
type TimelineResponse struct {
	GameID      string          `json:"game_id"`
	TotalEvents int             `json:"total_events"`
	FilteredBy  string          `json:"filtered_by,omitempty"`
	GeneratedAt string          `json:"generated_at"`
	Events      []TimelineEvent `json:"events"`
}

// HandleTimeline returns the timeline for a game.
// GET /api/games/{gameID}/timeline?round=N&type=phantom_kill
func (th *TimelineHandler) HandleTimeline(w http.ResponseWriter, r *http.Request, gameID string) {
	if gameID == "" {
		th.jsonError(w, "missing game id", http.StatusBadRequest)
		return
	}

	roundStr := r.URL.Query().Get("round")
	eventType := r.URL.Query().Get("type")

	round := 0
	filterDesc := ""
	if roundStr != "" {
		n, err := strconv.Atoi(roundStr)
		if err != nil || n < 1 {
			th.jsonError(w, "invalid round parameter", http.StatusBadRequest)
			return
		}
		round = n
		filterDesc = "round " + roundStr
	}

	all := th.eventLog.GetByGame(gameID)

	out := make([]TimelineEvent, 0, len(all))
	for _, e := range all {
		if round != 0 && e.Round != round {
			continue
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		out = append(out, TimelineEvent{
			ID:           e.ID,
			Timestamp:    e.Timestamp.Format(time.RFC3339),
			Round:        e.Round,
			Phase:        e.Phase,
			Type:         string(e.Type),
			TargetID:     e.TargetID,
			Message:      e.Message,
			RevealedRole: e.RevealedRole,
			RevealedType: e.RevealedType,
		})
	}

	resp := TimelineResponse{
		GameID:      gameID,
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (th *TimelineHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
