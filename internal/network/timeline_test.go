package network

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/logger"
)

func seededTimeline(t *testing.T) *TimelineHandler {
	t.Helper()
	el := events.NewEventLog(nil)
	seed := []events.GameEvent{
		{GameID: "g1", Round: 1, Phase: "night", Type: events.EventTypeGameStart, Message: "the game begins"},
		{GameID: "g1", Round: 1, Phase: "night", Type: events.EventTypePhantomKill, TargetID: "p2", Message: "a body at dawn", RevealedRole: "citizen", RevealedType: "human"},
		{GameID: "g1", Round: 2, Phase: "day", Type: events.EventTypeVoteElimination, TargetID: "p4", Message: "the vote lands"},
		{GameID: "g2", Round: 1, Phase: "night", Type: events.EventTypeGameStart, Message: "another table"},
	}
	for _, e := range seed {
		e.ID = events.GenerateEventID()
		e.Timestamp = time.Now()
		el.Append(e)
	}
	return NewTimelineHandler(el, logger.NewLogger())
}

func fetchTimeline(t *testing.T, th *TimelineHandler, gameID, query string) TimelineResponse {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/games/"+gameID+"/timeline"+query, nil)
	rec := httptest.NewRecorder()
	th.HandleTimeline(rec, req, gameID)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp TimelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestTimelineScopedToGame(t *testing.T) {
	th := seededTimeline(t)

	resp := fetchTimeline(t, th, "g1", "")
	if resp.TotalEvents != 3 {
		t.Fatalf("events %d, want 3", resp.TotalEvents)
	}
	for _, e := range resp.Events {
		if e.Message == "another table" {
			t.Error("event from another game leaked into the timeline")
		}
	}
	// Reveal fields pass through exactly as recorded.
	kill := resp.Events[1]
	if kill.RevealedRole != "citizen" || kill.RevealedType != "human" {
		t.Errorf("reveal fields %+v", kill)
	}
}

func TestTimelineRoundFilter(t *testing.T) {
	th := seededTimeline(t)

	resp := fetchTimeline(t, th, "g1", "?round=2")
	if resp.TotalEvents != 1 || resp.Events[0].Type != string(events.EventTypeVoteElimination) {
		t.Fatalf("round filter returned %+v", resp.Events)
	}
	if resp.FilteredBy != "round 2" {
		t.Errorf("filter description %q", resp.FilteredBy)
	}
}

func TestTimelineRejectsBadRoundParam(t *testing.T) {
	th := seededTimeline(t)

	for _, q := range []string{"?round=abc", "?round=0", "?round=-1"} {
		req := httptest.NewRequest("GET", "/api/games/g1/timeline"+q, nil)
		rec := httptest.NewRecorder()
		th.HandleTimeline(rec, req, "g1")
		if rec.Code != 400 {
			t.Errorf("%s: status %d, want 400", q, rec.Code)
		}
	}
}

func TestTimelineTypeFilter(t *testing.T) {
	th := seededTimeline(t)

	resp := fetchTimeline(t, th, "g1", "?type=phantom_kill")
	if resp.TotalEvents != 1 || resp.Events[0].TargetID != "p2" {
		t.Fatalf("type filter returned %+v", resp.Events)
	}
}

func TestTimelineUnknownGameIsEmptyNotError(t *testing.T) {
	th := seededTimeline(t)

	resp := fetchTimeline(t, th, "ghost", "")
	if resp.TotalEvents != 0 || len(resp.Events) != 0 {
		t.Errorf("unknown game returned %d events", resp.TotalEvents)
	}
}

func TestTimelineMissingGameID(t *testing.T) {
	th := seededTimeline(t)
	req := httptest.NewRequest("GET", "/api/games//timeline", nil)
	rec := httptest.NewRecorder()
	th.HandleTimeline(rec, req, "")
	if rec.Code != 400 {
		t.Errorf("status %d, want 400", rec.Code)
	}
}
