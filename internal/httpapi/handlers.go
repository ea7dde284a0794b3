package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/infra/storage"
	"github.com/phantom-night/server/internal/network"
)

type contextKey string

const identityKey contextKey = "identity"

// identity is the caller's resolved headers.
type identity struct {
	ResidentID string
	Name       string
	Scope      string
}

// requireIdentity rejects requests without a resident id. Every other
// identity field has a safe default.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity{
			ResidentID: r.Header.Get("X-Resident-ID"),
			Name:       r.Header.Get("X-Resident-Name"),
			Scope:      r.Header.Get("X-Scope"),
		}
		// Browser WebSocket clients cannot set headers.
		if id.ResidentID == "" {
			id.ResidentID = r.URL.Query().Get("resident_id")
		}
		if id.ResidentID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Resident-ID header")
			return
		}
		if id.Name == "" {
			id.Name = "Resident"
		}
		if id.Scope == "" {
			id.Scope = "default"
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerIdentity(r *http.Request) identity {
	id, _ := r.Context().Value(identityKey).(identity)
	return id
}

// --- responses ---

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps the engine's sentinel errors onto HTTP codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrInsufficientPlayers):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthorized),
		errors.Is(err, engine.ErrNotCreator):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrStateConflict),
		errors.Is(err, engine.ErrLobbyFull),
		errors.Is(err, engine.ErrAlreadyStarted):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// --- lifecycle ---

type createGameRequest struct {
	MaxPlayers int    `json:"max_players"`
	Speed      string `json:"speed"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	var req createGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	game, err := s.eng.CreateLobby(id.Scope, id.ResidentID, id.Name, req.MaxPlayers, req.Speed)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (s *Server) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.ListLobbies())
}

func (s *Server) handleCurrentGame(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	game := s.eng.CurrentGame(id.Scope)
	if game == nil {
		writeError(w, http.StatusNotFound, "no active game in scope")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	if err := s.eng.JoinLobby(gameID, id.ResidentID, id.Name); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "joined"})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	if err := s.eng.LeaveLobby(gameID, id.ResidentID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "left"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	game, err := s.eng.StartGame(gameID, id.ResidentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	if err := s.eng.Cancel(gameID, id.ResidentID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "game cancelled"})
}

// --- read surface ---

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.eng.Players(chi.URLParam(r, "gameID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.eng.Events(chi.URLParam(r, "gameID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	s.timeline.HandleTimeline(w, r, chi.URLParam(r, "gameID"))
}

// handleRecap serves the ledger-derived post-game summary.
// GET /api/games/{gameID}/recap?since=N
func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	since := 1
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = n
	}
	recap, err := s.recap.GenerateRecap(r.Context(), chi.URLParam(r, "gameID"), since)
	if err != nil {
		s.logger.Errorf("recap generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "recap unavailable")
		return
	}
	if recap == nil {
		recap = []storage.RecapEvent{}
	}
	writeJSON(w, http.StatusOK, recap)
}

// handleFate rebuilds one player's elimination status from the ledger.
func (s *Server) handleFate(w http.ResponseWriter, r *http.Request) {
	fate, err := s.recap.RebuildPlayerFate(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "playerID"))
	if err != nil {
		s.logger.Errorf("fate rebuild failed: %v", err)
		writeError(w, http.StatusInternalServerError, "fate unavailable")
		return
	}
	writeJSON(w, http.StatusOK, fate)
}

func (s *Server) handleMyRole(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	role, err := s.eng.MyRole(chi.URLParam(r, "gameID"), id.ResidentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (s *Server) handleVoteTally(w http.ResponseWriter, r *http.Request) {
	tally, err := s.eng.VoteTally(chi.URLParam(r, "gameID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

// --- moves ---

var nightActions = map[string]engine.ActionType{
	"attack":      engine.ActionAttack,
	"investigate": engine.ActionInvestigate,
	"protect":     engine.ActionProtect,
	"identify":    engine.ActionIdentify,
}

type targetRequest struct {
	TargetID string `json:"target_id"`
}

func (s *Server) handleNightAction(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	typ, ok := nightActions[chi.URLParam(r, "action")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown night action")
		return
	}
	var req targetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.SubmitNightAction(gameID, id.ResidentID, typ, req.TargetID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "action registered"})
}

type voteRequest struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

func (s *Server) handleDayVote(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	gameID := chi.URLParam(r, "gameID")
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.SubmitVote(gameID, id.ResidentID, req.TargetID, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "vote registered"})
}

// --- phantom chat ---

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	msgs, err := s.eng.PhantomChat(chi.URLParam(r, "gameID"), id.ResidentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.SendPhantomChat(chi.URLParam(r, "gameID"), id.ResidentID, req.Text); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "sent"})
}

// --- realtime and health ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	network.ServeWS(s.hub, s.sendBuffer, w, r, id.ResidentID)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
