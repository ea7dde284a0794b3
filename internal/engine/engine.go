// Package engine contains the Phantom Night game state machine: lobby
// management, the phase scheduler, night/day resolution and win evaluation.
//
// ARCHITECTURAL RULE: the engine owns the authoritative in-memory state.
// Storage is write-through, the event log is append-only, and every
// client-visible change is followed by a refresh-scope notification.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/platform/logger"
	"github.com/phantom-night/server/internal/platform/metrics"
)

// Refresh scopes pushed to clients. Each one means "refetch this slice",
// never a payload delta.
const (
	RefreshGame        = "game"
	RefreshPlayers     = "players"
	RefreshEvents      = "events"
	RefreshPhaseChange = "phase_change"
	RefreshChat        = "chat"
	RefreshPhantomChat = "phantom_chat"
	RefreshVotes       = "votes"
)

// Notifier fans refresh scopes out to connected clients.
type Notifier interface {
	Refresh(gameID string, scope string)
	RefreshTeam(gameID string, team player.Team, scope string)
}

// Store is the write-through persistence surface. Implementations must be
// safe for concurrent use; the engine never reads back through it.
type Store interface {
	UpsertGame(ctx context.Context, g *Game) error
	UpsertPlayer(ctx context.Context, p *player.Player) error
	SaveAction(ctx context.Context, gameID string, a *NightAction) error
	SaveVote(ctx context.Context, gameID string, v *DayVote) error
	SaveChat(ctx context.Context, m *ChatMessage) error
	DeletePlayer(ctx context.Context, playerID string) error
	DeleteGame(ctx context.Context, gameID string) error
}

// Engine is the keyed registry of active games plus all operations on them.
// Locking order is always: registry mutex first, then a single game mutex.
type Engine struct {
	mu     sync.RWMutex
	games  map[string]*gameState
	scopes map[string]string // scope -> current game id
	seqs   map[string]int    // scope -> last game number

	eventLog *events.EventLog
	logger   *logger.Logger
	notifier Notifier
	store    Store
	rewarder Rewarder

	allowAllAI bool
	nowFn      func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFn = now }
}

// WithAllAIGames allows starting a game with zero human joiners.
func WithAllAIGames(allow bool) Option {
	return func(e *Engine) { e.allowAllAI = allow }
}

// NewEngine wires the state machine to its collaborators. notifier and
// store may be nil (tests, cmd/scenario-runner).
func NewEngine(eventLog *events.EventLog, log *logger.Logger, notifier Notifier, store Store, opts ...Option) *Engine {
	e := &Engine{
		games:    make(map[string]*gameState),
		scopes:   make(map[string]string),
		seqs:     make(map[string]int),
		eventLog: eventLog,
		logger:   log,
		notifier: notifier,
		store:    store,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EventLog exposes the audit log for pollers (hub fan-out, agent pool).
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

func (e *Engine) now() time.Time {
	return e.nowFn()
}

func (e *Engine) notify(gameID, scope string) {
	if e.notifier != nil {
		e.notifier.Refresh(gameID, scope)
	}
}

func (e *Engine) notifyTeam(gameID string, team player.Team, scope string) {
	if e.notifier != nil {
		e.notifier.RefreshTeam(gameID, team, scope)
	}
}

// persist runs a write-through off the submission path. Storage failures
// are logged, never surfaced to the player.
func (e *Engine) persist(what string, fn func(ctx context.Context) error) {
	if e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Error("persist " + what + ": " + err.Error())
		}
	}()
}

// gameByID fetches a registered game.
func (e *Engine) gameByID(gameID string) (*gameState, bool) {
	e.mu.RLock()
	gs, ok := e.games[gameID]
	e.mu.RUnlock()
	return gs, ok
}

// activeByScope fetches the scope's current game, finished or not.
func (e *Engine) activeByScope(scope string) (*gameState, bool) {
	e.mu.RLock()
	id, ok := e.scopes[scope]
	var gs *gameState
	if ok {
		gs = e.games[id]
	}
	e.mu.RUnlock()
	if gs == nil {
		return nil, false
	}
	return gs, true
}

// GameView is the client-facing game snapshot.
type GameView struct {
	Game
	RoleCounts  RoleCounts `json:"role_counts"`
	PlayerCount int        `json:"player_count"`
	HumanCount  int        `json:"human_count"`
	AgentCount  int        `json:"agent_count"`
	SpeedID     string     `json:"speed"`
}

func (gs *gameState) viewLocked() *GameView {
	v := &GameView{
		Game:        *gs.game,
		PlayerCount: len(gs.players),
		HumanCount:  gs.countKind(player.KindHuman),
		AgentCount:  gs.countKind(player.KindAgent),
		SpeedID:     gs.game.Speed.ID,
	}
	if gs.game.Status != StatusPreparing {
		v.RoleCounts = gs.roleCounts()
	}
	return v
}

// CurrentGame returns the scope's current game, or nil when the scope has
// never hosted one or the last one was cancelled.
func (e *Engine) CurrentGame(scope string) *GameView {
	gs, ok := e.activeByScope(scope)
	if !ok {
		return nil
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.viewLocked()
}

// GameByID returns the snapshot of one game regardless of scope.
func (e *Engine) GameByID(gameID string) (*GameView, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.viewLocked(), nil
}

// AgentSeat identifies one AI participant for the agent pool.
type AgentSeat struct {
	PlayerID   string
	ResidentID string
	Name       string
	IsAlive    bool
}

// AgentSeats returns the AI participants of a game in join order. Only
// the in-process agent pool calls this; it never crosses the API surface.
func (e *Engine) AgentSeats(gameID string) []AgentSeat {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	var out []AgentSeat
	for _, p := range gs.orderedPlayers() {
		if p.Kind != player.KindAgent {
			continue
		}
		out = append(out, AgentSeat{
			PlayerID:   p.ID,
			ResidentID: p.ResidentID,
			Name:       p.Name,
			IsAlive:    p.IsAlive,
		})
	}
	return out
}

// PlayerView is the redacted roster entry. Roles appear only after
// elimination or game end.
type PlayerView struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Kind            player.Kind `json:"kind"`
	IsAlive         bool        `json:"is_alive"`
	EliminatedRound int         `json:"eliminated_round,omitempty"`
	RevealedRole    string      `json:"revealed_role,omitempty"`
	RevealedType    string      `json:"revealed_type,omitempty"`
}

// Players returns the redacted roster in join order.
func (e *Engine) Players(gameID string) ([]PlayerView, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	finished := gs.game.Status == StatusFinished
	out := make([]PlayerView, 0, len(gs.joinOrder))
	for _, p := range gs.orderedPlayers() {
		pv := PlayerView{
			ID:              p.ID,
			Name:            p.Name,
			Kind:            p.Kind,
			IsAlive:         p.IsAlive,
			EliminatedRound: p.EliminatedRound,
		}
		if finished || p.Revealed() {
			pv.RevealedRole = string(p.Role)
			pv.RevealedType = string(p.Kind)
		}
		out = append(out, pv)
	}
	return out, nil
}

// Events returns the game's audit timeline.
func (e *Engine) Events(gameID string) ([]events.GameEvent, error) {
	if _, ok := e.gameByID(gameID); !ok {
		return nil, ErrNotFound
	}
	return e.eventLog.GetByGame(gameID), nil
}

// RoleView is the private per-player state returned by MyRole.
type RoleView struct {
	Role                 player.Role     `json:"role"`
	Team                 player.Team     `json:"team"`
	IsAlive              bool            `json:"is_alive"`
	Teammates            []string        `json:"teammates,omitempty"`             // phantom names, phantoms only
	InvestigationResults []Investigation `json:"investigation_results,omitempty"` // oracle only
}

// MyRole returns the caller's hidden role and private knowledge.
func (e *Engine) MyRole(gameID, residentID string) (*RoleView, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	p := gs.playerOf(residentID)
	if p == nil {
		return nil, ErrNotFound
	}
	if gs.game.Status == StatusPreparing {
		return nil, ErrStateConflict // roles are not dealt yet
	}

	rv := &RoleView{
		Role:    p.Role,
		Team:    p.Team,
		IsAlive: p.IsAlive,
	}
	if p.Team == player.TeamPhantoms {
		for _, mate := range gs.orderedPlayers() {
			if mate.Team == player.TeamPhantoms && mate.ID != p.ID {
				rv.Teammates = append(rv.Teammates, mate.Name)
			}
		}
	}
	if p.Role == player.RoleOracle {
		rv.InvestigationResults = append(rv.InvestigationResults, gs.investigations[p.ID]...)
	}
	return rv, nil
}

// SubmitNightAction validates and records one night action. Resubmission
// before phase expiry overwrites the pending action; after expiry the
// submission is rejected, never applied.
func (e *Engine) SubmitNightAction(gameID, residentID string, typ ActionType, targetID string) error {
	gs, ok := e.gameByID(gameID)
	if !ok {
		metrics.Get().RecordAction(false)
		return ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if err := e.validateNightActionLocked(gs, residentID, typ, targetID); err != nil {
		metrics.Get().RecordAction(false)
		return err
	}

	actor := gs.playerOf(residentID)
	round := gs.game.CurrentRound
	gs.seq++
	action := &NightAction{
		Round:       round,
		ActorID:     actor.ID,
		Type:        typ,
		TargetID:    targetID,
		SubmittedAt: e.now(),
		seq:         gs.seq,
	}
	gs.roundActions(round)[actor.ID] = action
	metrics.Get().RecordAction(true)
	e.logger.Event("NIGHT_ACTION", actor.ID, string(typ)+" -> "+targetID)

	// Copy before the lock drops; the action map mutates on resubmission.
	saved := *action
	e.persist("night action", func(ctx context.Context) error {
		return e.store.SaveAction(ctx, gameID, &saved)
	})

	gs.allSubmitted = e.allNightSubmittedLocked(gs)
	return nil
}

func (e *Engine) validateNightActionLocked(gs *gameState, residentID string, typ ActionType, targetID string) error {
	if gs.game.Status != StatusNight {
		return ErrValidation
	}
	if !e.now().Before(gs.game.PhaseEndsAt) {
		return ErrStateConflict // phase already expired; resolution owns this round
	}

	actor := gs.playerOf(residentID)
	if actor == nil {
		return ErrNotFound
	}
	if !actor.IsAlive {
		return ErrStateConflict
	}
	if roleForAction(typ) != actor.Role {
		return ErrValidation
	}

	target, ok := gs.players[targetID]
	if !ok || !target.IsAlive {
		return ErrValidation
	}
	// Self-targeting: only the guardian may shield itself.
	if target.ID == actor.ID && typ != ActionProtect {
		return ErrValidation
	}
	// Phantoms never attack their own team.
	if typ == ActionAttack && target.Team == player.TeamPhantoms {
		return ErrValidation
	}
	return nil
}

func roleForAction(typ ActionType) player.Role {
	switch typ {
	case ActionAttack:
		return player.RolePhantom
	case ActionInvestigate:
		return player.RoleOracle
	case ActionProtect:
		return player.RoleGuardian
	case ActionIdentify:
		return player.RoleDebugger
	}
	return ""
}

// allNightSubmittedLocked reports whether every eligible night actor has a
// pending action this round.
func (e *Engine) allNightSubmittedLocked(gs *gameState) bool {
	pending := gs.roundActions(gs.game.CurrentRound)
	for _, p := range gs.nightEligible() {
		if _, ok := pending[p.ID]; !ok {
			return false
		}
	}
	return true
}

// SubmitVote validates and records one day vote.
func (e *Engine) SubmitVote(gameID, residentID, targetID, reason string) error {
	gs, ok := e.gameByID(gameID)
	if !ok {
		metrics.Get().RecordVote(false)
		return ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.game.Status != StatusDay {
		metrics.Get().RecordVote(false)
		return ErrValidation
	}
	if !e.now().Before(gs.game.PhaseEndsAt) {
		metrics.Get().RecordVote(false)
		return ErrStateConflict
	}

	voter := gs.playerOf(residentID)
	if voter == nil {
		metrics.Get().RecordVote(false)
		return ErrNotFound
	}
	if !voter.IsAlive {
		metrics.Get().RecordVote(false)
		return ErrStateConflict
	}

	target, ok := gs.players[targetID]
	if !ok || !target.IsAlive || target.ID == voter.ID {
		metrics.Get().RecordVote(false)
		return ErrValidation
	}

	round := gs.game.CurrentRound
	vote := &DayVote{
		Round:       round,
		VoterID:     voter.ID,
		TargetID:    targetID,
		Reason:      strings.TrimSpace(reason),
		SubmittedAt: e.now(),
	}
	gs.roundVotes(round)[voter.ID] = vote
	metrics.Get().RecordVote(true)
	e.logger.Event("DAY_VOTE", voter.ID, "voted "+targetID)

	saved := *vote
	e.persist("day vote", func(ctx context.Context) error {
		return e.store.SaveVote(ctx, gameID, &saved)
	})

	gs.allSubmitted = e.allVotesSubmittedLocked(gs)
	e.notify(gameID, RefreshVotes)
	return nil
}

func (e *Engine) allVotesSubmittedLocked(gs *gameState) bool {
	cast := gs.roundVotes(gs.game.CurrentRound)
	for _, p := range gs.livingPlayers() {
		if _, ok := cast[p.ID]; !ok {
			return false
		}
	}
	return true
}

// TallyEntry is one row of the running day-vote tally.
type TallyEntry struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Votes      int    `json:"votes"`
}

// TallyView is the live tally plus turnout, computable at any time during
// the day phase.
type TallyView struct {
	Tally      []TallyEntry `json:"tally"`
	TotalVoted int          `json:"total_voted"`
	TotalAlive int          `json:"total_alive"`
}

// VoteTally returns the running tally for the current round. Votes from
// since-eliminated voters are void and not counted.
func (e *Engine) VoteTally(gameID string) (*TallyView, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.tallyLocked(), nil
}

func (gs *gameState) tallyLocked() *TallyView {
	counts := make(map[string]int)
	voted := 0
	for voterID, v := range gs.roundVotes(gs.game.CurrentRound) {
		voter := gs.players[voterID]
		if voter == nil || !voter.IsAlive {
			continue // void
		}
		counts[v.TargetID]++
		voted++
	}

	view := &TallyView{
		Tally:      make([]TallyEntry, 0, len(counts)),
		TotalVoted: voted,
		TotalAlive: len(gs.livingPlayers()),
	}
	for _, id := range gs.joinOrder {
		if n, ok := counts[id]; ok {
			view.Tally = append(view.Tally, TallyEntry{
				TargetID:   id,
				TargetName: gs.players[id].Name,
				Votes:      n,
			})
		}
	}
	return view
}

// PhantomChat returns the phantom channel. Phantom-team members only, and
// only while the game is running.
func (e *Engine) PhantomChat(gameID, residentID string) ([]ChatMessage, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if err := gs.chatAccessLocked(residentID); err != nil {
		return nil, err
	}
	out := make([]ChatMessage, len(gs.chat))
	copy(out, gs.chat)
	return out, nil
}

// SendPhantomChat appends a message to the phantom channel.
func (e *Engine) SendPhantomChat(gameID, residentID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrValidation
	}

	gs, ok := e.gameByID(gameID)
	if !ok {
		return ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if err := gs.chatAccessLocked(residentID); err != nil {
		return err
	}

	sender := gs.playerOf(residentID)
	msg := ChatMessage{
		ID:         uuid.NewString(),
		GameID:     gameID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Message:    text,
		CreatedAt:  e.now(),
	}
	gs.chat = append(gs.chat, msg)
	e.persist("phantom chat", func(ctx context.Context) error {
		return e.store.SaveChat(ctx, &msg)
	})
	e.notifyTeam(gameID, player.TeamPhantoms, RefreshPhantomChat)
	return nil
}

func (gs *gameState) chatAccessLocked(residentID string) error {
	if gs.game.Status == StatusPreparing || gs.game.Status == StatusFinished {
		return ErrStateConflict
	}
	p := gs.playerOf(residentID)
	if p == nil {
		return ErrNotFound
	}
	if p.Team != player.TeamPhantoms {
		return ErrNotAuthorized
	}
	return nil
}

// IsPhantom reports whether a player sits on the phantom team. Used by the
// hub to route phantom_chat refreshes.
func (e *Engine) IsPhantom(gameID, playerID string) bool {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return false
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p := gs.players[playerID]
	return p != nil && p.Team == player.TeamPhantoms
}

// Cancel voids the game and all in-flight state. Allowed for the creator,
// the last living human participant, or anyone when no humans joined.
func (e *Engine) Cancel(gameID, residentID string) error {
	e.mu.Lock()
	gs, ok := e.games[gameID]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}

	// Same lock as resolution: a cancel never races an in-flight resolve.
	gs.mu.Lock()
	if gs.game.Status == StatusFinished {
		gs.mu.Unlock()
		e.mu.Unlock()
		return ErrStateConflict
	}
	if !gs.canCancelLocked(residentID) {
		gs.mu.Unlock()
		e.mu.Unlock()
		return ErrNotAuthorized
	}

	gs.cancelled = true
	round := gs.game.CurrentRound
	delete(e.games, gameID)
	if e.scopes[gs.game.Scope] == gameID {
		delete(e.scopes, gs.game.Scope)
	}
	gs.mu.Unlock()
	e.mu.Unlock()

	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gameID,
		Timestamp: e.now(),
		Type:      events.EventTypeGameCancelled,
		ActorID:   residentID,
		Round:     round,
		Message:   "Game cancelled",
	})
	e.persist("cancel game", func(ctx context.Context) error {
		return e.store.DeleteGame(ctx, gameID)
	})
	e.logger.Event("GAME_CANCELLED", residentID, gameID)
	e.notify(gameID, RefreshGame)
	return nil
}

func (gs *gameState) canCancelLocked(residentID string) bool {
	if residentID == gs.game.CreatorID {
		return true
	}
	livingHumans := 0
	var lastHuman *player.Player
	anyHumans := false
	for _, p := range gs.players {
		if p.Kind != player.KindHuman {
			continue
		}
		anyHumans = true
		if p.IsAlive {
			livingHumans++
			lastHuman = p
		}
	}
	if !anyHumans {
		return true // all-AI game, any authenticated resident may cancel
	}
	return livingHumans == 1 && lastHuman.ResidentID == residentID
}
