package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/domain/rules"
	"github.com/phantom-night/server/internal/events"
)

// agentNames seeds the AI fill. Cycled with a numeric suffix when a
// roster needs more than the list holds.
var agentNames = []string{
	"Vesper", "Morrow", "Quill", "Sable", "Larkin", "Ondine", "Calder",
	"Isolde", "Fenwick", "Mireille", "Oswin", "Thessaly", "Branoc", "Elowen",
}

// maxHumans caps human joiners so the AI fill can still strictly
// outnumber them at start.
func maxHumans(maxPlayers int) int {
	return (maxPlayers - 1) / 2
}

// CreateLobby opens a new game in preparing state with the caller as
// creator and first joiner. At most one non-finished game per scope.
func (e *Engine) CreateLobby(scope, residentID, residentName string, maxPlayers int, speedID string) (*GameView, error) {
	if maxPlayers < rules.MinPlayers || maxPlayers > rules.MaxPlayers {
		return nil, ErrValidation
	}

	e.mu.Lock()
	if currentID, ok := e.scopes[scope]; ok {
		if current := e.games[currentID]; current != nil {
			current.mu.Lock()
			running := current.game.Status != StatusFinished
			current.mu.Unlock()
			if running {
				e.mu.Unlock()
				return nil, ErrStateConflict
			}
		}
	}

	e.seqs[scope]++
	g := &Game{
		ID:         uuid.NewString(),
		Scope:      scope,
		CreatorID:  residentID,
		Status:     StatusPreparing,
		GameNumber: e.seqs[scope],
		MaxPlayers: maxPlayers,
		Speed:      rules.PresetByID(speedID),
		CreatedAt:  e.now(),
	}
	gs := newGameState(g)
	creator := player.NewPlayer(uuid.NewString(), g.ID, residentID, residentName, player.KindHuman)
	gs.addPlayer(creator)

	e.games[g.ID] = gs
	e.scopes[scope] = g.ID

	// Snapshot before releasing the registry lock; the write-through
	// goroutine must never read live game state.
	e.persistGame(g)
	e.persistPlayer(creator)
	e.mu.Unlock()
	e.logger.Event("LOBBY_CREATED", residentID, g.ID)
	e.notify(g.ID, RefreshGame)

	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.viewLocked(), nil
}

// LobbyView is one matchmaking listing.
type LobbyView struct {
	GameView
	CreatorID string `json:"creator_id"`
}

// ListLobbies returns every game still in preparing state.
func (e *Engine) ListLobbies() []LobbyView {
	e.mu.RLock()
	states := make([]*gameState, 0, len(e.games))
	for _, gs := range e.games {
		states = append(states, gs)
	}
	e.mu.RUnlock()

	var out []LobbyView
	for _, gs := range states {
		gs.mu.Lock()
		if gs.game.Status == StatusPreparing {
			out = append(out, LobbyView{GameView: *gs.viewLocked(), CreatorID: gs.game.CreatorID})
		}
		gs.mu.Unlock()
	}
	return out
}

// JoinLobby adds a human participant to a preparing game.
func (e *Engine) JoinLobby(gameID, residentID, residentName string) error {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.game.Status != StatusPreparing {
		return ErrAlreadyStarted
	}
	if gs.playerOf(residentID) != nil {
		return ErrStateConflict
	}
	if gs.countKind(player.KindHuman) >= maxHumans(gs.game.MaxPlayers) {
		return ErrLobbyFull
	}

	p := player.NewPlayer(uuid.NewString(), gameID, residentID, residentName, player.KindHuman)
	gs.addPlayer(p)
	e.persistPlayer(p)
	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gameID,
		Timestamp: e.now(),
		Type:      events.EventTypePlayerJoined,
		ActorID:   p.ID,
		Message:   residentName + " joined the lobby",
	})
	e.notify(gameID, RefreshPlayers)
	return nil
}

// LeaveLobby removes a participant from a preparing game. When the
// creator leaves, creatorship passes to the earliest remaining joiner;
// an emptied lobby is torn down.
func (e *Engine) LeaveLobby(gameID, residentID string) error {
	e.mu.Lock()
	gs, ok := e.games[gameID]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}

	gs.mu.Lock()
	if gs.game.Status != StatusPreparing {
		gs.mu.Unlock()
		e.mu.Unlock()
		return ErrStateConflict
	}
	p := gs.playerOf(residentID)
	if p == nil {
		gs.mu.Unlock()
		e.mu.Unlock()
		return ErrNotFound
	}

	gs.removePlayer(p)
	emptied := len(gs.players) == 0
	if emptied {
		gs.cancelled = true
		delete(e.games, gameID)
		if e.scopes[gs.game.Scope] == gameID {
			delete(e.scopes, gs.game.Scope)
		}
	} else if gs.game.CreatorID == residentID {
		gs.game.CreatorID = gs.players[gs.joinOrder[0]].ResidentID
	}
	name := p.Name
	gs.mu.Unlock()
	e.mu.Unlock()

	if emptied {
		e.persist("delete empty lobby", func(ctx context.Context) error {
			return e.store.DeleteGame(ctx, gameID)
		})
		return nil
	}
	leftID := p.ID
	e.persist("leave lobby", func(ctx context.Context) error {
		return e.store.DeletePlayer(ctx, leftID)
	})

	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gameID,
		Timestamp: e.now(),
		Type:      events.EventTypePlayerLeft,
		ActorID:   p.ID,
		Message:   name + " left the lobby",
	})
	e.notify(gameID, RefreshPlayers)
	return nil
}

// StartGame finalizes the roster, fills AI slots, deals roles and enters
// round 1 (night). Creator only.
func (e *Engine) StartGame(gameID, residentID string) (*GameView, error) {
	gs, ok := e.gameByID(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.game.Status != StatusPreparing {
		return nil, ErrAlreadyStarted
	}
	if gs.game.CreatorID != residentID {
		return nil, ErrNotCreator
	}

	humans := gs.countKind(player.KindHuman)
	if humans == 0 && !e.allowAllAI {
		return nil, ErrInsufficientPlayers
	}

	// Fill the remaining slots with agents. AI must strictly outnumber
	// humans; the join cap makes this hold for any legal roster.
	aiCount := gs.game.MaxPlayers - humans
	if aiCount <= humans {
		return nil, ErrInsufficientPlayers
	}
	for i := 0; i < aiCount; i++ {
		name := agentNames[i%len(agentNames)]
		if i >= len(agentNames) {
			name = name + "-2"
		}
		agent := player.NewPlayer(uuid.NewString(), gameID, "agent:"+uuid.NewString(), name, player.KindAgent)
		gs.addPlayer(agent)
	}

	roster := gs.orderedPlayers()
	if _, err := rules.Assign(roster); err != nil {
		return nil, ErrInsufficientPlayers
	}

	now := e.now()
	gs.game.Status = StatusNight
	gs.game.CurrentRound = 1
	gs.game.StartedAt = now
	gs.game.PhaseEndsAt = now.Add(gs.game.Speed.NightDuration)
	gs.allSubmitted = false

	e.persistGame(gs.game)
	for _, p := range roster {
		e.persistPlayer(p)
	}

	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gameID,
		Timestamp: now,
		Type:      events.EventTypeGameStart,
		Round:     1,
		Message:   "The game begins. Phantoms stir in the dark.",
	})
	e.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		GameID:    gameID,
		Timestamp: now,
		Type:      events.EventTypeNightStart,
		Round:     1,
		Phase:     events.PhaseNight,
		Message:   "Night 1 falls.",
	})
	e.logger.Event("GAME_STARTED", residentID, gameID)
	e.notify(gameID, RefreshPhaseChange)
	e.notify(gameID, RefreshGame)
	e.notify(gameID, RefreshPlayers)
	e.notify(gameID, RefreshEvents)

	return gs.viewLocked(), nil
}
