// Package network carries the realtime push layer. The server never
// streams payloads: it pushes small refresh hints ("this slice changed,
// refetch it") and clients pull the new state over the REST API.
package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/phantom-night/server/internal/domain/player"
	"github.com/phantom-night/server/internal/platform/logger"
	"github.com/phantom-night/server/internal/platform/metrics"
)

// GameAPI is the slice of the engine the hub and its clients need.
type GameAPI interface {
	PhaseExpiredHint(gameID string, round int, phase string) error
	SendPhantomChat(gameID, residentID, text string) error
	IsPhantom(gameID, playerID string) bool
}

// Message is one push frame. Type is always "refresh" today; the scope
// tells the client which slice to refetch.
type Message struct {
	Type      string `json:"type"`
	Scope     string `json:"scope"`
	GameID    string `json:"game_id"`
	Timestamp int64  `json:"timestamp"`
}

// envelope is an outbound frame plus its routing constraints.
type envelope struct {
	gameID      string
	phantomOnly bool
	payload     []byte
}

type subRequest struct {
	client   *Client
	gameID   string
	playerID string
}

// Hub maintains the set of active clients and fans refresh hints out to
// the ones subscribed to each game.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	subscribe  chan subRequest
	mu         sync.Mutex
	api        GameAPI
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket hub. The engine API is attached
// later because the engine itself needs the hub as its notifier.
func NewHub(log *logger.Logger, broadcastBuffer int) *Hub {
	if broadcastBuffer <= 0 {
		broadcastBuffer = 64
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subRequest),
		logger:     log,
	}
}

// AttachAPI wires the engine in after construction. Must be called
// before Run.
func (h *Hub) AttachAPI(api GameAPI) {
	h.api = api
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
			}
			h.mu.Unlock()
		case sub := <-h.subscribe:
			h.mu.Lock()
			if h.clients[sub.client] {
				sub.client.gameID = sub.gameID
				sub.client.playerID = sub.playerID
			}
			h.mu.Unlock()
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.gameID != env.gameID {
			continue
		}
		if env.phantomOnly && !h.api.IsPhantom(env.gameID, client.playerID) {
			continue
		}
		select {
		case client.send <- env.payload:
			metrics.Get().RecordWSMessage(false)
		default:
			close(client.send)
			delete(h.clients, client)
			metrics.Get().RecordWSError()
			metrics.Get().RecordWSConnection(-1)
		}
	}
}

// Refresh implements engine.Notifier: every subscriber of the game gets
// the hint.
func (h *Hub) Refresh(gameID string, scope string) {
	h.push(gameID, scope, false)
}

// RefreshTeam implements engine.Notifier: phantom-team hints reach only
// phantom subscribers. Other teams have no private channel today.
func (h *Hub) RefreshTeam(gameID string, team player.Team, scope string) {
	h.push(gameID, scope, team == player.TeamPhantoms)
}

func (h *Hub) push(gameID, scope string, phantomOnly bool) {
	payload, err := json.Marshal(Message{
		Type:      "refresh",
		Scope:     scope,
		GameID:    gameID,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Errorf("failed to serialize refresh hint: %v", err)
		return
	}
	select {
	case h.broadcast <- envelope{gameID: gameID, phantomOnly: phantomOnly, payload: payload}:
	default:
		// Hub backlogged; clients will catch up on their next pull.
		metrics.Get().RecordWSError()
	}
}
