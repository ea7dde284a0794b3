package network

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phantom-night/server/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientCommand is an incoming frame from the client.
type ClientCommand struct {
	Type     string `json:"type"` // "subscribe", "phase_expired", "phantom_chat"
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id,omitempty"`
	Round    int    `json:"round,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Client represents one active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	residentID string
	// Set by the hub loop on subscribe; read only by the hub loop.
	gameID   string
	playerID string

	lastChat time.Time
}

// ServeWS upgrades an HTTP request and starts the client pumps. The
// caller has already authenticated residentID.
func ServeWS(hub *Hub, sendBuffer int, w http.ResponseWriter, r *http.Request, residentID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		residentID: residentID,
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps commands from the websocket connection to the engine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorf("websocket read: %v", err)
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Warn("failed to parse client command: " + err.Error())
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd ClientCommand) {
	switch cmd.Type {
	case "subscribe":
		c.hub.subscribe <- subRequest{client: c, gameID: cmd.GameID, playerID: cmd.PlayerID}

	case "phase_expired":
		// Client timers are hints only. The scheduler owns resolution;
		// this just surfaces validation feedback in the logs.
		if err := c.hub.api.PhaseExpiredHint(cmd.GameID, cmd.Round, cmd.Phase); err != nil {
			c.hub.logger.Warn("phase_expired hint rejected: " + err.Error())
		}

	case "phantom_chat":
		if time.Since(c.lastChat) < time.Second {
			c.hub.logger.Warn("chat rate limit hit for " + c.residentID)
			return
		}
		c.lastChat = time.Now()
		if err := c.hub.api.SendPhantomChat(cmd.GameID, c.residentID, cmd.Text); err != nil {
			c.hub.logger.Warn("phantom_chat rejected: " + err.Error())
		}

	default:
		c.hub.logger.Warn("unknown client command type: " + cmd.Type)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
