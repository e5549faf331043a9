package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"promptkit/internal/render"
	"promptkit/internal/server/handlers"
	"promptkit/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Documents arrive whole in every update.
	maxMessageSize = 4 * 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server binds to localhost by default
	},
}

// Client is one websocket connection and its render session.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	connectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// session is only touched from the read loop.
	session *render.Session
}

// NewClient creates a new client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          uuid.New().String(),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Client) close() {
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

// readPump reads messages until the connection fails. Renders run inline,
// so a session never sees two updates at once.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
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
				logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn().Err(err).Str("client_id", c.id).Msg("Failed to parse WebSocket message")
		c.sendError("", CodeInvalidMessage, "failed to parse message")
		return
	}

	switch msg.Type {
	case TypePing:
		c.enqueue(WSMessage{Type: TypePong, ID: msg.ID})
	case TypeUpdate:
		c.handleUpdate(msg)
	default:
		c.sendError(msg.ID, CodeInvalidMessage, "unknown message type: "+msg.Type)
	}
}

// handleUpdate pumps the request into the session and sends the new
// prompt. A rejected request leaves the previous document in place.
func (c *Client) handleUpdate(msg WSMessage) {
	req := msg.Request
	if req == nil {
		c.sendError(msg.ID, CodeInvalidRequest, "update requires a request")
		return
	}
	if err := req.Validate(); err != nil {
		c.sendError(msg.ID, CodeInvalidRequest, err.Error())
		return
	}

	if c.session == nil {
		session, err := render.NewSession(c.hub.tok)
		if err != nil {
			c.sendError(msg.ID, CodeRenderFailed, err.Error())
			return
		}
		c.session = session
	}

	events, opts := req.Prepare(c.hub.defaults, c.hub.charsPerToken)
	if err := c.session.Update(c.ctx, events...); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.sendError(msg.ID, CodeInvalidRequest, err.Error())
		return
	}

	res := c.session.Render(c.ctx, opts)
	c.hub.record(res, req.Path)

	switch res.Status {
	case render.StatusOK:
		resp := handlers.NewRenderResponse(res)
		c.enqueue(WSMessage{Type: TypePrompt, ID: msg.ID, Result: &resp})
	case render.StatusCancelled:
	default:
		logger.Warn().Err(res.Err).Str("client_id", c.id).Msg("render failed")
		c.sendError(msg.ID, CodeRenderFailed, res.Err.Error())
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) enqueue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Str("client_id", c.id).Msg("Failed to marshal WebSocket message")
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn().Str("client_id", c.id).Str("type", msg.Type).Msg("WebSocket send buffer full, message dropped")
	}
}

func (c *Client) sendError(id, code, message string) {
	c.enqueue(WSMessage{Type: TypeError, ID: id, Code: code, Message: message})
}

// ServeWs upgrades the request and starts the client's pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(hub, conn)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
