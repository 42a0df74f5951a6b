package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hubpsp-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes a user's coins, gems and progress whenever the engine
// reports a change, so game UIs can re-render without polling.
type WebSocketHandler struct {
	engine    *services.PlatformEngine
	persister *services.Persister
	logger    *zap.SugaredLogger
}

type Client struct {
	UserID string
	Conn   *websocket.Conn

	writeMu sync.Mutex
	// Notifications are coalesced: one pending tick is enough to send the latest state.
	ticks chan struct{}
	done  chan struct{}
}

type Message struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

func NewWebSocketHandler(engine *services.PlatformEngine, persister *services.Persister, logger *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{
		engine:    engine,
		persister: persister,
		logger:    logger,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("failed to upgrade to websocket", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		ticks:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	unsubscribe := h.engine.Subscribe(func() {
		select {
		case client.ticks <- struct{}{}:
		default:
		}
	})
	h.logger.Debugw("websocket client connected", "user_id", userID)

	defer func() {
		unsubscribe()
		close(client.done)
		conn.Close()
		h.logger.Debugw("websocket client disconnected", "user_id", userID)
	}()

	go h.writePump(client)

	h.sendState(client)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warnw("websocket error", "user_id", userID, "error", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "GET_STATE":
		h.sendState(client)
	}
}

func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-client.ticks:
			h.sendState(client)
		case <-ticker.C:
			client.writeMu.Lock()
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := client.Conn.WriteMessage(websocket.PingMessage, nil)
			client.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendState(client *Client) {
	state, err := stateView(h.engine, client.UserID)
	if err != nil {
		h.write(client, Message{
			Type:   "ERROR",
			UserID: client.UserID,
			Data:   gin.H{"error": err.Error()},
		})
		return
	}

	h.write(client, Message{
		Type:   "STATE_UPDATE",
		UserID: client.UserID,
		Data:   state,
	})
}

func (h *WebSocketHandler) sendPong(client *Client) {
	h.write(client, Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	})
}

func (h *WebSocketHandler) write(client *Client, msg Message) {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.Conn.WriteJSON(msg); err != nil {
		h.logger.Debugw("failed to write websocket message", "user_id", client.UserID, "type", msg.Type, "error", err)
	}
}
