package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"party-service/internal/middleware"
	"party-service/internal/service/bus"
	"party-service/internal/service/mafia"
	pkgAuth "party-service/pkg/auth"
	appErr "party-service/pkg/errors"
	"party-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	pingEvery    = 25 * time.Second
	replyBuffer  = 8
)

type Handler struct {
	engine *mafia.Engine
	bus    bus.Bus
}

func NewHandler(engine *mafia.Engine, b bus.Bus) *Handler {
	return &Handler{engine: engine, bus: b}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleSessionWS streams the session broadcast plus the caller's private
// topic, and submits inbound {"type", "data"} frames as actions.
func (h *Handler) HandleSessionWS(c *gin.Context) {
	sessionID := c.Param("id")

	token, err := middleware.ExtractToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParsePlayerToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.SessionID != sessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token is for another session"})
		return
	}

	if _, err := h.engine.View(c.Request.Context(), sessionID, claims.PlayerID); err != nil {
		if errors.Is(err, appErr.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.bus.Subscribe(ctx, bus.SessionTopic(sessionID), bus.PlayerTopic(sessionID, claims.PlayerID))
	if err != nil {
		cancel()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		sub.Close()
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("sessionID", sessionID),
		zap.String("playerID", claims.PlayerID),
	)

	cl := newClient(ctx, cancel, conn, h.engine, sub, sessionID, claims.PlayerID)
	cl.run()
}

type client struct {
	ctx       context.Context
	cancel    context.CancelFunc
	conn      *websocket.Conn
	engine    *mafia.Engine
	sub       *bus.Subscription
	sessionID string
	playerID  string
	replies   chan any
}

func newClient(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, engine *mafia.Engine, sub *bus.Subscription, sessionID, playerID string) *client {
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	return &client{
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		engine:    engine,
		sub:       sub,
		sessionID: sessionID,
		playerID:  playerID,
		replies:   make(chan any, replyBuffer),
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

type inbound struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type actionData struct {
	TargetID string         `json:"targetId"`
	Payload  map[string]any `json:"payload"`
	Text     string         `json:"text"`
}

func (c *client) readPump() {
	defer func() {
		c.cancel()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("sessionID", c.sessionID), zap.String("playerID", c.playerID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil || in.Type == "" {
			c.reply(gin.H{"type": "error", "data": gin.H{"message": "invalid payload"}})
			continue
		}
		var data actionData
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &data); err != nil {
				c.reply(gin.H{"type": "error", "data": gin.H{"message": "invalid action data"}})
				continue
			}
		}
		if data.Text != "" {
			if data.Payload == nil {
				data.Payload = map[string]any{}
			}
			data.Payload["text"] = data.Text
		}

		out, err := c.engine.SubmitAction(c.ctx, mafia.ActionRequest{
			ID:         in.ID,
			SessionID:  c.sessionID,
			PlayerID:   c.playerID,
			ActionType: mafia.ActionType(in.Type),
			TargetID:   data.TargetID,
			Payload:    data.Payload,
		})
		if err != nil {
			c.reply(gin.H{"type": "error", "data": gin.H{"message": err.Error(), "code": appErr.CodeOf(err)}})
			continue
		}
		c.reply(gin.H{"type": "action_result", "data": out})
	}
}

// reply waits for the write pump; an action result is never dropped while the
// connection is open.
func (c *client) reply(v any) {
	select {
	case c.replies <- v:
	case <-c.ctx.Done():
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		var msg any
		select {
		case m, ok := <-c.sub.C():
			if !ok {
				return
			}
			msg = m
		case r := <-c.replies:
			msg = r
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
			continue
		case <-c.ctx.Done():
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			logger.Log.Info("WS write error", zap.Error(err), zap.String("sessionID", c.sessionID), zap.String("playerID", c.playerID))
			return
		}
	}
}
