package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tet-service/internal/service/game"
	"tet-service/internal/service/room"
	pkgAuth "tet-service/pkg/auth"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	roomSvc *room.Service
	gameSvc *game.Service
}

func NewHandler(roomSvc *room.Service, gameSvc *game.Service) *Handler {
	return &Handler{roomSvc: roomSvc, gameSvc: gameSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

func (h *Handler) HandleRoomWS(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.SubjectID

	if err := h.roomSvc.ValidateRoomAccess(c.Request.Context(), userID, roomID); err != nil {
		switch {
		case errors.Is(err, appErr.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case errors.Is(err, appErr.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, appErr.ErrRoomAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "room access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate room access"})
		}
		return
	}

	rt, err := h.gameSvc.GetRuntime(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, appErr.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("roomID", roomID.String()),
		zap.String("userID", userID.String()),
	)

	client := newClient(conn, userID, roomID, rt)
	client.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn      *websocket.Conn
	userID    uuid.UUID
	roomID    uuid.UUID
	rt        *game.RoomRuntime
	outbound  <-chan game.OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, userID, roomID uuid.UUID, rt *game.RoomRuntime) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		userID:    userID,
		roomID:    roomID,
		rt:        rt,
		outbound:  rt.Subscribe(userID),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

// readPump decodes actions and feeds them to the runtime. A disconnect only
// drops the subscription; the game itself keeps going.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.rt.Unsubscribe(c.userID)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("userID", c.userID.String()), zap.String("roomID", c.roomID.String()))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(game.OutgoingMessage{
				Type: "error",
				Data: gin.H{"errorKind": "bad_payload", "message": "invalid payload"},
			})
			continue
		}
		if incoming.Type == "" {
			continue
		}

		if err := c.rt.HandleAction(c.userID, incoming.Type, incoming.Data); err != nil {
			// Rejections go only to the acting player.
			c.safeWrite(game.OutgoingMessage{
				Type: "error",
				Data: gin.H{"errorKind": errorKind(err), "message": err.Error()},
			})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("userID", c.userID.String()), zap.String("roomID", c.roomID.String()))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg game.OutgoingMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.String("userID", c.userID.String()), zap.String("roomID", c.roomID.String()))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, appErr.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, appErr.ErrInvalidHandReference):
		return "invalid_hand_reference"
	case errors.Is(err, appErr.ErrIllegalPlay):
		return "illegal_play"
	case errors.Is(err, appErr.ErrIllegalPass):
		return "illegal_pass"
	case errors.Is(err, appErr.ErrInsufficientPlayers):
		return "insufficient_players"
	case errors.Is(err, appErr.ErrHandInProgress):
		return "hand_in_progress"
	case errors.Is(err, appErr.ErrRoomAccessDenied):
		return "room_access_denied"
	default:
		return "action_failed"
	}
}
