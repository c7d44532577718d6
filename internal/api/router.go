package api

import (
	"errors"
	"net/http"
	"strconv"

	"tet-service/internal/middleware"
	"tet-service/internal/service"
	"tet-service/internal/service/game"
	roomSvc "tet-service/internal/service/room"
	"tet-service/internal/ws"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Room, services.Game)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/tetService/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.GET("/wallet", handler.GetWallet)
			userGroup.GET("/billing", handler.GetBillingLogs)
		}

		roomGroup := v1.Group("/rooms")
		roomGroup.Use(middleware.AuthRequired())
		{
			roomGroup.GET("", handler.ListRooms)
			roomGroup.POST("", handler.CreateRoom)
			roomGroup.GET("/:roomId", handler.GetRoom)
			roomGroup.POST("/:roomId/join", handler.JoinRoom)
			roomGroup.POST("/:roomId/leave", handler.LeaveRoom)
			roomGroup.POST("/:roomId/ready", handler.MarkReady)
			roomGroup.POST("/:roomId/start", handler.StartHand)
			roomGroup.POST("/:roomId/play", handler.SubmitPlay)
			roomGroup.POST("/:roomId/pass", handler.SubmitPass)
			roomGroup.GET("/:roomId/state", handler.GetSnapshot)
		}
	}

	r.GET("/ws/room/:roomId", wsHandler.HandleRoomWS)
}

type registerBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname"`
}

type loginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createRoomBody struct {
	Name       string `json:"name" binding:"required"`
	MaxPlayers int    `json:"maxPlayers" binding:"required,min=2,max=4"`
	StakeLevel string `json:"stakeLevel"`
}

type playBody struct {
	Cards []game.Card `json:"cards" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload")
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), body.Username, body.Password, body.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrUsernameTaken):
			response.Error(c, http.StatusConflict, "username already taken")
		case errors.Is(err, appErr.ErrInvalidCredentials):
			response.Error(c, http.StatusBadRequest, "invalid username or password")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to register")
		}
		return
	}
	response.Created(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to login")
		return
	}
	response.Success(c, result)
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.services.Auth.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, appErr.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "user not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load profile")
		return
	}
	response.Success(c, user)
}

func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	wallet, err := h.services.Wallet.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load wallet")
		return
	}
	response.Success(c, wallet)
}

func (h *Handler) GetBillingLogs(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)
	logs, total, err := h.services.Wallet.GetBillingLogs(c.Request.Context(), userID, page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load billing logs")
		return
	}
	response.Success(c, gin.H{"items": logs, "total": total})
}

func (h *Handler) ListRooms(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)
	result, err := h.services.Room.ListRooms(c.Request.Context(), c.Query("status"), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	response.Success(c, result)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var body createRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload")
		return
	}

	detail, err := h.services.Room.CreateRoom(c.Request.Context(), userID, roomSvc.CreateParams{
		Name:       body.Name,
		MaxPlayers: body.MaxPlayers,
		StakeLevel: body.StakeLevel,
	})
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Created(c, detail)
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	detail, err := h.services.Room.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	position, err := h.services.Room.JoinRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	// Invalidate any cached runtime so the new seat map is picked up.
	h.services.Game.DropRuntime(roomID)
	response.Success(c, gin.H{"position": position})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	if err := h.services.Room.LeaveRoom(c.Request.Context(), roomID, userID); err != nil {
		h.handleGameError(c, err)
		return
	}
	h.services.Game.DropRuntime(roomID)
	response.Success(c, nil)
}

func (h *Handler) MarkReady(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	if err := h.services.Room.SetReady(c.Request.Context(), roomID, userID, true); err != nil {
		h.handleGameError(c, err)
		return
	}
	state, err := h.services.Game.MarkReady(c.Request.Context(), roomID, userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) StartHand(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	state, err := h.services.Game.StartHand(c.Request.Context(), roomID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) SubmitPlay(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	var body playBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload")
		return
	}

	state, err := h.services.Game.SubmitPlay(c.Request.Context(), roomID, userID, body.Cards)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) SubmitPass(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	state, err := h.services.Game.SubmitPass(c.Request.Context(), roomID, userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	state, err := h.services.Game.GetSnapshot(c.Request.Context(), roomID, userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) handleGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrRoomNotFound):
		response.Error(c, http.StatusNotFound, "room not found")
	case errors.Is(err, appErr.ErrRoomFull):
		response.Error(c, http.StatusConflict, "room is full")
	case errors.Is(err, appErr.ErrRoomNotWaiting):
		response.Error(c, http.StatusConflict, "room is not accepting players")
	case errors.Is(err, appErr.ErrNotSeated), errors.Is(err, appErr.ErrRoomAccessDenied):
		response.Error(c, http.StatusForbidden, "not seated in this room")
	case errors.Is(err, appErr.ErrInvalidPlayerCount):
		response.Error(c, http.StatusBadRequest, "player count must be 2, 3 or 4")
	case errors.Is(err, appErr.ErrInsufficientPlayers):
		response.Error(c, http.StatusConflict, "not enough ready players")
	case errors.Is(err, appErr.ErrHandInProgress):
		response.Error(c, http.StatusConflict, "a hand is already in progress")
	case errors.Is(err, appErr.ErrNotYourTurn):
		response.Error(c, http.StatusConflict, "not your turn")
	case errors.Is(err, appErr.ErrInvalidHandReference):
		response.Error(c, http.StatusBadRequest, "cards are not in your hand")
	case errors.Is(err, appErr.ErrIllegalPlay):
		response.Error(c, http.StatusBadRequest, "play is not legal")
	case errors.Is(err, appErr.ErrIllegalPass):
		response.Error(c, http.StatusBadRequest, "cannot pass when you must lead")
	case errors.Is(err, appErr.ErrIncompleteHand):
		response.Error(c, http.StatusConflict, "no hand in progress")
	default:
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}

func getUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	userID, ok := val.(uuid.UUID)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func parseRoomID(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}

func queryInt(c *gin.Context, key string, defaultVal int) int {
	val, err := strconv.Atoi(c.Query(key))
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}
