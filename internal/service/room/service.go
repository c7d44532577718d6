package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tet-service/internal/model"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/logger"
	"tet-service/pkg/utils/random"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	snapshotTTL  = 24 * time.Hour
	joinCodeSize = 6
)

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

type CreateParams struct {
	Name       string
	MaxPlayers int
	StakeLevel string
}

type Detail struct {
	Room  model.Room       `json:"room"`
	Seats []model.RoomSeat `json:"seats"`
}

type ListResult struct {
	Items []model.Room `json:"items"`
	Total int64        `json:"total"`
}

// CreateRoom creates the room with its empty seats and puts the host on the
// first seat.
func (s *Service) CreateRoom(ctx context.Context, hostID uuid.UUID, params CreateParams) (*Detail, error) {
	if params.MaxPlayers < 2 || params.MaxPlayers > 4 {
		return nil, appErr.ErrInvalidPlayerCount
	}
	if params.StakeLevel == "" {
		params.StakeLevel = "BAN1"
	}

	now := time.Now()
	room := model.Room{
		ID:             uuid.New(),
		Name:           params.Name,
		JoinCode:       random.Code(joinCodeSize),
		HostID:         hostID,
		MaxPlayers:     params.MaxPlayers,
		CurrentPlayers: 1,
		StakeLevel:     params.StakeLevel,
		Status:         "waiting",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	seats := make([]model.RoomSeat, 0, params.MaxPlayers)
	for pos := 0; pos < params.MaxPlayers; pos++ {
		seat := model.RoomSeat{RoomID: room.ID, Position: pos}
		if pos == 0 {
			host := hostID
			seat.PlayerID = &host
		}
		seats = append(seats, seat)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Create(&seats).Error
	})
	if err != nil {
		return nil, err
	}

	detail := &Detail{Room: room, Seats: seats}
	s.cacheSnapshot(ctx, detail)
	return detail, nil
}

func (s *Service) ListRooms(ctx context.Context, status string, page, size int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	query := s.db.WithContext(ctx).Model(&model.Room{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []model.Room
	if total > 0 {
		if err := query.
			Order("created_at DESC").
			Limit(size).
			Offset((page - 1) * size).
			Find(&items).Error; err != nil {
			return nil, err
		}
	}
	return &ListResult{Items: items, Total: total}, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID uuid.UUID) (*Detail, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRoomNotFound
		}
		return nil, err
	}

	var seats []model.RoomSeat
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("position").
		Find(&seats).Error; err != nil {
		return nil, err
	}
	return &Detail{Room: room, Seats: seats}, nil
}

// JoinRoom seats the player on the lowest free seat.
func (s *Service) JoinRoom(ctx context.Context, roomID, playerID uuid.UUID) (int, error) {
	detail, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return -1, err
	}
	if detail.Room.Status != "waiting" {
		return -1, appErr.ErrRoomNotWaiting
	}

	position := -1
	for i := range detail.Seats {
		seat := &detail.Seats[i]
		if seat.PlayerID != nil && *seat.PlayerID == playerID {
			return seat.Position, nil // already seated
		}
		if seat.PlayerID == nil && position == -1 {
			position = i
		}
	}
	if position == -1 {
		return -1, appErr.ErrRoomFull
	}

	seat := &detail.Seats[position]
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player := playerID
		if err := tx.Model(&model.RoomSeat{}).
			Where("id = ? AND player_id IS NULL", seat.ID).
			Update("player_id", player).Error; err != nil {
			return err
		}
		return tx.Model(&model.Room{}).
			Where("id = ?", roomID).
			Updates(map[string]interface{}{
				"current_players": gorm.Expr("current_players + 1"),
				"updated_at":      time.Now(),
			}).Error
	})
	if err != nil {
		return -1, err
	}

	logger.Log.Info("player joined room",
		zap.String("roomID", roomID.String()),
		zap.String("playerID", playerID.String()),
		zap.Int("position", seat.Position),
	)

	if refreshed, err := s.GetRoom(ctx, roomID); err == nil {
		s.cacheSnapshot(ctx, refreshed)
	}
	return seat.Position, nil
}

// LeaveRoom frees the player's seat. Leaving is rejected while a hand is in
// progress: the seat is bound to the live game until it settles.
func (s *Service) LeaveRoom(ctx context.Context, roomID, playerID uuid.UUID) error {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrRoomNotFound
		}
		return err
	}
	if room.Status == "playing" {
		return appErr.ErrHandInProgress
	}

	result := s.db.WithContext(ctx).Model(&model.RoomSeat{}).
		Where("room_id = ? AND player_id = ?", roomID, playerID).
		Updates(map[string]interface{}{"player_id": nil, "is_ready": false})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return appErr.ErrNotSeated
	}

	if err := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ? AND current_players > 0", roomID).
		Updates(map[string]interface{}{
			"current_players": gorm.Expr("current_players - 1"),
			"updated_at":      time.Now(),
		}).Error; err != nil {
		return err
	}

	if refreshed, err := s.GetRoom(ctx, roomID); err == nil {
		s.cacheSnapshot(ctx, refreshed)
	}
	return nil
}

func (s *Service) SetReady(ctx context.Context, roomID, playerID uuid.UUID, ready bool) error {
	result := s.db.WithContext(ctx).Model(&model.RoomSeat{}).
		Where("room_id = ? AND player_id = ?", roomID, playerID).
		Update("is_ready", ready)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return appErr.ErrNotSeated
	}
	return nil
}

// ValidateRoomAccess gates the websocket upgrade: only seated players may
// subscribe to a room's event stream.
func (s *Service) ValidateRoomAccess(ctx context.Context, userID, roomID uuid.UUID) error {
	if userID == uuid.Nil {
		return appErr.ErrUnauthorized
	}
	detail, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	for _, seat := range detail.Seats {
		if seat.PlayerID != nil && *seat.PlayerID == userID {
			return nil
		}
	}
	return appErr.ErrRoomAccessDenied
}

// cacheSnapshot keeps the latest room view in Redis so the lobby can serve
// reads without touching the database. Failures only cost freshness.
func (s *Service) cacheSnapshot(ctx context.Context, detail *Detail) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return
	}
	key := "room:" + detail.Room.ID.String()
	if err := s.rdb.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		logger.Log.Warn("failed to cache room snapshot",
			zap.String("roomID", detail.Room.ID.String()),
			zap.Error(err),
		)
	}
}
