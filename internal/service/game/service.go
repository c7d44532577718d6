package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"tet-service/internal/config"
	"tet-service/internal/model"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns one RoomRuntime per active room. Runtimes are created lazily
// from the room row and kept in memory; rooms never share mutable state.
type Service struct {
	db  *gorm.DB
	cfg config.GameConfig

	runtimes sync.Map // roomID -> *RoomRuntime
}

func NewService(db *gorm.DB, cfg config.GameConfig) *Service {
	return &Service{db: db, cfg: cfg}
}

// GetRuntime returns the runtime for a room, loading the room and its seats
// on first use.
func (s *Service) GetRuntime(ctx context.Context, roomID uuid.UUID) (*RoomRuntime, error) {
	if v, ok := s.runtimes.Load(roomID); ok {
		return v.(*RoomRuntime), nil
	}

	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRoomNotFound
		}
		return nil, err
	}

	// A "playing" row with no live runtime is a stale leftover, e.g. after a
	// restart. The in-memory hand is gone, so the room reverts to waiting
	// before the runtime is rebuilt.
	if room.Status == "playing" {
		logger.Log.Warn("resetting stale playing room",
			zap.String("roomID", roomID.String()),
		)
		if err := s.db.WithContext(ctx).Model(&model.Room{}).
			Where("id = ?", roomID).
			Updates(map[string]interface{}{"status": "waiting", "updated_at": time.Now()}).Error; err != nil {
			return nil, err
		}
		room.Status = "waiting"
	}

	var seats []model.RoomSeat
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("position").
		Find(&seats).Error; err != nil {
		return nil, err
	}

	betUnit := s.BetUnitForLevel(ctx, room.StakeLevel)
	rt := newRoomRuntime(room, seats, s.cfg, betUnit, s.handleRuntimeStart, s.handleRuntimeFinish)

	actual, _ := s.runtimes.LoadOrStore(roomID, rt)
	return actual.(*RoomRuntime), nil
}

// DropRuntime tears a room's runtime down so the next access rebuilds it
// from the persisted room. A runtime with a hand in progress is never
// dropped: the GameState it owns is the only copy.
func (s *Service) DropRuntime(roomID uuid.UUID) {
	v, ok := s.runtimes.Load(roomID)
	if !ok {
		return
	}
	rt := v.(*RoomRuntime)
	rt.mu.Lock()
	playing := rt.phase == PhasePlaying
	rt.mu.Unlock()
	if playing {
		return
	}
	s.runtimes.Delete(roomID)
}

// StartHand deals a new hand in the room. Fails with ErrInsufficientPlayers
// when fewer than the configured minimum are seated and ready.
func (s *Service) StartHand(ctx context.Context, roomID uuid.UUID) (RoomState, error) {
	rt, err := s.GetRuntime(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	return rt.StartHand()
}

// SubmitPlay runs classification, turn-legality and beat checks, then applies
// the play. Any failure is a no-op on room state.
func (s *Service) SubmitPlay(ctx context.Context, roomID, playerID uuid.UUID, cards []Card) (RoomState, error) {
	rt, err := s.GetRuntime(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	return rt.SubmitPlay(playerID, cards)
}

func (s *Service) SubmitPass(ctx context.Context, roomID, playerID uuid.UUID) (RoomState, error) {
	rt, err := s.GetRuntime(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	return rt.SubmitPass(playerID)
}

// GetSnapshot returns the last fully-applied state for a reconnecting client.
func (s *Service) GetSnapshot(ctx context.Context, roomID, viewerID uuid.UUID) (RoomState, error) {
	rt, err := s.GetRuntime(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	return rt.Snapshot(viewerID), nil
}

// MarkReady flips a seat's ready flag; the hand auto-starts once every seated
// player is ready.
func (s *Service) MarkReady(ctx context.Context, roomID, playerID uuid.UUID) (RoomState, error) {
	rt, err := s.GetRuntime(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	if err := rt.HandleAction(playerID, "ready", nil); err != nil {
		return RoomState{}, err
	}
	return rt.Snapshot(playerID), nil
}

func (s *Service) handleRuntimeStart(rt *RoomRuntime) {
	err := s.db.Model(&model.Room{}).
		Where("id = ?", rt.roomID).
		Updates(map[string]interface{}{"status": "playing", "updated_at": time.Now()}).Error
	if err != nil {
		logger.Log.Error("failed to mark room playing",
			zap.String("roomID", rt.roomID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) handleRuntimeFinish(rt *RoomRuntime, result *GameResult) {
	ctx := context.Background()
	if err := s.FinalizeHand(ctx, result); err != nil {
		logger.Log.Error("failed to persist finished hand",
			zap.String("roomID", rt.roomID.String()),
			zap.Error(err),
		)
	}
}
