package game

import (
	"context"
	"testing"
	"time"

	"tet-service/internal/config"
	"tet-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedRoom(t *testing.T, db *gorm.DB, status string, players []uuid.UUID) model.Room {
	t.Helper()
	room := model.Room{
		ID:             uuid.New(),
		Name:           "table",
		HostID:         players[0],
		MaxPlayers:     len(players),
		CurrentPlayers: len(players),
		StakeLevel:     "BAN1",
		Status:         status,
		CreatedAt:      time.Now(),
	}
	room.JoinCode = room.ID.String()[:6]
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("create room: %v", err)
	}
	for i := range players {
		p := players[i]
		seat := model.RoomSeat{RoomID: room.ID, Position: i, PlayerID: &p, IsReady: true}
		if err := db.Create(&seat).Error; err != nil {
			t.Fatalf("create seat: %v", err)
		}
	}
	return room
}

func waitForRoomStatus(t *testing.T, db *gorm.DB, roomID uuid.UUID, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		var room model.Room
		if err := db.First(&room, "id = ?", roomID).Error; err != nil {
			t.Fatalf("load room: %v", err)
		}
		if room.Status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("room status %q, want %q", room.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartHandPersistsPlayingStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, config.GameConfig{MinPlayers: 2})
	ctx := context.Background()

	players := []uuid.UUID{uuid.New(), uuid.New()}
	room := seedRoom(t, db, "waiting", players)

	if _, err := svc.StartHand(ctx, room.ID); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	waitForRoomStatus(t, db, room.ID, "playing")
}

func TestDropRuntimeKeepsLiveHand(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, config.GameConfig{MinPlayers: 2})
	ctx := context.Background()

	players := []uuid.UUID{uuid.New(), uuid.New()}
	room := seedRoom(t, db, "waiting", players)

	if _, err := svc.StartHand(ctx, room.ID); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// Seat churn drops runtimes; a live hand must survive it.
	svc.DropRuntime(room.ID)

	state, err := svc.GetSnapshot(ctx, room.ID, players[0])
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if state.Phase != PhasePlaying {
		t.Fatalf("live hand lost: phase %s", state.Phase)
	}
	if len(state.MyCards) != 26 {
		t.Fatalf("live hand lost: %d cards", len(state.MyCards))
	}
}

func TestStalePlayingRoomResetsToWaiting(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, config.GameConfig{MinPlayers: 2})
	ctx := context.Background()

	players := []uuid.UUID{uuid.New(), uuid.New()}
	room := seedRoom(t, db, "playing", players)

	rt, err := svc.GetRuntime(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRuntime: %v", err)
	}
	if rt.Snapshot(players[0]).Phase != PhaseWaiting {
		t.Fatalf("rebuilt room with no hand must wait, not claim a game in progress")
	}

	var saved model.Room
	if err := db.First(&saved, "id = ?", room.ID).Error; err != nil {
		t.Fatalf("load room: %v", err)
	}
	if saved.Status != "waiting" {
		t.Fatalf("stale playing status not reset, got %q", saved.Status)
	}
}
