package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User & wallet

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"unique;not null"`
	PasswordHash string    `gorm:"not null"`
	Nickname     string
	Avatar       string
	Status       string `gorm:"default:normal;not null"` // normal/banned
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Wallet struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Balance   int64
	TotalWin  int64
	TotalLoss int64
	UpdatedAt time.Time
}

type BillingLog struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	UserID       uuid.UUID
	Type         string // win/lose/adjust
	Delta        int64
	BalanceAfter int64
	GameID       *uuid.UUID
	MetaJSON     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

// Room & seats

type Room struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"size:100;not null"`
	JoinCode       string    `gorm:"unique"`
	HostID         uuid.UUID
	MaxPlayers     int
	CurrentPlayers int
	StakeLevel     string `gorm:"default:BAN1"`
	Status         string `gorm:"default:waiting;not null"` // waiting/playing/ended
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RoomSeat struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	RoomID   uuid.UUID `gorm:"index;not null"`
	Position int       `gorm:"not null"`
	PlayerID *uuid.UUID
	IsReady  bool `gorm:"default:false"`
}

// StakeSchedule maps a named stake level to its bet unit. The per-place
// payout multiples derive from the bet unit at settlement time.
type StakeSchedule struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Level     string `gorm:"unique;not null"` // BAN1..BAN5
	BetUnit   int64  `gorm:"not null"`
	Status    string `gorm:"default:enabled"`
	CreatedAt time.Time
}

// GameRecord is the immutable record of one finished hand.
type GameRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RoomID     uuid.UUID      `gorm:"index"`
	ResultJSON datatypes.JSON `gorm:"type:jsonb"`
	LogJSON    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
	EndedAt    *time.Time
}
