package service

import (
	"context"
	"time"

	"tet-service/internal/config"
	"tet-service/internal/model"
	"tet-service/internal/service/auth"
	"tet-service/internal/service/game"
	"tet-service/internal/service/room"
	"tet-service/internal/service/wallet"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth   *auth.Service
	Room   *room.Service
	Game   *game.Service
	Wallet *wallet.Service

	db *gorm.DB
}

func NewContainer(db *gorm.DB, rdb *redis.Client, cfg config.GameConfig) *Container {
	return &Container{
		Auth:   auth.NewService(db),
		Room:   room.NewService(db, rdb),
		Game:   game.NewService(db, cfg),
		Wallet: wallet.NewService(db),
		db:     db,
	}
}

func (c *Container) Start(ctx context.Context) error {
	return c.ensureDefaultStakes(ctx)
}

// ensureDefaultStakes seeds the stake level table on first boot so rooms can
// be created without an operator step.
func (c *Container) ensureDefaultStakes(ctx context.Context) error {
	defaults := []model.StakeSchedule{
		{Level: "BAN1", BetUnit: 5_000},
		{Level: "BAN2", BetUnit: 10_000},
		{Level: "BAN3", BetUnit: 50_000},
		{Level: "BAN4", BetUnit: 100_000},
		{Level: "BAN5", BetUnit: 500_000},
	}
	now := time.Now()
	for _, schedule := range defaults {
		schedule.Status = "enabled"
		schedule.CreatedAt = now
		err := c.db.WithContext(ctx).
			Where("level = ?", schedule.Level).
			FirstOrCreate(&schedule).Error
		if err != nil {
			return err
		}
	}
	return nil
}
