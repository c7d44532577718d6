package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tet-service/internal/model"
	appErr "tet-service/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameResult is produced once per finished hand and never mutated afterwards.
type GameResult struct {
	RoomID     uuid.UUID           `json:"roomId"`
	Rankings   []uuid.UUID         `json:"rankings"`
	Settlement map[uuid.UUID]int64 `json:"settlement"`
	Log        []GameMove          `json:"log"`
}

// DefaultPayoutMultiples maps player count to the signed bet-unit multiple
// paid to each finish place. Every row sums to zero. Deployments override
// rows through game config.
var DefaultPayoutMultiples = map[int][]int64{
	2: {1, -1},
	3: {1, 0, -1},
	4: {2, 1, -1, -2},
}

// SettleHand turns a finish order into signed point deltas using the room's
// bet unit. The finish order must be a full permutation of the seated
// players; anything else is an incomplete hand. A configured multiples table
// takes precedence over the built-in one; a malformed row (wrong length or
// not zero-sum) fails settlement validation.
func SettleHand(finishOrder []uuid.UUID, playerCount int, betUnit int64, multiples map[int][]int64) (map[uuid.UUID]int64, error) {
	row, ok := multiples[playerCount]
	if !ok {
		row, ok = DefaultPayoutMultiples[playerCount]
	}
	if !ok {
		return nil, appErr.ErrInvalidPlayerCount
	}
	if len(row) != playerCount {
		return nil, appErr.ErrSettlementValidation
	}
	var rowSum int64
	for _, m := range row {
		rowSum += m
	}
	if rowSum != 0 {
		return nil, appErr.ErrSettlementValidation
	}

	if len(finishOrder) != playerCount {
		return nil, appErr.ErrIncompleteHand
	}
	seen := make(map[uuid.UUID]struct{}, len(finishOrder))
	for _, p := range finishOrder {
		if _, dup := seen[p]; dup {
			return nil, appErr.ErrIncompleteHand
		}
		seen[p] = struct{}{}
	}

	deltas := make(map[uuid.UUID]int64, playerCount)
	for place, playerID := range finishOrder {
		deltas[playerID] = row[place] * betUnit
	}
	return deltas, nil
}

type playerResultRecord struct {
	UserID uuid.UUID `json:"userId"`
	Place  int       `json:"place"`
	Delta  int64     `json:"delta"`
}

// FinalizeHand persists a finished hand: the immutable game record, wallet
// deltas and billing logs, and the room status flip, all in one transaction.
func (s *Service) FinalizeHand(ctx context.Context, result *GameResult) error {
	if result == nil || len(result.Rankings) == 0 {
		return appErr.ErrSettlementValidation
	}

	var sum int64
	for _, delta := range result.Settlement {
		sum += delta
	}
	if sum != 0 {
		return fmt.Errorf("%w: deltas must sum to zero", appErr.ErrSettlementValidation)
	}

	now := time.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := make([]playerResultRecord, 0, len(result.Rankings))
		billingLogs := make([]model.BillingLog, 0, len(result.Rankings))

		record := model.GameRecord{
			ID:        uuid.New(),
			RoomID:    result.RoomID,
			CreatedAt: now,
			EndedAt:   &now,
		}

		for place, playerID := range result.Rankings {
			delta := result.Settlement[playerID]

			var wallet model.Wallet
			if err := tx.Where("user_id = ?", playerID).
				FirstOrCreate(&wallet, model.Wallet{UserID: playerID}).Error; err != nil {
				return err
			}
			wallet.Balance += delta
			if delta > 0 {
				wallet.TotalWin += delta
			} else {
				wallet.TotalLoss += -delta
			}
			wallet.UpdatedAt = now
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}

			logType := "lose"
			if delta > 0 {
				logType = "win"
			}
			billingLogs = append(billingLogs, model.BillingLog{
				UserID:       playerID,
				Type:         logType,
				Delta:        delta,
				BalanceAfter: wallet.Balance,
				GameID:       &record.ID,
				MetaJSON:     mustJSON(map[string]interface{}{"roomId": result.RoomID, "place": place + 1}),
				CreatedAt:    now,
			})
			records = append(records, playerResultRecord{UserID: playerID, Place: place + 1, Delta: delta})
		}

		record.ResultJSON = mustJSON(records)
		record.LogJSON = mustJSON(result.Log)
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if len(billingLogs) > 0 {
			if err := tx.Create(&billingLogs).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.Room{}).
			Where("id = ?", result.RoomID).
			Updates(map[string]interface{}{"status": "ended", "updated_at": now}).Error
	})
}

// BetUnitForLevel resolves a stake level to its bet unit, falling back to the
// configured default when the level has no row.
func (s *Service) BetUnitForLevel(ctx context.Context, level string) int64 {
	if s.db != nil && level != "" {
		var schedule model.StakeSchedule
		err := s.db.WithContext(ctx).
			Where("level = ? AND status = ?", level, "enabled").
			First(&schedule).Error
		if err == nil && schedule.BetUnit > 0 {
			return schedule.BetUnit
		}
	}
	return s.cfg.DefaultStakeBase
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
