package wallet

import (
	"context"
	"errors"

	"tet-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	var wallet model.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (s *Service) GetBillingLogs(ctx context.Context, userID uuid.UUID, page, size int) ([]model.BillingLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	query := s.db.WithContext(ctx).Model(&model.BillingLog{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.BillingLog
	if total > 0 {
		if err := query.
			Order("id DESC").
			Limit(size).
			Offset((page - 1) * size).
			Find(&logs).Error; err != nil {
			return nil, 0, err
		}
	}
	return logs, total, nil
}
