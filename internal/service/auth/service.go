package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"tet-service/internal/model"
	pkgAuth "tet-service/pkg/auth"
	appErr "tet-service/pkg/errors"
	"tet-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Register creates the user together with an empty wallet.
func (s *Service) Register(ctx context.Context, username, password, nickname string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 6 {
		return nil, appErr.ErrInvalidCredentials
	}

	var existing model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, appErr.ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	if nickname == "" {
		nickname = username
	}
	now := time.Now()
	user := model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Status:       "normal",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&model.Wallet{UserID: user.ID, UpdatedAt: now}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("user registered", zap.String("username", username))
	return &user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.ErrInvalidCredentials
	}

	token, expireAt, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &LoginResult{Token: token, ExpireAt: expireAt, User: user}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return &user, nil
}
