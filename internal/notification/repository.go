package notification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	SaveToken(ctx context.Context, token *PushToken) error
	ActiveTokens(ctx context.Context, userID string) ([]string, error)
	DeactivateTokens(ctx context.Context, userID string, tokens []string) error
	TouchTokens(ctx context.Context, userID string, tokens []string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// SaveToken upserts a device token and marks it active.
func (r *repository) SaveToken(ctx context.Context, token *PushToken) error {
	var existing PushToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", token.UserID, token.Token).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		token.IsActive = true
		return r.db.WithContext(ctx).Create(token).Error
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"is_active":   true,
		"device_type": token.DeviceType,
	}).Error
}

func (r *repository) ActiveTokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&PushToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *repository) DeactivateTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&PushToken{}).
		Where("user_id = ? AND token IN ?", userID, tokens).
		Update("is_active", false).Error
}

func (r *repository) TouchTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&PushToken{}).
		Where("user_id = ? AND token IN ?", userID, tokens).
		Update("last_used_at", time.Now()).Error
}
