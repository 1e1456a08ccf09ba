package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// SubscriptionRepository 订阅仓储
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetForUser 获取用户订阅，不存在时返回默认 free 行（不落库）
func (r *SubscriptionRepository) GetForUser(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Subscription{
			UserID: userID,
			Plan:   models.PlanFree,
			Status: models.SubscriptionActive,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert 创建或更新用户订阅（每个用户一行）
func (r *SubscriptionRepository) Upsert(sub *models.Subscription) error {
	var existing models.Subscription
	err := r.db.Where("user_id = ?", sub.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(sub).Error
	}
	if err != nil {
		return err
	}
	sub.ID = existing.ID
	return r.db.Save(sub).Error
}
