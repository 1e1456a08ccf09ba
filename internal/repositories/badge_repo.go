package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// BadgeRepository 徽章仓储
type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListCatalog 列出徽章目录
func (r *BadgeRepository) ListCatalog() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Order("requirement_value asc").Find(&badges).Error
	return badges, err
}

// Award 授予徽章（幂等：唯一索引冲突时不重复插入）
func (r *BadgeRepository) Award(userID, badgeID uint) error {
	pb := models.ProfileBadge{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pb).Error
}

// ListForUser 列出用户已获得的徽章（预加载目录项）
func (r *BadgeRepository) ListForUser(userID uint) ([]models.ProfileBadge, error) {
	var rows []models.ProfileBadge
	err := r.db.Where("user_id = ?", userID).
		Preload("Badge").
		Order("earned_at desc").
		Find(&rows).Error
	return rows, err
}
