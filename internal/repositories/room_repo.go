package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// RoomRepository 自习室仓储
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create 创建自习室并将房主加入成员表（单事务）
func (r *RoomRepository) Create(room *models.Room) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		member := models.RoomMember{
			RoomID:   room.ID,
			UserID:   room.OwnerID,
			Role:     models.RoomRoleOwner,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
}

// GetByID 根据 ID 获取自习室
func (r *RoomRepository) GetByID(id uint) (*models.Room, error) {
	var room models.Room
	if err := r.db.First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// GetByJoinCode 根据加入码获取自习室
func (r *RoomRepository) GetByJoinCode(code string) (*models.Room, error) {
	var room models.Room
	if err := r.db.Where("join_code = ?", code).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// AddMember 添加成员并递增计数（单事务，容量检查由 service 负责）
func (r *RoomRepository) AddMember(roomID, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		member := models.RoomMember{
			RoomID:   roomID,
			UserID:   userID,
			Role:     models.RoomRoleMember,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("member_count", gorm.Expr("member_count + 1")).Error
	})
}

// RemoveMember 移除成员并递减计数
func (r *RoomRepository) RemoveMember(roomID, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			Delete(&models.RoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Room{}).Where("id = ? AND member_count > 0", roomID).
			Update("member_count", gorm.Expr("member_count - 1")).Error
	})
}

// IsMember 检查用户是否是自习室成员
func (r *RoomRepository) IsMember(roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// CountOwnedBy 统计用户拥有的自习室数量（免费套餐配额检查）
func (r *RoomRepository) CountOwnedBy(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Room{}).
		Where("owner_id = ?", userID).
		Count(&count).Error
	return count, err
}

// ListPublic 列出公开自习室（可按学科过滤）
func (r *RoomRepository) ListPublic(subject string, limit, offset int) ([]models.Room, int64, error) {
	q := r.db.Model(&models.Room{}).Where("is_public = ?", true)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []models.Room
	err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&rooms).Error
	return rooms, total, err
}

// ListForUser 列出用户加入的自习室
func (r *RoomRepository) ListForUser(userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.
		Joins("JOIN room_members rm ON rm.room_id = rooms.id").
		Where("rm.user_id = ?", userID).
		Order("rooms.created_at desc").
		Find(&rooms).Error
	return rooms, err
}
