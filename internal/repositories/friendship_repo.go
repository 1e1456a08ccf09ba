package repositories

import (
	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// FriendshipRepository 好友关系仓储
type FriendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{db: db}
}

// normalizePair 归一化无序用户对
func normalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// Create 创建好友关系记录
func (r *FriendshipRepository) Create(f *models.Friendship) error {
	return r.db.Create(f).Error
}

// GetByID 根据 ID 获取关系记录
func (r *FriendshipRepository) GetByID(id uint) (*models.Friendship, error) {
	var f models.Friendship
	if err := r.db.First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByPair 查询无序对对应的关系记录
func (r *FriendshipRepository) GetByPair(a, b uint) (*models.Friendship, error) {
	low, high := normalizePair(a, b)
	var f models.Friendship
	if err := r.db.Where("low_id = ? AND high_id = ?", low, high).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// AreFriends 检查无序对是否为 accepted 状态
func (r *FriendshipRepository) AreFriends(a, b uint) (bool, error) {
	low, high := normalizePair(a, b)
	var count int64
	err := r.db.Model(&models.Friendship{}).
		Where("low_id = ? AND high_id = ? AND status = ?", low, high, models.FriendshipAccepted).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus 更新关系状态
func (r *FriendshipRepository) UpdateStatus(id uint, status models.FriendshipStatus) error {
	return r.db.Model(&models.Friendship{}).Where("id = ?", id).Update("status", status).Error
}

// Delete 删除关系记录（拒绝请求 / 解除好友）
func (r *FriendshipRepository) Delete(id uint) error {
	return r.db.Unscoped().Delete(&models.Friendship{}, id).Error
}

// DeletePair 删除无序对的关系记录（屏蔽前清理旧记录）
func (r *FriendshipRepository) DeletePair(a, b uint) error {
	low, high := normalizePair(a, b)
	return r.db.Unscoped().
		Where("low_id = ? AND high_id = ?", low, high).
		Delete(&models.Friendship{}).Error
}

// ListAccepted 列出用户的所有好友关系
func (r *FriendshipRepository) ListAccepted(userID uint) ([]models.Friendship, error) {
	var rows []models.Friendship
	err := r.db.
		Where("(low_id = ? OR high_id = ?) AND status = ?", userID, userID, models.FriendshipAccepted).
		Order("updated_at desc").
		Find(&rows).Error
	return rows, err
}

// ListPendingFor 列出发给该用户、等待处理的请求
func (r *FriendshipRepository) ListPendingFor(userID uint) ([]models.Friendship, error) {
	var rows []models.Friendship
	err := r.db.
		Where("(low_id = ? OR high_id = ?) AND status = ? AND requester_id <> ?",
			userID, userID, models.FriendshipPending, userID).
		Order("created_at desc").
		Find(&rows).Error
	return rows, err
}
