package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// ConversationRepository 会话仓储
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// DMPairKey 生成 DM 会话的无序对键
func DMPairKey(a, b uint) string {
	low, high := normalizePair(a, b)
	return fmt.Sprintf("%d:%d", low, high)
}

// GetByID 根据 ID 获取会话
func (r *ConversationRepository) GetByID(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreateDM 原子化查找或创建两个用户间唯一的 DM 会话
// 实现逻辑：单事务内先按 pair_key 查找；未找到则以 ON CONFLICT DO NOTHING 插入，
// 插入被唯一索引拦下（并发对端已建）时回读既有行。两端并发调用收敛到同一行。
func (r *ConversationRepository) FindOrCreateDM(a, b uint) (*models.Conversation, error) {
	pairKey := DMPairKey(a, b)
	var conv models.Conversation

	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pair_key = ?", pairKey).First(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		conv = models.Conversation{
			Type:      models.ConversationTypeDM,
			PairKey:   &pairKey,
			CreatedBy: a,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 并发创建者赢得了唯一索引，回读其结果
			return tx.Where("pair_key = ?", pairKey).First(&conv).Error
		}

		members := []models.ConversationMember{
			{ConversationID: conv.ID, UserID: a, Role: models.MemberRoleMember, JoinedAt: now, LastReadAt: now},
			{ConversationID: conv.ID, UserID: b, Role: models.MemberRoleMember, JoinedAt: now, LastReadAt: now},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateGroup 创建群聊会话并将创建者加入为管理员
func (r *ConversationRepository) CreateGroup(conv *models.Conversation, creatorID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		now := time.Now()
		member := models.ConversationMember{
			ConversationID: conv.ID,
			UserID:         creatorID,
			Role:           models.MemberRoleAdmin,
			JoinedAt:       now,
			LastReadAt:     now,
		}
		return tx.Create(&member).Error
	})
}

// AddMember 向会话添加成员
func (r *ConversationRepository) AddMember(conversationID, userID uint, role string) error {
	now := time.Now()
	member := models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       now,
		LastReadAt:     now,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

// RemoveMember 将成员移出会话
func (r *ConversationRepository) RemoveMember(conversationID, userID uint) error {
	return r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationMember{}).Error
}

// GetMember 获取成员记录
func (r *ConversationRepository) GetMember(conversationID, userID uint) (*models.ConversationMember, error) {
	var m models.ConversationMember
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsMember 检查用户是否是会话成员
func (r *ConversationRepository) IsMember(conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListMemberIDs 列出会话所有成员 ID
func (r *ConversationRepository) ListMemberIDs(conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ListForUser 列出用户参与的所有会话，按最近消息时间倒序
func (r *ConversationRepository) ListForUser(userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("cm.user_id = ?", userID).
		Order("conversations.last_message_at DESC NULLS LAST").
		Find(&convs).Error
	return convs, err
}

// ListIDsForUser 列出用户参与的所有会话 ID（网关订阅用）
func (r *ConversationRepository) ListIDsForUser(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.ConversationMember{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

// MarkRead 推进成员的 last_read_at
// WHERE last_read_at < ? 使该操作幂等且单调：重复调用、乱序到达都不会回退
func (r *ConversationRepository) MarkRead(conversationID, userID uint, readAt time.Time) error {
	return r.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ? AND last_read_at < ?", conversationID, userID, readAt).
		Update("last_read_at", readAt).Error
}

// TouchLastMessageAt 推进会话的 last_message_at 反范式字段
func (r *ConversationRepository) TouchLastMessageAt(conversationID uint, at time.Time) error {
	return r.db.Model(&models.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", conversationID, at).
		Update("last_message_at", at).Error
}
