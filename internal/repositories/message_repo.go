package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// MessageRepository 消息仓储
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 插入一条消息
func (r *MessageRepository) Create(msg *models.Message) error {
	return r.db.Create(msg).Error
}

// GetByID 根据 ID 获取消息（预加载发送者）
func (r *MessageRepository) GetByID(id int64) (*models.Message, error) {
	var msg models.Message
	if err := r.db.Preload("Sender").First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRecent 获取会话最近 limit 条消息，按 (created_at, id) 升序返回
// 实现逻辑：先倒序取最近 limit 条，再反转为升序，保证拿到的是"最新的一段"
func (r *MessageRepository) GetRecent(conversationID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetAfter 获取会话中晚于 after 的消息（增量同步），升序
func (r *MessageRepository) GetAfter(conversationID uint, after time.Time, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("conversation_id = ? AND created_at > ?", conversationID, after).
		Order("created_at asc").Order("id asc").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	return messages, err
}

// MarkEdited 标记消息为已编辑并更新内容（只追加语义：不物理改写历史行之外的内容）
func (r *MessageRepository) MarkEdited(id int64, content string) error {
	return r.db.Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "edited": true}).Error
}

// MarkDeleted 标记消息为已删除（软标志，不物理删除）
func (r *MessageRepository) MarkDeleted(id int64) error {
	return r.db.Model(&models.Message{}).Where("id = ?", id).
		Update("deleted", true).Error
}

// CountUnread 统计成员未读消息数
// 规则：created_at 晚于 lastReadAt 且发送者不是本人（系统消息计入未读）
func (r *MessageRepository) CountUnread(conversationID, userID uint, lastReadAt time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND created_at > ? AND (sender_id IS NULL OR sender_id <> ?)",
			conversationID, lastReadAt, userID).
		Count(&count).Error
	return count, err
}
