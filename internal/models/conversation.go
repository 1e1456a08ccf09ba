package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationTypeDM    = "dm"
	ConversationTypeGroup = "group"
)

// Conversation 会话模型（私聊 / 群聊）
// DM 会话按无序用户对唯一：PairKey = "lowID:highID"，群聊 PairKey 为空。
type Conversation struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"type:uuid;uniqueIndex;not null" json:"public_id"`

	Type        string  `gorm:"type:varchar(10);not null;index" json:"type"` // dm, group
	Name        string  `json:"name"`                                       // 仅群聊
	Description string  `json:"description"`
	AvatarURL   string  `json:"avatar_url"`
	PairKey     *string `gorm:"uniqueIndex" json:"-"`
	CreatedBy   uint    `gorm:"not null" json:"created_by"`

	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"` // 反范式字段，用于会话列表排序

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Members  []ConversationMember `gorm:"foreignKey:ConversationID" json:"-"`
	Messages []Message            `gorm:"foreignKey:ConversationID" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.PublicID == "" {
		c.PublicID = uuid.NewString()
	}
	return nil
}
