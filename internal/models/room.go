package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room 自习室模型（独立于聊天群组，每个自习室挂一个 group 会话）
type Room struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"type:uuid;uniqueIndex;not null" json:"public_id"`

	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"index" json:"subject"`
	Description string `json:"description"`
	OwnerID     uint   `gorm:"not null" json:"owner_id"`
	MaxMembers  int    `gorm:"default:8" json:"max_members"`
	MemberCount int    `gorm:"default:1" json:"member_count"`
	IsPublic    bool   `gorm:"default:true;index" json:"is_public"`
	JoinCode    string `gorm:"uniqueIndex;size:10" json:"join_code"`

	// 每个自习室对应的群聊会话
	ConversationID uint `gorm:"not null" json:"conversation_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Owner   *User        `gorm:"foreignKey:OwnerID" json:"-"`
	Members []RoomMember `gorm:"foreignKey:RoomID" json:"-"`
}

func (Room) TableName() string {
	return "rooms"
}

func (r *Room) BeforeCreate(_ *gorm.DB) error {
	if r.PublicID == "" {
		r.PublicID = uuid.NewString()
	}
	return nil
}
