package models

import "time"

const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// ConversationMember 会话成员中间表，联合主键 (conversation_id, user_id)
// LastReadAt 单调不减，未读数由它推导。
type ConversationMember struct {
	ConversationID uint `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint `gorm:"primaryKey" json:"user_id"`

	Role       string    `gorm:"type:varchar(10);default:member" json:"role"` // admin, member
	JoinedAt   time.Time `json:"joined_at"`
	LastReadAt time.Time `json:"last_read_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (ConversationMember) TableName() string {
	return "conversation_members"
}
