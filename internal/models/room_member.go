package models

import "time"

const (
	RoomRoleOwner  = "owner"
	RoomRoleMember = "member"
)

// RoomMember 自习室成员中间表，联合主键 (room_id, user_id)
type RoomMember struct {
	RoomID uint `gorm:"primaryKey" json:"room_id"`
	UserID uint `gorm:"primaryKey" json:"user_id"`

	Role     string    `gorm:"type:varchar(10);default:member" json:"role"` // owner, member
	JoinedAt time.Time `json:"joined_at"`

	Room *Room `gorm:"foreignKey:RoomID" json:"-"`
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (RoomMember) TableName() string {
	return "room_members"
}
