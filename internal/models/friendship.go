package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendshipStatus 好友关系状态
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship 好友关系模型
// 每对用户（无序）至多一行：BeforeCreate 将 (LowID, HighID) 归一化，
// RequesterID 单独记录发起方，便于区分 pending 请求的方向。
type Friendship struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"type:uuid;uniqueIndex;not null" json:"public_id"`

	LowID       uint             `gorm:"not null;uniqueIndex:idx_friend_pair" json:"low_id"`
	HighID      uint             `gorm:"not null;uniqueIndex:idx_friend_pair" json:"high_id"`
	RequesterID uint             `gorm:"not null" json:"requester_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"-"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// BeforeCreate 确保 LowID < HighID，使无序对唯一索引生效
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.LowID > f.HighID {
		f.LowID, f.HighID = f.HighID, f.LowID
	}
	if f.PublicID == "" {
		f.PublicID = uuid.NewString()
	}
	return nil
}

// Other 返回相对 userID 的另一方
func (f *Friendship) Other(userID uint) uint {
	if f.LowID == userID {
		return f.HighID
	}
	return f.LowID
}
