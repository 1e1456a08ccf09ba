package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationMessage       NotificationType = "message"
	NotificationRoomInvite    NotificationType = "room_invite"
	NotificationSystem        NotificationType = "system"
)

const (
	MaxNotificationTitleLength   = 200
	MaxNotificationContentLength = 500
)

// Notification 通知模型
// Data 为按 Type 区分的 JSON 负载，入库前经 services 层校验与截断。
type Notification struct {
	ID     uint             `gorm:"primaryKey" json:"id"`
	UserID uint             `gorm:"not null;index" json:"user_id"`
	Type   NotificationType `gorm:"type:varchar(20);not null" json:"type"`

	Title   string         `gorm:"type:varchar(200);not null" json:"title"`
	Content string         `gorm:"type:varchar(500)" json:"content"`
	Data    datatypes.JSON `gorm:"type:jsonb" json:"data"`
	IsRead  bool           `gorm:"default:false;index" json:"is_read"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
