package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 用户模型（个人资料 + 游戏化字段）
// PublicID 为对外暴露的 UUID，通知负载等跨边界引用一律使用它。
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"type:uuid;uniqueIndex;not null" json:"public_id"`

	UserName     string         `gorm:"column:username;uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	DisplayName  string         `json:"display_name"`
	AvatarURL    string         `json:"avatar_url"`
	Bio          string         `gorm:"type:varchar(500)" json:"bio"`
	Interests    datatypes.JSON `gorm:"type:jsonb" json:"interests"`   // ["algebra", "go", ...]
	Status       string         `gorm:"default:offline" json:"status"` // online, offline

	// 游戏化
	XP            int64      `gorm:"default:0" json:"xp"`
	StreakCount   int        `gorm:"default:0" json:"streak_count"`
	MessagesSent  int64      `gorm:"default:0" json:"messages_sent"`
	LastStudyDate *time.Time `json:"last_study_date"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.PublicID == "" {
		u.PublicID = uuid.NewString()
	}
	return nil
}
