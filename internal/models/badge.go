package models

import "time"

const (
	BadgeRequirementXP       = "xp"
	BadgeRequirementStreak   = "streak"
	BadgeRequirementMessages = "messages_sent"
)

// Badge 徽章目录
type Badge struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`

	RequirementType  string `gorm:"type:varchar(20);not null" json:"requirement_type"` // xp, streak, messages_sent
	RequirementValue int64  `gorm:"not null" json:"requirement_value"`

	CreatedAt time.Time `json:"created_at"`
}

func (Badge) TableName() string {
	return "badges"
}

// ProfileBadge 用户已获得的徽章，联合唯一 (user_id, badge_id)
type ProfileBadge struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID  uint `gorm:"not null;uniqueIndex:idx_profile_badge" json:"user_id"`
	BadgeID uint `gorm:"not null;uniqueIndex:idx_profile_badge" json:"badge_id"`

	EarnedAt time.Time `json:"earned_at"`

	Badge *Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (ProfileBadge) TableName() string {
	return "profile_badges"
}
