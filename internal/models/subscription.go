package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// Subscription 订阅模型（模拟支付，每个用户一行）
type Subscription struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	Plan      string `gorm:"type:varchar(10);default:free" json:"plan"`      // free, pro
	Status    string `gorm:"type:varchar(10);default:active" json:"status"` // active, canceled, expired
	InvoiceID string `json:"invoice_id"`                                    // 模拟账单号

	CurrentPeriodEnd *time.Time `json:"current_period_end"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
