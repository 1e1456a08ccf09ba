package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// MaxMessageContentLength 消息内容上限（去除首尾空白后）
const MaxMessageContentLength = 5000

// Attachment 消息附件
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message 消息模型
// ID 为 Snowflake（按时间有序），排序键为 (created_at, id)。
// 客户端视角下消息只追加：编辑/删除通过标志位表达，不做物理删除。
type Message struct {
	ID             int64 `gorm:"primaryKey" json:"id"`
	ConversationID uint  `gorm:"not null;index:idx_conv_created" json:"conversation_id"`
	SenderID       *uint `gorm:"index" json:"sender_id"` // NULL 表示系统消息

	Content     string         `gorm:"not null;type:varchar(5000)" json:"content"`
	MsgType     string         `gorm:"type:varchar(10);default:text" json:"msg_type"` // text, image, file, system
	Attachments datatypes.JSON `gorm:"type:jsonb" json:"attachments"`                 // [{url,name,size}]
	ReplyToID   *int64         `json:"reply_to_id"`
	SequenceID  int64          `gorm:"not null" json:"sequence_id"` // 会话内单调序号，由 Redis 生成
	Edited      bool           `gorm:"default:false" json:"edited"`
	Deleted     bool           `gorm:"default:false" json:"deleted"`

	CreatedAt time.Time      `gorm:"index:idx_conv_created" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Sender *User `gorm:"foreignKey:SenderID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
