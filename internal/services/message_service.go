package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
	redisclient "github.com/Gopher0727/StudyHive/internal/pkg/redis"
	"github.com/Gopher0727/StudyHive/utils/snowflake"
)

// MessageRepo 消息服务所需的仓储能力
type MessageRepo interface {
	Create(msg *models.Message) error
	GetByID(id int64) (*models.Message, error)
	GetRecent(conversationID uint, limit int) ([]models.Message, error)
	GetAfter(conversationID uint, after time.Time, limit int) ([]models.Message, error)
}

// MessageConvRepo 消息服务所需的会话仓储能力
type MessageConvRepo interface {
	GetByID(id uint) (*models.Conversation, error)
	IsMember(conversationID, userID uint) (bool, error)
	ListMemberIDs(conversationID uint) ([]uint, error)
	TouchLastMessageAt(conversationID uint, at time.Time) error
}

// MessageUserRepo 消息服务所需的用户查询能力
type MessageUserRepo interface {
	GetByID(id uint) (*models.User, error)
}

// MessageNotifier 新消息通知接口（由 NotificationService 实现）
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, targetID, conversationID, senderID uint, preview string) error
}

// MessageRewarder 消息发送的游戏化副作用（由 GamificationService 实现）
type MessageRewarder interface {
	OnMessageSent(ctx context.Context, userID uint) error
}

// MessageService 消息服务：校验、持久化、序号分配与缓存
type MessageService struct {
	messageRepo  MessageRepo
	convRepo     MessageConvRepo
	userRepo     MessageUserRepo
	gate         FriendGate
	redisClient  redisclient.Client
	snowflakeGen *snowflake.Generator
	notifier     MessageNotifier
	rewarder     MessageRewarder
}

func NewMessageService(
	messageRepo MessageRepo,
	convRepo MessageConvRepo,
	userRepo MessageUserRepo,
	gate FriendGate,
	redisClient redisclient.Client,
	snowflakeGen *snowflake.Generator,
	notifier MessageNotifier,
	rewarder MessageRewarder,
) *MessageService {
	return &MessageService{
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		userRepo:     userRepo,
		gate:         gate,
		redisClient:  redisClient,
		snowflakeGen: snowflakeGen,
		notifier:     notifier,
		rewarder:     rewarder,
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content     string              `json:"content" binding:"required"`
	MsgType     string              `json:"msg_type"` // 可选，默认为 text
	Attachments []models.Attachment `json:"attachments"`
	ReplyToID   *int64              `json:"reply_to_id"`
}

// MessageDTO 消息数据传输对象
type MessageDTO struct {
	ID             int64               `json:"id"`
	ConversationID uint                `json:"conversation_id"`
	SenderID       *uint               `json:"sender_id"`
	SenderName     string              `json:"sender_name,omitempty"`
	SenderAvatar   string              `json:"sender_avatar,omitempty"`
	Content        string              `json:"content"`
	MsgType        string              `json:"msg_type"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	ReplyToID      *int64              `json:"reply_to_id,omitempty"`
	SequenceID     int64               `json:"sequence_id"`
	Edited         bool                `json:"edited"`
	Deleted        bool                `json:"deleted"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ValidateContent 校验消息内容：去除首尾空白后非空且不超过 5000 字符
// 与服务端约束保持一致，客户端（chatsync）在发请求前做同样的检查。
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrInvalidContent
	}
	if utf8.RuneCountInString(trimmed) > models.MaxMessageContentLength {
		return "", ErrInvalidContent
	}
	return trimmed, nil
}

// SendMessage 发送消息
// 实现逻辑：先做内容校验（不合法时不产生任何写入）；校验成员资格；DM 会话
// 复查好友闸门（会话中途被解除好友时拒绝发送）；Snowflake 生成消息 ID，
// Redis 生成会话内序号；落库后推进 last_message_at、写入最近消息缓存，
// 并触发游戏化与通知副作用。
func (s *MessageService) SendMessage(ctx context.Context, senderID, conversationID uint, req *SendMessageRequest) (*MessageDTO, error) {
	if senderID == 0 {
		return nil, ErrNotAuthenticated
	}

	content, err := ValidateContent(req.Content)
	if err != nil {
		return nil, err
	}

	msgType := req.MsgType
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	conv, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	isMember, err := s.convRepo.IsMember(conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrUnauthorizedConv
	}

	// DM 中途解除好友后拒绝继续发送
	if conv.Type == models.ConversationTypeDM && s.gate != nil {
		memberIDs, err := s.convRepo.ListMemberIDs(conversationID)
		if err != nil {
			return nil, err
		}
		for _, id := range memberIDs {
			if id == senderID {
				continue
			}
			ok, err := s.gate.AreFriends(ctx, senderID, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrUnauthorizedConv
			}
		}
	}

	snowflakeID, err := s.snowflakeGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("生成消息 ID 失败: %w", err)
	}

	var seqID int64
	if s.redisClient != nil {
		seqID, err = s.redisClient.GenerateSeqID(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("生成消息序号失败: %w", err)
		}
	}

	var attachments []byte
	if len(req.Attachments) > 0 {
		attachments, err = json.Marshal(req.Attachments)
		if err != nil {
			return nil, ErrValidation
		}
	}

	message := &models.Message{
		ID:             snowflakeID,
		ConversationID: conversationID,
		SenderID:       &senderID,
		Content:        content,
		MsgType:        msgType,
		Attachments:    attachments,
		ReplyToID:      req.ReplyToID,
		SequenceID:     seqID,
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	_ = s.convRepo.TouchLastMessageAt(conversationID, message.CreatedAt)

	dto := s.toDTO(message)
	if sender, err := s.userRepo.GetByID(senderID); err == nil {
		dto.SenderName = sender.DisplayName
		dto.SenderAvatar = sender.AvatarURL
	}

	s.cacheRecent(ctx, conversationID, dto)

	if s.rewarder != nil {
		_ = s.rewarder.OnMessageSent(ctx, senderID)
	}

	if s.notifier != nil {
		if memberIDs, err := s.convRepo.ListMemberIDs(conversationID); err == nil {
			for _, id := range memberIDs {
				if id == senderID {
					continue
				}
				_ = s.notifier.NotifyNewMessage(ctx, id, conversationID, senderID, content)
			}
		}
	}

	return dto, nil
}

// SendSystemMessage 写入系统消息（无发送者，不走好友闸门）
func (s *MessageService) SendSystemMessage(ctx context.Context, conversationID uint, content string) (*MessageDTO, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}

	snowflakeID, err := s.snowflakeGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("生成消息 ID 失败: %w", err)
	}

	var seqID int64
	if s.redisClient != nil {
		seqID, _ = s.redisClient.GenerateSeqID(ctx, conversationID)
	}

	message := &models.Message{
		ID:             snowflakeID,
		ConversationID: conversationID,
		Content:        content,
		MsgType:        models.MessageTypeSystem,
		SequenceID:     seqID,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, fmt.Errorf("保存系统消息失败: %w", err)
	}

	_ = s.convRepo.TouchLastMessageAt(conversationID, message.CreatedAt)

	return s.toDTO(message), nil
}

// GetMessages 获取会话最近的消息，按 (created_at, id) 升序
func (s *MessageService) GetMessages(ctx context.Context, callerID, conversationID uint, limit int) ([]MessageDTO, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrUnauthorizedConv
	}

	msgs, err := s.messageRepo.GetRecent(conversationID, limit)
	if err != nil {
		return nil, err
	}
	return s.toDTOs(msgs), nil
}

// GetMessagesAfter 增量同步：获取晚于 after 的消息
func (s *MessageService) GetMessagesAfter(ctx context.Context, callerID, conversationID uint, after time.Time, limit int) ([]MessageDTO, error) {
	if limit <= 0 {
		limit = 50
	}

	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrUnauthorizedConv
	}

	msgs, err := s.messageRepo.GetAfter(conversationID, after, limit)
	if err != nil {
		return nil, err
	}
	return s.toDTOs(msgs), nil
}

// cacheRecent 将消息追加到会话的 Redis 最近消息缓存（保留最近100条）
func (s *MessageService) cacheRecent(ctx context.Context, conversationID uint, dto *MessageDTO) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	key := fmt.Sprintf("conversation:%d:messages", conversationID)
	rdb := s.redisClient.GetClient()
	rdb.RPush(ctx, key, payload)
	rdb.LTrim(ctx, key, -100, -1)
}

func (s *MessageService) toDTO(m *models.Message) *MessageDTO {
	dto := &MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MsgType:        m.MsgType,
		ReplyToID:      m.ReplyToID,
		SequenceID:     m.SequenceID,
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Attachments) > 0 {
		_ = json.Unmarshal(m.Attachments, &dto.Attachments)
	}
	if m.Sender != nil {
		dto.SenderName = m.Sender.DisplayName
		dto.SenderAvatar = m.Sender.AvatarURL
	}
	return dto
}

func (s *MessageService) toDTOs(msgs []models.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for i := range msgs {
		out = append(out, *s.toDTO(&msgs[i]))
	}
	return out
}
