package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Gopher0727/StudyHive/internal/models"
	"github.com/Gopher0727/StudyHive/internal/utils"
)

// NotificationRepo 通知服务所需的仓储能力
type NotificationRepo interface {
	Create(n *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	ListForUser(userID uint, limit, offset int) ([]models.Notification, error)
	CountUnread(userID uint) (int64, error)
	MarkRead(id, userID uint) error
	MarkAllRead(userID uint) error
}

// NotificationUserRepo 通知服务所需的用户查询能力
type NotificationUserRepo interface {
	GetByID(id uint) (*models.User, error)
}

// NotificationFriendshipRepo 通知服务所需的好友关系查询能力
type NotificationFriendshipRepo interface {
	GetByID(id uint) (*models.Friendship, error)
}

// NotificationConvRepo 通知服务所需的会话查询能力
type NotificationConvRepo interface {
	GetByID(id uint) (*models.Conversation, error)
}

// NotificationRoomRepo 通知服务所需的自习室查询能力
type NotificationRoomRepo interface {
	GetByID(id uint) (*models.Room, error)
}

// NotificationPayload 通知载荷：校验的输入与输出
// 跨边界引用一律使用 UUID（各实体的 PublicID），不暴露数据库自增 ID。
type NotificationPayload struct {
	ID      string                  `json:"id"`
	UserID  string                  `json:"user_id"`
	Type    models.NotificationType `json:"type"`
	Title   string                  `json:"title"`
	Content string                  `json:"content"`
	Data    map[string]any          `json:"data"`
}

// ValidateNotification 校验通知载荷
// 规则：缺少 id / user_id / type / title 的载荷整体拒绝（返回 nil）；
// 未知类型整体拒绝；data 按类型逐字段校验（必填 UUID 缺失或非法时
// data 置空，通知本身保留）；title 截断到 200 字符、content 截断到
// 500 字符，截断为强制行为。
func ValidateNotification(p *NotificationPayload) *NotificationPayload {
	if p == nil {
		return nil
	}
	if p.ID == "" || p.UserID == "" || p.Type == "" || p.Title == "" {
		return nil
	}

	switch p.Type {
	case models.NotificationFriendRequest, models.NotificationMessage,
		models.NotificationRoomInvite, models.NotificationSystem:
	default:
		return nil
	}

	out := &NotificationPayload{
		ID:      p.ID,
		UserID:  p.UserID,
		Type:    p.Type,
		Title:   utils.TrimAndLimit(p.Title, models.MaxNotificationTitleLength),
		Content: utils.TrimAndLimit(p.Content, models.MaxNotificationContentLength),
		Data:    validateNotificationData(p.Type, p.Data),
	}
	if out.Title == "" {
		return nil
	}
	return out
}

// validateNotificationData 按类型校验 data 负载，任一字段不符合模式时返回 nil
func validateNotificationData(t models.NotificationType, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any)

	requireUUID := func(key string) bool {
		v, ok := data[key]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || uuid.Validate(s) != nil {
			return false
		}
		out[key] = s
		return true
	}
	optionalUUID := func(key string) bool {
		v, ok := data[key]
		if !ok {
			return true
		}
		s, ok := v.(string)
		if !ok || uuid.Validate(s) != nil {
			return false
		}
		out[key] = s
		return true
	}

	switch t {
	case models.NotificationFriendRequest:
		if !requireUUID("friendship_id") || !optionalUUID("from_user_id") {
			return nil
		}
		if v, ok := data["message"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil
			}
			out["message"] = utils.TrimAndLimit(s, models.MaxNotificationContentLength)
		}
	case models.NotificationMessage:
		if !requireUUID("conversation_id") || !optionalUUID("sender_id") {
			return nil
		}
	case models.NotificationRoomInvite:
		if !requireUUID("room_id") || !optionalUUID("inviter_id") {
			return nil
		}
	case models.NotificationSystem:
		if !optionalUUID("request_id") || !optionalUUID("accepted_by") || !optionalUUID("declined_by") {
			return nil
		}
	default:
		return nil
	}

	return out
}

// NotificationService 通知服务：构造、校验并持久化通知
// 同时实现 FriendshipNotifier 与 MessageNotifier。
type NotificationService struct {
	notifRepo  NotificationRepo
	userRepo   NotificationUserRepo
	friendRepo NotificationFriendshipRepo
	convRepo   NotificationConvRepo
	roomRepo   NotificationRoomRepo
}

func NewNotificationService(
	notifRepo NotificationRepo,
	userRepo NotificationUserRepo,
	friendRepo NotificationFriendshipRepo,
	convRepo NotificationConvRepo,
	roomRepo NotificationRoomRepo,
) *NotificationService {
	return &NotificationService{
		notifRepo:  notifRepo,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		convRepo:   convRepo,
		roomRepo:   roomRepo,
	}
}

// NotifyFriendRequest 向被请求方发送 friend_request 通知
func (s *NotificationService) NotifyFriendRequest(ctx context.Context, targetID, friendshipID, fromUserID uint, message string) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return err
	}
	from, err := s.userRepo.GetByID(fromUserID)
	if err != nil {
		return err
	}
	friendship, err := s.friendRepo.GetByID(friendshipID)
	if err != nil {
		return err
	}

	data := map[string]any{
		"friendship_id": friendship.PublicID,
		"from_user_id":  from.PublicID,
	}
	if message != "" {
		data["message"] = message
	}

	payload := &NotificationPayload{
		ID:      uuid.NewString(),
		UserID:  target.PublicID,
		Type:    models.NotificationFriendRequest,
		Title:   fmt.Sprintf("%s 请求添加你为好友", displayName(from)),
		Content: message,
		Data:    data,
	}
	return s.store(ctx, targetID, payload)
}

// NotifyNewMessage 向会话成员发送 message 通知
func (s *NotificationService) NotifyNewMessage(ctx context.Context, targetID, conversationID, senderID uint, preview string) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return err
	}
	sender, err := s.userRepo.GetByID(senderID)
	if err != nil {
		return err
	}
	conv, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		return err
	}

	payload := &NotificationPayload{
		ID:      uuid.NewString(),
		UserID:  target.PublicID,
		Type:    models.NotificationMessage,
		Title:   fmt.Sprintf("%s 发来新消息", displayName(sender)),
		Content: preview,
		Data: map[string]any{
			"conversation_id": conv.PublicID,
			"sender_id":       sender.PublicID,
		},
	}
	return s.store(ctx, targetID, payload)
}

// NotifyRoomInvite 向被邀请方发送 room_invite 通知
func (s *NotificationService) NotifyRoomInvite(ctx context.Context, targetID, roomID, inviterID uint) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return err
	}
	inviter, err := s.userRepo.GetByID(inviterID)
	if err != nil {
		return err
	}
	room, err := s.roomRepo.GetByID(roomID)
	if err != nil {
		return err
	}

	payload := &NotificationPayload{
		ID:      uuid.NewString(),
		UserID:  target.PublicID,
		Type:    models.NotificationRoomInvite,
		Title:   fmt.Sprintf("%s 邀请你加入自习室「%s」", displayName(inviter), room.Name),
		Content: room.Description,
		Data: map[string]any{
			"room_id":    room.PublicID,
			"inviter_id": inviter.PublicID,
		},
	}
	return s.store(ctx, targetID, payload)
}

// NotifySystem 发送系统通知，data 字段按 system 模式校验
func (s *NotificationService) NotifySystem(ctx context.Context, targetID uint, title, content string, data map[string]any) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return err
	}

	payload := &NotificationPayload{
		ID:      uuid.NewString(),
		UserID:  target.PublicID,
		Type:    models.NotificationSystem,
		Title:   title,
		Content: content,
		Data:    data,
	}
	return s.store(ctx, targetID, payload)
}

// store 校验后落库；校验失败的载荷直接丢弃，返回 ErrValidation 供调用方记录
func (s *NotificationService) store(_ context.Context, targetID uint, payload *NotificationPayload) error {
	validated := ValidateNotification(payload)
	if validated == nil {
		return ErrValidation
	}

	n := &models.Notification{
		UserID:  targetID,
		Type:    validated.Type,
		Title:   validated.Title,
		Content: validated.Content,
	}
	if validated.Data != nil {
		raw, err := json.Marshal(validated.Data)
		if err != nil {
			return ErrValidation
		}
		n.Data = raw
	}
	return s.notifRepo.Create(n)
}

// NotificationDTO 通知列表项
type NotificationDTO struct {
	ID        uint                    `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Content   string                  `json:"content,omitempty"`
	Data      json.RawMessage         `json:"data,omitempty"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// List 列出用户的通知，按时间倒序
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]NotificationDTO, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := s.notifRepo.ListForUser(userID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]NotificationDTO, 0, len(rows))
	for _, n := range rows {
		out = append(out, NotificationDTO{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Content:   n.Content,
			Data:      json.RawMessage(n.Data),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out, nil
}

// UnreadCount 统计未读通知数
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notifRepo.CountUnread(userID)
}

// MarkRead 标记单条通知已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.notifRepo.MarkRead(notificationID, userID)
}

// MarkAllRead 标记全部已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.notifRepo.MarkAllRead(userID)
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UserName
}
