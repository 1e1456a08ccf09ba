package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// ConversationRepo 会话服务所需的仓储能力
type ConversationRepo interface {
	GetByID(id uint) (*models.Conversation, error)
	FindOrCreateDM(a, b uint) (*models.Conversation, error)
	CreateGroup(conv *models.Conversation, creatorID uint) error
	AddMember(conversationID, userID uint, role string) error
	RemoveMember(conversationID, userID uint) error
	GetMember(conversationID, userID uint) (*models.ConversationMember, error)
	IsMember(conversationID, userID uint) (bool, error)
	ListMemberIDs(conversationID uint) ([]uint, error)
	ListForUser(userID uint) ([]models.Conversation, error)
	MarkRead(conversationID, userID uint, readAt time.Time) error
}

// ConversationUserRepo 会话服务所需的用户查询能力
type ConversationUserRepo interface {
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
}

// UnreadCounter 未读数统计能力（由消息仓储实现）
type UnreadCounter interface {
	CountUnread(conversationID, userID uint, lastReadAt time.Time) (int64, error)
}

// FriendGate DM 创建前的好友闸门
type FriendGate interface {
	AreFriends(ctx context.Context, a, b uint) (bool, error)
}

// ConversationService 会话服务：解析目标、维护成员与已读状态
type ConversationService struct {
	convRepo ConversationRepo
	userRepo ConversationUserRepo
	unread   UnreadCounter
	gate     FriendGate
}

func NewConversationService(convRepo ConversationRepo, userRepo ConversationUserRepo, unread UnreadCounter, gate FriendGate) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		userRepo: userRepo,
		unread:   unread,
		gate:     gate,
	}
}

// ResolveTarget DM 解析目标：二选一
type ResolveTarget struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// ResolveDirect 解析（或创建）与目标用户的唯一 DM 会话
// 实现逻辑：用户名 → ID 精确解析；好友闸门检查；事务内原子 find-or-create。
// 返回的会话保证包含调用者本人。
func (s *ConversationService) ResolveDirect(ctx context.Context, callerID uint, target ResolveTarget) (*models.Conversation, error) {
	if callerID == 0 {
		return nil, ErrNotAuthenticated
	}

	otherID := target.UserID
	if otherID == 0 {
		if target.Username == "" {
			return nil, ErrNotFound
		}
		other, err := s.userRepo.GetByUsername(target.Username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("解析用户名失败: %w", err)
		}
		otherID = other.ID
	} else {
		if _, err := s.userRepo.GetByID(otherID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}

	if otherID == callerID {
		return nil, ErrNotFound
	}

	ok, err := s.gate.AreFriends(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMustBeFriends
	}

	conv, err := s.convRepo.FindOrCreateDM(callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("创建 DM 会话失败: %w", err)
	}
	return conv, nil
}

// ResolveGroup 解析群聊会话：校验成员资格后返回
func (s *ConversationService) ResolveGroup(ctx context.Context, callerID, conversationID uint) (*models.Conversation, error) {
	conv, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrUnauthorizedConv
	}
	return conv, nil
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	MemberIDs   []uint `json:"member_ids"`
}

// CreateGroup 创建群聊会话，创建者为管理员；初始成员必须是创建者好友
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uint, req *CreateGroupRequest) (*models.Conversation, error) {
	conv := &models.Conversation{
		Type:        models.ConversationTypeGroup,
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		CreatedBy:   creatorID,
	}
	if err := s.convRepo.CreateGroup(conv, creatorID); err != nil {
		return nil, err
	}

	for _, uid := range req.MemberIDs {
		if uid == creatorID {
			continue
		}
		ok, err := s.gate.AreFriends(ctx, creatorID, uid)
		if err != nil || !ok {
			continue
		}
		_ = s.convRepo.AddMember(conv.ID, uid, models.MemberRoleMember)
	}
	return conv, nil
}

// AddMember 向群聊添加成员（仅管理员）
func (s *ConversationService) AddMember(ctx context.Context, callerID, conversationID, userID uint) error {
	member, err := s.convRepo.GetMember(conversationID, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorizedConv
		}
		return err
	}
	if member.Role != models.MemberRoleAdmin {
		return ErrUnauthorizedConv
	}
	return s.convRepo.AddMember(conversationID, userID, models.MemberRoleMember)
}

// Leave 退出会话
func (s *ConversationService) Leave(ctx context.Context, callerID, conversationID uint) error {
	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrUnauthorizedConv
	}
	return s.convRepo.RemoveMember(conversationID, callerID)
}

// MarkRead 推进调用者在该会话的 last_read_at 到当前时间
// 幂等且单调：重复调用无副作用，last_read_at 永不回退。
func (s *ConversationService) MarkRead(ctx context.Context, callerID, conversationID uint) error {
	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrUnauthorizedConv
	}
	return s.convRepo.MarkRead(conversationID, callerID, time.Now())
}

// UnreadCount 统计调用者在该会话的未读消息数
func (s *ConversationService) UnreadCount(ctx context.Context, callerID, conversationID uint) (int64, error) {
	member, err := s.convRepo.GetMember(conversationID, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUnauthorizedConv
		}
		return 0, err
	}
	return s.unread.CountUnread(conversationID, callerID, member.LastReadAt)
}

// ConversationDTO 会话列表项
type ConversationDTO struct {
	ID            uint       `json:"id"`
	Type          string     `json:"type"`
	Name          string     `json:"name"`
	AvatarURL     string     `json:"avatar_url"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int64      `json:"unread_count"`
}

// ListConversations 列出调用者的会话，按最近消息倒序并附带未读数
func (s *ConversationService) ListConversations(ctx context.Context, callerID uint) ([]ConversationDTO, error) {
	convs, err := s.convRepo.ListForUser(callerID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationDTO, 0, len(convs))
	for _, c := range convs {
		dto := ConversationDTO{
			ID:            c.ID,
			Type:          c.Type,
			Name:          c.Name,
			AvatarURL:     c.AvatarURL,
			LastMessageAt: c.LastMessageAt,
		}
		if member, err := s.convRepo.GetMember(c.ID, callerID); err == nil {
			if n, err := s.unread.CountUnread(c.ID, callerID, member.LastReadAt); err == nil {
				dto.UnreadCount = n
			}
		}
		// DM 会话显示对端昵称
		if c.Type == models.ConversationTypeDM {
			if ids, err := s.convRepo.ListMemberIDs(c.ID); err == nil {
				for _, id := range ids {
					if id == callerID {
						continue
					}
					if other, err := s.userRepo.GetByID(id); err == nil {
						dto.Name = other.DisplayName
						dto.AvatarURL = other.AvatarURL
					}
				}
			}
		}
		out = append(out, dto)
	}
	return out, nil
}
