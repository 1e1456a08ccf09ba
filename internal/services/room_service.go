package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
	"github.com/Gopher0727/StudyHive/internal/utils"
)

// 免费套餐可同时拥有的自习室数量
const FreePlanRoomLimit = 2

// 自习室容量边界
const (
	MinRoomCapacity = 2
	MaxRoomCapacity = 50
)

// RoomRepo 自习室服务所需的仓储能力
type RoomRepo interface {
	Create(room *models.Room) error
	GetByID(id uint) (*models.Room, error)
	GetByJoinCode(code string) (*models.Room, error)
	AddMember(roomID, userID uint) error
	RemoveMember(roomID, userID uint) error
	IsMember(roomID, userID uint) (bool, error)
	CountOwnedBy(userID uint) (int64, error)
	ListPublic(subject string, limit, offset int) ([]models.Room, int64, error)
	ListForUser(userID uint) ([]models.Room, error)
}

// RoomConvRepo 自习室背后群聊会话的仓储能力
type RoomConvRepo interface {
	CreateGroup(conv *models.Conversation, creatorID uint) error
	AddMember(conversationID, userID uint, role string) error
	RemoveMember(conversationID, userID uint) error
}

// ProChecker pro 权益检查（由 SubscriptionService 实现）
type ProChecker interface {
	IsPro(ctx context.Context, userID uint) (bool, error)
}

// RoomInviteNotifier 自习室邀请通知接口（由 NotificationService 实现）
type RoomInviteNotifier interface {
	NotifyRoomInvite(ctx context.Context, targetID, roomID, inviterID uint) error
}

// RoomService 自习室服务：每个自习室挂一个群聊会话，成员进出两边同步
type RoomService struct {
	roomRepo RoomRepo
	convRepo RoomConvRepo
	pro      ProChecker
	notifier RoomInviteNotifier
}

func NewRoomService(roomRepo RoomRepo, convRepo RoomConvRepo, pro ProChecker, notifier RoomInviteNotifier) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		convRepo: convRepo,
		pro:      pro,
		notifier: notifier,
	}
}

// CreateRoomRequest 创建自习室请求
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	MaxMembers  int    `json:"max_members"`
	IsPublic    *bool  `json:"is_public"`
}

// RoomDTO 自习室展示项
type RoomDTO struct {
	ID          uint   `json:"id"`
	PublicID    string `json:"public_id"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	OwnerID     uint   `json:"owner_id"`
	MaxMembers  int    `json:"max_members"`
	MemberCount int    `json:"member_count"`
	IsPublic    bool   `json:"is_public"`
	JoinCode    string `json:"join_code,omitempty"`

	ConversationID uint      `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRoom 创建自习室
// 实现逻辑：免费用户受数量配额限制（pro 不限）；先建背后的群聊会话，
// 再带加入码建自习室；创建者同时成为两边的管理员/房主。
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uint, req *CreateRoomRequest) (*RoomDTO, error) {
	if ownerID == 0 {
		return nil, ErrNotAuthenticated
	}

	name := utils.TrimAndLimit(req.Name, 100)
	if name == "" {
		return nil, ErrValidation
	}

	isPro := false
	if s.pro != nil {
		var err error
		isPro, err = s.pro.IsPro(ctx, ownerID)
		if err != nil {
			return nil, err
		}
	}
	if !isPro {
		owned, err := s.roomRepo.CountOwnedBy(ownerID)
		if err != nil {
			return nil, err
		}
		if owned >= FreePlanRoomLimit {
			return nil, ErrRoomLimitExceeded
		}
	}

	maxMembers := req.MaxMembers
	if maxMembers == 0 {
		maxMembers = 8
	}
	if maxMembers < MinRoomCapacity || maxMembers > MaxRoomCapacity {
		return nil, ErrValidation
	}

	conv := &models.Conversation{
		Type:      models.ConversationTypeGroup,
		Name:      name,
		CreatedBy: ownerID,
	}
	if err := s.convRepo.CreateGroup(conv, ownerID); err != nil {
		return nil, err
	}

	room := &models.Room{
		Name:           name,
		Subject:        req.Subject,
		Description:    utils.TrimAndLimit(req.Description, 500),
		OwnerID:        ownerID,
		MaxMembers:     maxMembers,
		IsPublic:       true,
		JoinCode:       utils.GenerateJoinCode(),
		ConversationID: conv.ID,
	}
	if req.IsPublic != nil {
		room.IsPublic = *req.IsPublic
	}
	if err := s.roomRepo.Create(room); err != nil {
		return nil, err
	}

	return toRoomDTO(room, true), nil
}

// JoinByCode 通过加入码加入自习室（私密房间的唯一入口）
func (s *RoomService) JoinByCode(ctx context.Context, userID uint, code string) (*RoomDTO, error) {
	room, err := s.roomRepo.GetByJoinCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.join(ctx, userID, room)
}

// JoinPublic 加入公开自习室
func (s *RoomService) JoinPublic(ctx context.Context, userID, roomID uint) (*RoomDTO, error) {
	room, err := s.roomRepo.GetByID(roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !room.IsPublic {
		return nil, ErrNotFound
	}
	return s.join(ctx, userID, room)
}

// join 容量检查后同时加入自习室与背后的群聊会话
func (s *RoomService) join(ctx context.Context, userID uint, room *models.Room) (*RoomDTO, error) {
	isMember, err := s.roomRepo.IsMember(room.ID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, ErrAlreadyRoomMember
	}
	if room.MemberCount >= room.MaxMembers {
		return nil, ErrRoomFull
	}

	if err := s.roomRepo.AddMember(room.ID, userID); err != nil {
		return nil, err
	}
	if err := s.convRepo.AddMember(room.ConversationID, userID, models.MemberRoleMember); err != nil {
		return nil, err
	}

	room.MemberCount++
	return toRoomDTO(room, true), nil
}

// Leave 退出自习室（房主不可退出）
func (s *RoomService) Leave(ctx context.Context, userID, roomID uint) error {
	room, err := s.roomRepo.GetByID(roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if room.OwnerID == userID {
		return ErrRoomOwnerLeave
	}

	if err := s.roomRepo.RemoveMember(roomID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotRoomMember
		}
		return err
	}
	return s.convRepo.RemoveMember(room.ConversationID, userID)
}

// Invite 邀请用户加入自习室（仅成员可邀请，发 room_invite 通知）
func (s *RoomService) Invite(ctx context.Context, inviterID, roomID, targetID uint) error {
	isMember, err := s.roomRepo.IsMember(roomID, inviterID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotRoomMember
	}

	if s.notifier != nil {
		return s.notifier.NotifyRoomInvite(ctx, targetID, roomID, inviterID)
	}
	return nil
}

// ListPublic 列出公开自习室，可按学科过滤
func (s *RoomService) ListPublic(ctx context.Context, subject string, limit, offset int) ([]RoomDTO, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rooms, total, err := s.roomRepo.ListPublic(subject, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		out = append(out, *toRoomDTO(&rooms[i], false))
	}
	return out, total, nil
}

// ListMine 列出用户加入的自习室（含加入码）
func (s *RoomService) ListMine(ctx context.Context, userID uint) ([]RoomDTO, error) {
	rooms, err := s.roomRepo.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		out = append(out, *toRoomDTO(&rooms[i], true))
	}
	return out, nil
}

// toRoomDTO 转换为展示项；加入码仅对成员可见
func toRoomDTO(room *models.Room, withJoinCode bool) *RoomDTO {
	dto := &RoomDTO{
		ID:             room.ID,
		PublicID:       room.PublicID,
		Name:           room.Name,
		Subject:        room.Subject,
		Description:    room.Description,
		OwnerID:        room.OwnerID,
		MaxMembers:     room.MaxMembers,
		MemberCount:    room.MemberCount,
		IsPublic:       room.IsPublic,
		ConversationID: room.ConversationID,
		CreatedAt:      room.CreatedAt,
	}
	if withJoinCode {
		dto.JoinCode = room.JoinCode
	}
	return dto
}
