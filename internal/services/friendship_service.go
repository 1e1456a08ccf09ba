package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// FriendshipRepo 好友服务所需的仓储能力
type FriendshipRepo interface {
	Create(f *models.Friendship) error
	GetByPair(a, b uint) (*models.Friendship, error)
	AreFriends(a, b uint) (bool, error)
	UpdateStatus(id uint, status models.FriendshipStatus) error
	Delete(id uint) error
	DeletePair(a, b uint) error
	ListAccepted(userID uint) ([]models.Friendship, error)
	ListPendingFor(userID uint) ([]models.Friendship, error)
}

// FriendshipUserRepo 好友服务所需的用户查询能力
type FriendshipUserRepo interface {
	GetByID(id uint) (*models.User, error)
}

// FriendshipNotifier 好友事件通知接口（由 NotificationService 实现）
type FriendshipNotifier interface {
	NotifyFriendRequest(ctx context.Context, targetID uint, friendshipID uint, fromUserID uint, message string) error
}

// FriendshipService 好友关系服务，同时承担 DM 的准入闸门
type FriendshipService struct {
	friendRepo FriendshipRepo
	userRepo   FriendshipUserRepo
	notifier   FriendshipNotifier
}

func NewFriendshipService(friendRepo FriendshipRepo, userRepo FriendshipUserRepo, notifier FriendshipNotifier) *FriendshipService {
	return &FriendshipService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

// AreFriends 检查无序对 (a, b) 是否为已接受的好友
// 只读闸门：只有 accepted 返回 true，pending/blocked/无记录一律 false；
// 存储错误原样上抛，不做静默重试。
func (s *FriendshipService) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	ok, err := s.friendRepo.AreFriends(a, b)
	if err != nil {
		return false, fmt.Errorf("查询好友关系失败: %w", err)
	}
	return ok, nil
}

// SendRequest 发起好友请求
// 实现逻辑：拒绝自己加自己；已有记录时按状态给出明确错误；否则创建 pending
// 记录并向对方发送 friend_request 通知（通知失败不影响请求本身）。
func (s *FriendshipService) SendRequest(ctx context.Context, requesterID, targetID uint, message string) (*models.Friendship, error) {
	if requesterID == targetID {
		return nil, ErrSelfFriendship
	}

	if _, err := s.userRepo.GetByID(targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	existing, err := s.friendRepo.GetByPair(requesterID, targetID)
	if err == nil {
		switch existing.Status {
		case models.FriendshipBlocked:
			return nil, ErrFriendshipBlocked
		default:
			return nil, ErrFriendshipExists
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	f := &models.Friendship{
		LowID:       requesterID,
		HighID:      targetID,
		RequesterID: requesterID,
		Status:      models.FriendshipPending,
	}
	if err := s.friendRepo.Create(f); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyFriendRequest(ctx, targetID, f.ID, requesterID, message)
	}

	return f, nil
}

// AcceptRequest 接受好友请求（仅被请求方可操作）
func (s *FriendshipService) AcceptRequest(ctx context.Context, userID, friendshipID uint) error {
	f, err := s.getPendingFor(userID, friendshipID)
	if err != nil {
		return err
	}
	return s.friendRepo.UpdateStatus(f.ID, models.FriendshipAccepted)
}

// DeclineRequest 拒绝好友请求（删除记录，允许之后重新发起）
func (s *FriendshipService) DeclineRequest(ctx context.Context, userID, friendshipID uint) error {
	f, err := s.getPendingFor(userID, friendshipID)
	if err != nil {
		return err
	}
	return s.friendRepo.Delete(f.ID)
}

// Unfriend 解除好友关系（任意一方可操作）
func (s *FriendshipService) Unfriend(ctx context.Context, userID, otherID uint) error {
	f, err := s.friendRepo.GetByPair(userID, otherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if f.Status != models.FriendshipAccepted {
		return ErrNotFound
	}
	return s.friendRepo.Delete(f.ID)
}

// Block 屏蔽用户：清除既有记录后写入 blocked 行，双向生效
func (s *FriendshipService) Block(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return ErrSelfFriendship
	}
	if err := s.friendRepo.DeletePair(userID, targetID); err != nil {
		return err
	}
	f := &models.Friendship{
		LowID:       userID,
		HighID:      targetID,
		RequesterID: userID,
		Status:      models.FriendshipBlocked,
	}
	return s.friendRepo.Create(f)
}

// FriendDTO 好友列表项
type FriendDTO struct {
	UserID      uint   `json:"user_id"`
	UserName    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Status      string `json:"status"`
}

// ListFriends 列出用户的所有好友
func (s *FriendshipService) ListFriends(ctx context.Context, userID uint) ([]FriendDTO, error) {
	rows, err := s.friendRepo.ListAccepted(userID)
	if err != nil {
		return nil, err
	}

	friends := make([]FriendDTO, 0, len(rows))
	for _, f := range rows {
		other, err := s.userRepo.GetByID(f.Other(userID))
		if err != nil {
			continue // 对端账号可能已注销
		}
		friends = append(friends, FriendDTO{
			UserID:      other.ID,
			UserName:    other.UserName,
			DisplayName: other.DisplayName,
			AvatarURL:   other.AvatarURL,
			Status:      other.Status,
		})
	}
	return friends, nil
}

// PendingRequestDTO 待处理请求项
type PendingRequestDTO struct {
	FriendshipID uint   `json:"friendship_id"`
	FromUserID   uint   `json:"from_user_id"`
	FromUserName string `json:"from_username"`
}

// ListPendingRequests 列出发给该用户、等待处理的好友请求
func (s *FriendshipService) ListPendingRequests(ctx context.Context, userID uint) ([]PendingRequestDTO, error) {
	rows, err := s.friendRepo.ListPendingFor(userID)
	if err != nil {
		return nil, err
	}

	reqs := make([]PendingRequestDTO, 0, len(rows))
	for _, f := range rows {
		from, err := s.userRepo.GetByID(f.RequesterID)
		if err != nil {
			continue
		}
		reqs = append(reqs, PendingRequestDTO{
			FriendshipID: f.ID,
			FromUserID:   from.ID,
			FromUserName: from.UserName,
		})
	}
	return reqs, nil
}

func (s *FriendshipService) getPendingFor(userID, friendshipID uint) (*models.Friendship, error) {
	rows, err := s.friendRepo.ListPendingFor(userID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == friendshipID {
			return &rows[i], nil
		}
	}
	return nil, ErrNotRequestTarget
}
