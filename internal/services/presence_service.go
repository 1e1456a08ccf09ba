package services

import (
	"context"
	"time"

	redisclient "github.com/Gopher0727/StudyHive/internal/pkg/redis"
)

// 在线标记的刷新周期，由网关心跳续期
const OnlineTTL = 60 * time.Second

// PresenceConvRepo 输入状态服务所需的会话成员检查能力
type PresenceConvRepo interface {
	IsMember(conversationID, userID uint) (bool, error)
}

// PresenceService 在线与输入状态服务
// 全部状态放 Redis 且带 TTL：断线即消失，不持久化，不保证送达。
type PresenceService struct {
	redisClient redisclient.Client
	convRepo    PresenceConvRepo
}

func NewPresenceService(redisClient redisclient.Client, convRepo PresenceConvRepo) *PresenceService {
	return &PresenceService{
		redisClient: redisClient,
		convRepo:    convRepo,
	}
}

// SetTyping 设置或清除用户在会话中的输入状态
// isTyping 为 true 时写入约 6 秒 TTL 的标记，客户端需周期性刷新。
func (s *PresenceService) SetTyping(ctx context.Context, conversationID, userID uint, isTyping bool) error {
	isMember, err := s.convRepo.IsMember(conversationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrUnauthorizedConv
	}

	if isTyping {
		return s.redisClient.SetTyping(ctx, conversationID, userID, redisclient.DefaultTypingTTL)
	}
	return s.redisClient.ClearTyping(ctx, conversationID, userID)
}

// TypingPeers 列出会话中正在输入的成员（不含调用者本人）
func (s *PresenceService) TypingPeers(ctx context.Context, conversationID, callerID uint) ([]uint, error) {
	isMember, err := s.convRepo.IsMember(conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrUnauthorizedConv
	}

	peers, err := s.redisClient.TypingPeers(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := peers[:0]
	for _, id := range peers {
		if id != callerID {
			out = append(out, id)
		}
	}
	return out, nil
}

// Heartbeat 刷新用户在线标记
func (s *PresenceService) Heartbeat(ctx context.Context, userID uint) error {
	return s.redisClient.SetUserOnline(ctx, userID, OnlineTTL)
}

// IsOnline 检查用户是否在线
func (s *PresenceService) IsOnline(ctx context.Context, userID uint) (bool, error) {
	return s.redisClient.IsUserOnline(ctx, userID)
}

// GoOffline 清除用户在线标记（登出 / 最后一条连接断开）
func (s *PresenceService) GoOffline(ctx context.Context, userID uint) error {
	return s.redisClient.RemoveUserOnline(ctx, userID)
}
