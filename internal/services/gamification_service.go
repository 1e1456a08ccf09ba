package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// 经验值规则
const (
	XPPerMessage  = 5
	XPPerStudyDay = 20
)

// GamificationUserRepo 游戏化服务所需的用户仓储能力
type GamificationUserRepo interface {
	GetByID(id uint) (*models.User, error)
	Update(user *models.User) error
	AddXP(id uint, delta int64) error
	IncrementMessagesSent(id uint) error
}

// GamificationBadgeRepo 游戏化服务所需的徽章仓储能力
type GamificationBadgeRepo interface {
	ListCatalog() ([]models.Badge, error)
	Award(userID, badgeID uint) error
	ListForUser(userID uint) ([]models.ProfileBadge, error)
}

// GamificationService 游戏化服务：经验值、连续学习天数与徽章授予
type GamificationService struct {
	userRepo  GamificationUserRepo
	badgeRepo GamificationBadgeRepo
}

func NewGamificationService(userRepo GamificationUserRepo, badgeRepo GamificationBadgeRepo) *GamificationService {
	return &GamificationService{
		userRepo:  userRepo,
		badgeRepo: badgeRepo,
	}
}

// AwardXP 为用户增加经验值，非正增量直接忽略
func (s *GamificationService) AwardXP(ctx context.Context, userID uint, delta int64) error {
	if delta <= 0 {
		return nil
	}
	if err := s.userRepo.AddXP(userID, delta); err != nil {
		return err
	}
	return s.sweepBadges(ctx, userID)
}

// RecordStudyActivity 记录一次学习活动并维护连续天数
// 同一天内重复调用不变；昨天有记录则 +1；中断则重置为 1。
func (s *GamificationService) RecordStudyActivity(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	today := truncateToDay(time.Now())
	if user.LastStudyDate != nil {
		last := truncateToDay(*user.LastStudyDate)
		switch {
		case last.Equal(today):
			return nil
		case last.Equal(today.AddDate(0, 0, -1)):
			user.StreakCount++
		default:
			user.StreakCount = 1
		}
	} else {
		user.StreakCount = 1
	}
	user.LastStudyDate = &today

	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	if err := s.userRepo.AddXP(userID, XPPerStudyDay); err != nil {
		return err
	}
	return s.sweepBadges(ctx, userID)
}

// OnMessageSent 消息发送后的游戏化副作用：计数、经验值与学习记录
func (s *GamificationService) OnMessageSent(ctx context.Context, userID uint) error {
	if err := s.userRepo.IncrementMessagesSent(userID); err != nil {
		return err
	}
	if err := s.userRepo.AddXP(userID, XPPerMessage); err != nil {
		return err
	}
	return s.RecordStudyActivity(ctx, userID)
}

// sweepBadges 对照目录检查并授予满足条件的徽章
// Award 幂等（唯一索引冲突不重复插入），多次扫描无副作用。
func (s *GamificationService) sweepBadges(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	catalog, err := s.badgeRepo.ListCatalog()
	if err != nil {
		return err
	}

	for _, badge := range catalog {
		var current int64
		switch badge.RequirementType {
		case models.BadgeRequirementXP:
			current = user.XP
		case models.BadgeRequirementStreak:
			current = int64(user.StreakCount)
		case models.BadgeRequirementMessages:
			current = user.MessagesSent
		default:
			continue
		}
		if current >= badge.RequirementValue {
			if err := s.badgeRepo.Award(userID, badge.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
