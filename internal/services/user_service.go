package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
	"github.com/Gopher0727/StudyHive/internal/utils"
)

// UserRepo 用户服务所需的仓储能力
type UserRepo interface {
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(user *models.User) error
	UpdateStatus(id uint, status string) error
}

// UserBadgeRepo 用户服务所需的徽章查询能力
type UserBadgeRepo interface {
	ListForUser(userID uint) ([]models.ProfileBadge, error)
}

// UserSubscriptionRepo 用户服务所需的订阅查询能力
type UserSubscriptionRepo interface {
	GetForUser(userID uint) (*models.Subscription, error)
}

// UserService 用户资料服务
type UserService struct {
	userRepo  UserRepo
	badgeRepo UserBadgeRepo
	subRepo   UserSubscriptionRepo
}

func NewUserService(userRepo UserRepo, badgeRepo UserBadgeRepo, subRepo UserSubscriptionRepo) *UserService {
	return &UserService{
		userRepo:  userRepo,
		badgeRepo: badgeRepo,
		subRepo:   subRepo,
	}
}

// BadgeDTO 徽章展示项
type BadgeDTO struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	EarnedAt    time.Time `json:"earned_at"`
}

// ProfileDTO 用户资料（含游戏化状态与订阅套餐）
type ProfileDTO struct {
	UserID      uint       `json:"user_id"`
	PublicID    string     `json:"public_id"`
	UserName    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	Bio         string     `json:"bio"`
	Interests   []string   `json:"interests"`
	Status      string     `json:"status"`
	XP          int64      `json:"xp"`
	StreakCount int        `json:"streak_count"`
	Badges      []BadgeDTO `json:"badges"`
	Plan        string     `json:"plan"`
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*ProfileDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.toProfile(user), nil
}

// GetProfileByUsername 根据用户名获取资料（精确匹配）
func (s *UserService) GetProfileByUsername(ctx context.Context, username string) (*ProfileDTO, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.toProfile(user), nil
}

// UpdateProfileRequest 资料更新请求，零值字段不变更
type UpdateProfileRequest struct {
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	Bio         *string   `json:"bio"`
	Interests   *[]string `json:"interests"`
}

// UpdateProfile 更新用户资料（bio 截断到 500 字符）
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*ProfileDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if req.DisplayName != nil {
		user.DisplayName = utils.TrimAndLimit(*req.DisplayName, 50)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Bio != nil {
		user.Bio = utils.TrimAndLimit(*req.Bio, 500)
	}
	if req.Interests != nil {
		raw, err := json.Marshal(*req.Interests)
		if err != nil {
			return nil, ErrValidation
		}
		user.Interests = raw
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return s.toProfile(user), nil
}

// SetStatus 更新在线状态
func (s *UserService) SetStatus(ctx context.Context, userID uint, status string) error {
	if status != "online" && status != "offline" {
		return ErrValidation
	}
	return s.userRepo.UpdateStatus(userID, status)
}

func (s *UserService) toProfile(user *models.User) *ProfileDTO {
	dto := &ProfileDTO{
		UserID:      user.ID,
		PublicID:    user.PublicID,
		UserName:    user.UserName,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		Status:      user.Status,
		XP:          user.XP,
		StreakCount: user.StreakCount,
		Plan:        models.PlanFree,
	}
	if len(user.Interests) > 0 {
		_ = json.Unmarshal(user.Interests, &dto.Interests)
	}

	if s.badgeRepo != nil {
		if rows, err := s.badgeRepo.ListForUser(user.ID); err == nil {
			for _, pb := range rows {
				if pb.Badge == nil {
					continue
				}
				dto.Badges = append(dto.Badges, BadgeDTO{
					Name:        pb.Badge.Name,
					Description: pb.Badge.Description,
					IconURL:     pb.Badge.IconURL,
					EarnedAt:    pb.EarnedAt,
				})
			}
		}
	}
	if s.subRepo != nil {
		if sub, err := s.subRepo.GetForUser(user.ID); err == nil {
			dto.Plan = sub.Plan
		}
	}
	return dto
}
