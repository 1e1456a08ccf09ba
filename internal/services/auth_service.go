package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
	"github.com/Gopher0727/StudyHive/internal/utils"
	pkgutils "github.com/Gopher0727/StudyHive/pkg/utils"
)

// AuthUserRepo 认证服务所需的用户仓储能力
type AuthUserRepo interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	UpdateStatus(id uint, status string) error
}

// AuthService 认证服务
type AuthService struct {
	userRepo AuthUserRepo
}

func NewAuthService(userRepo AuthUserRepo) *AuthService {
	return &AuthService{userRepo: userRepo}
}

type RegisterRequest struct {
	UserName    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type AuthResponse struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"username"`
	Token    string `json:"token"`
}

// Register 用户注册
// 实现逻辑：校验用户名/邮箱/密码格式，检查重名，bcrypt 哈希后落库，签发 JWT
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	if !utils.ValidateUserName(req.UserName) {
		return nil, ErrValidation
	}
	if !utils.ValidateEmail(req.Email) {
		return nil, ErrValidation
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, ErrValidation
	}

	if _, err := s.userRepo.GetByUsername(req.UserName); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(req.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
	}
	if user.DisplayName == "" {
		user.DisplayName = req.UserName
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	token, err := pkgutils.GenerateToken(user.ID, user.UserName, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{UserID: user.ID, UserName: user.UserName, Token: token}, nil
}

type LoginRequest struct {
	UserName string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(req.UserName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := pkgutils.GenerateToken(user.ID, user.UserName, user.Email)
	if err != nil {
		return nil, err
	}

	_ = s.userRepo.UpdateStatus(user.ID, "online")

	return &AuthResponse{UserID: user.ID, UserName: user.UserName, Token: token}, nil
}

// Logout 用户登出
func (s *AuthService) Logout(userID uint) error {
	return s.userRepo.UpdateStatus(userID, "offline")
}
