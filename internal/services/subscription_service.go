package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// 订阅周期：模拟支付按 30 天一个计费周期
const subscriptionPeriod = 30 * 24 * time.Hour

// SubscriptionRepo 订阅服务所需的仓储能力
type SubscriptionRepo interface {
	GetForUser(userID uint) (*models.Subscription, error)
	Upsert(sub *models.Subscription) error
}

// SubscriptionService 订阅服务（模拟支付，无真实扣款）
type SubscriptionService struct {
	subRepo SubscriptionRepo
}

func NewSubscriptionService(subRepo SubscriptionRepo) *SubscriptionService {
	return &SubscriptionService{subRepo: subRepo}
}

// SubscriptionDTO 订阅状态
type SubscriptionDTO struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	InvoiceID        string     `json:"invoice_id,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Checkout 模拟购买 pro 套餐：生成假账单号并开启 30 天周期
func (s *SubscriptionService) Checkout(ctx context.Context, userID uint) (*SubscriptionDTO, error) {
	sub, err := s.subRepo.GetForUser(userID)
	if err != nil {
		return nil, err
	}

	periodEnd := time.Now().Add(subscriptionPeriod)
	sub.UserID = userID
	sub.Plan = models.PlanPro
	sub.Status = models.SubscriptionActive
	sub.InvoiceID = fmt.Sprintf("INV-%s", uuid.NewString())
	sub.CurrentPeriodEnd = &periodEnd

	if err := s.subRepo.Upsert(sub); err != nil {
		return nil, err
	}
	return toSubscriptionDTO(sub), nil
}

// Cancel 取消订阅：pro 权益保留到当前周期结束
func (s *SubscriptionService) Cancel(ctx context.Context, userID uint) (*SubscriptionDTO, error) {
	sub, err := s.subRepo.GetForUser(userID)
	if err != nil {
		return nil, err
	}
	if sub.Plan != models.PlanPro || sub.Status != models.SubscriptionActive {
		return nil, ErrNotFound
	}

	sub.Status = models.SubscriptionCanceled
	if err := s.subRepo.Upsert(sub); err != nil {
		return nil, err
	}
	return toSubscriptionDTO(sub), nil
}

// Status 查询订阅状态，周期已过的订阅惰性降级为 free/expired
func (s *SubscriptionService) Status(ctx context.Context, userID uint) (*SubscriptionDTO, error) {
	sub, err := s.subRepo.GetForUser(userID)
	if err != nil {
		return nil, err
	}

	if sub.Plan == models.PlanPro && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(time.Now()) {
		sub.Plan = models.PlanFree
		sub.Status = models.SubscriptionExpired
		if sub.ID != 0 {
			_ = s.subRepo.Upsert(sub)
		}
	}
	return toSubscriptionDTO(sub), nil
}

// IsPro 判断用户当前是否享有 pro 权益
// canceled 状态在周期结束前仍算 pro。
func (s *SubscriptionService) IsPro(ctx context.Context, userID uint) (bool, error) {
	sub, err := s.subRepo.GetForUser(userID)
	if err != nil {
		return false, err
	}
	if sub.Plan != models.PlanPro {
		return false, nil
	}
	if sub.Status == models.SubscriptionExpired {
		return false, nil
	}
	if sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.Before(time.Now()) {
		return false, nil
	}
	return true, nil
}

func toSubscriptionDTO(sub *models.Subscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		Plan:             sub.Plan,
		Status:           sub.Status,
		InvoiceID:        sub.InvoiceID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
}
