package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// subMockRepo mimics GetForUser returning a zero-value row for users without
// a subscription yet, the way the repository seeds defaults.
type subMockRepo struct {
	rows map[uint]*models.Subscription
}

func newSubMockRepo() *subMockRepo {
	return &subMockRepo{rows: map[uint]*models.Subscription{}}
}

func (m *subMockRepo) GetForUser(userID uint) (*models.Subscription, error) {
	if sub, ok := m.rows[userID]; ok {
		return sub, nil
	}
	return &models.Subscription{UserID: userID, Plan: models.PlanFree, Status: models.SubscriptionActive}, nil
}

func (m *subMockRepo) Upsert(sub *models.Subscription) error {
	if sub.ID == 0 {
		sub.ID = uint(len(m.rows) + 1)
	}
	m.rows[sub.UserID] = sub
	return nil
}

func TestSubscriptionService_Checkout(t *testing.T) {
	ctx := context.Background()
	svc := NewSubscriptionService(newSubMockRepo())

	dto, err := svc.Checkout(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, models.PlanPro, dto.Plan)
	assert.Equal(t, models.SubscriptionActive, dto.Status)
	assert.True(t, strings.HasPrefix(dto.InvoiceID, "INV-"), "mock invoice id")
	require.NotNil(t, dto.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *dto.CurrentPeriodEnd, time.Minute)

	pro, err := svc.IsPro(ctx, 1)
	require.NoError(t, err)
	assert.True(t, pro)
}

func TestSubscriptionService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc := NewSubscriptionService(newSubMockRepo())

	t.Run("cancel without subscription", func(t *testing.T) {
		_, err := svc.Cancel(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("canceled keeps pro until period end", func(t *testing.T) {
		_, err := svc.Checkout(ctx, 2)
		require.NoError(t, err)

		dto, err := svc.Cancel(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionCanceled, dto.Status)

		pro, err := svc.IsPro(ctx, 2)
		require.NoError(t, err)
		assert.True(t, pro, "entitlement survives until the period ends")
	})
}

func TestSubscriptionService_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	repo := newSubMockRepo()
	svc := NewSubscriptionService(repo)

	// Seed an expired pro subscription.
	past := time.Now().Add(-time.Hour)
	repo.rows[3] = &models.Subscription{
		ID: 1, UserID: 3,
		Plan:             models.PlanPro,
		Status:           models.SubscriptionActive,
		CurrentPeriodEnd: &past,
	}

	pro, err := svc.IsPro(ctx, 3)
	require.NoError(t, err)
	assert.False(t, pro)

	dto, err := svc.Status(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, dto.Plan)
	assert.Equal(t, models.SubscriptionExpired, dto.Status)

	// The downgrade was written back.
	assert.Equal(t, models.PlanFree, repo.rows[3].Plan)
}

func TestSubscriptionService_FreeUserStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewSubscriptionService(newSubMockRepo())

	dto, err := svc.Status(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, dto.Plan)

	pro, err := svc.IsPro(ctx, 4)
	require.NoError(t, err)
	assert.False(t, pro)
}
