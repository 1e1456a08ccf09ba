package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/Gopher0727/StudyHive/internal/models"
)

// convMockRepo mirrors the repository semantics that matter here: DM rows are
// unique per unordered pair and MarkRead only ever moves last_read_at forward
// (the SQL update is guarded by last_read_at < ?).
type convMockRepo struct {
	nextID  uint
	convs   map[uint]*models.Conversation
	pairs   map[[2]uint]uint // normalized pair -> conversation id
	members map[uint]map[uint]*models.ConversationMember
	dmCalls int
}

func newConvMockRepo() *convMockRepo {
	return &convMockRepo{
		nextID:  1,
		convs:   map[uint]*models.Conversation{},
		pairs:   map[[2]uint]uint{},
		members: map[uint]map[uint]*models.ConversationMember{},
	}
}

func (m *convMockRepo) GetByID(id uint) (*models.Conversation, error) {
	conv, ok := m.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (m *convMockRepo) FindOrCreateDM(a, b uint) (*models.Conversation, error) {
	m.dmCalls++
	key := pairKey(a, b)
	if id, ok := m.pairs[key]; ok {
		return m.convs[id], nil
	}
	pk := fmt.Sprintf("%d:%d", key[0], key[1])
	conv := &models.Conversation{ID: m.nextID, Type: models.ConversationTypeDM, PairKey: &pk}
	m.nextID++
	m.convs[conv.ID] = conv
	m.pairs[key] = conv.ID
	m.members[conv.ID] = map[uint]*models.ConversationMember{
		a: {ConversationID: conv.ID, UserID: a},
		b: {ConversationID: conv.ID, UserID: b},
	}
	return conv, nil
}

func (m *convMockRepo) CreateGroup(conv *models.Conversation, creatorID uint) error {
	conv.ID = m.nextID
	m.nextID++
	m.convs[conv.ID] = conv
	m.members[conv.ID] = map[uint]*models.ConversationMember{
		creatorID: {ConversationID: conv.ID, UserID: creatorID, Role: models.MemberRoleAdmin},
	}
	return nil
}

func (m *convMockRepo) AddMember(conversationID, userID uint, role string) error {
	if m.members[conversationID] == nil {
		m.members[conversationID] = map[uint]*models.ConversationMember{}
	}
	m.members[conversationID][userID] = &models.ConversationMember{
		ConversationID: conversationID, UserID: userID, Role: role,
	}
	return nil
}

func (m *convMockRepo) RemoveMember(conversationID, userID uint) error {
	delete(m.members[conversationID], userID)
	return nil
}

func (m *convMockRepo) GetMember(conversationID, userID uint) (*models.ConversationMember, error) {
	member, ok := m.members[conversationID][userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return member, nil
}

func (m *convMockRepo) IsMember(conversationID, userID uint) (bool, error) {
	_, ok := m.members[conversationID][userID]
	return ok, nil
}

func (m *convMockRepo) ListMemberIDs(conversationID uint) ([]uint, error) {
	var out []uint
	for id := range m.members[conversationID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *convMockRepo) ListForUser(userID uint) ([]models.Conversation, error) {
	var out []models.Conversation
	for id, members := range m.members {
		if _, ok := members[userID]; ok {
			out = append(out, *m.convs[id])
		}
	}
	return out, nil
}

func (m *convMockRepo) MarkRead(conversationID, userID uint, readAt time.Time) error {
	member, ok := m.members[conversationID][userID]
	if !ok {
		return nil
	}
	if member.LastReadAt.Before(readAt) {
		member.LastReadAt = readAt
	}
	return nil
}

type convMockUserRepo struct {
	users map[uint]*models.User
}

func (m *convMockUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (m *convMockUserRepo) GetByUsername(username string) (*models.User, error) {
	for _, u := range m.users {
		if u.UserName == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type convMockUnread struct{}

func (m *convMockUnread) CountUnread(conversationID, userID uint, lastReadAt time.Time) (int64, error) {
	return 0, nil
}

func newConvFixture(friends bool) (*ConversationService, *convMockRepo) {
	repo := newConvMockRepo()
	users := &convMockUserRepo{users: map[uint]*models.User{
		1: {ID: 1, UserName: "alice"},
		2: {ID: 2, UserName: "bob"},
	}}
	return NewConversationService(repo, users, &convMockUnread{}, &msgMockGate{friends: friends}), repo
}

func TestConversationService_ResolveDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("requires friendship", func(t *testing.T) {
		svc, _ := newConvFixture(false)
		_, err := svc.ResolveDirect(ctx, 1, ResolveTarget{UserID: 2})
		assert.ErrorIs(t, err, ErrMustBeFriends)
	})

	t.Run("unknown username", func(t *testing.T) {
		svc, _ := newConvFixture(true)
		_, err := svc.ResolveDirect(ctx, 1, ResolveTarget{Username: "nobody"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("self target rejected", func(t *testing.T) {
		svc, _ := newConvFixture(true)
		_, err := svc.ResolveDirect(ctx, 1, ResolveTarget{UserID: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("repeated resolves converge on one conversation", func(t *testing.T) {
		svc, repo := newConvFixture(true)

		first, err := svc.ResolveDirect(ctx, 1, ResolveTarget{UserID: 2})
		require.NoError(t, err)

		// Resolving again, by either side and by username, returns the same row.
		second, err := svc.ResolveDirect(ctx, 2, ResolveTarget{UserID: 1})
		require.NoError(t, err)
		third, err := svc.ResolveDirect(ctx, 1, ResolveTarget{Username: "bob"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ID, third.ID)
		assert.Len(t, repo.convs, 1)

		// Both users are members of the resolved conversation.
		for _, userID := range []uint{1, 2} {
			ok, err := repo.IsMember(first.ID, userID)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})
}

func TestConversationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	svc, repo := newConvFixture(true)

	conv, err := svc.ResolveDirect(ctx, 1, ResolveTarget{UserID: 2})
	require.NoError(t, err)

	t.Run("non-member rejected", func(t *testing.T) {
		assert.ErrorIs(t, svc.MarkRead(ctx, 9, conv.ID), ErrUnauthorizedConv)
	})

	t.Run("twice in a row keeps the later timestamp", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, 1, conv.ID))
		member, err := repo.GetMember(conv.ID, 1)
		require.NoError(t, err)
		first := member.LastReadAt

		require.NoError(t, svc.MarkRead(ctx, 1, conv.ID))
		member, err = repo.GetMember(conv.ID, 1)
		require.NoError(t, err)
		assert.False(t, member.LastReadAt.Before(first), "last_read_at never moves backward")
	})
}

// TestProperty_MarkReadMonotonic drives the repository's guarded update with
// arbitrary timestamp sequences: the stored cursor must always equal the
// maximum timestamp seen so far, regardless of call order.
func TestProperty_MarkReadMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		repo := newConvMockRepo()
		conv, err := repo.FindOrCreateDM(1, 2)
		if err != nil {
			rt.Fatalf("find-or-create failed: %v", err)
		}

		base := time.Unix(1700000000, 0)
		offsets := rapid.SliceOfN(rapid.Int64Range(-3600, 3600), 1, 50).Draw(rt, "offsets")

		var maxSeen time.Time
		for _, off := range offsets {
			at := base.Add(time.Duration(off) * time.Second)
			if err := repo.MarkRead(conv.ID, 1, at); err != nil {
				rt.Fatalf("mark read failed: %v", err)
			}
			if at.After(maxSeen) {
				maxSeen = at
			}

			member, err := repo.GetMember(conv.ID, 1)
			if err != nil {
				rt.Fatalf("get member failed: %v", err)
			}
			if !member.LastReadAt.Equal(maxSeen) {
				rt.Fatalf("cursor %v, expected max %v", member.LastReadAt, maxSeen)
			}
		}
	})
}
