package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/StudyHive/internal/models"
	"github.com/Gopher0727/StudyHive/utils/snowflake"
)

type msgMockRepo struct {
	created []*models.Message
}

func (m *msgMockRepo) Create(msg *models.Message) error {
	msg.CreatedAt = time.Now()
	m.created = append(m.created, msg)
	return nil
}

func (m *msgMockRepo) GetByID(id int64) (*models.Message, error) {
	for _, msg := range m.created {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *msgMockRepo) GetRecent(conversationID uint, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.created {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *msgMockRepo) GetAfter(conversationID uint, after time.Time, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.created {
		if msg.ConversationID == conversationID && msg.CreatedAt.After(after) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

type msgMockConvRepo struct {
	convs      map[uint]*models.Conversation
	members    map[uint][]uint
	touchCalls int
}

func (m *msgMockConvRepo) GetByID(id uint) (*models.Conversation, error) {
	conv, ok := m.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (m *msgMockConvRepo) IsMember(conversationID, userID uint) (bool, error) {
	for _, id := range m.members[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *msgMockConvRepo) ListMemberIDs(conversationID uint) ([]uint, error) {
	return m.members[conversationID], nil
}

func (m *msgMockConvRepo) TouchLastMessageAt(conversationID uint, at time.Time) error {
	m.touchCalls++
	return nil
}

type msgMockUserRepo struct{}

func (m *msgMockUserRepo) GetByID(id uint) (*models.User, error) {
	return &models.User{ID: id, UserName: "user", DisplayName: "User"}, nil
}

type msgMockGate struct {
	friends bool
}

func (m *msgMockGate) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	return m.friends, nil
}

type msgMockNotifier struct {
	targets []uint
}

func (m *msgMockNotifier) NotifyNewMessage(ctx context.Context, targetID, conversationID, senderID uint, preview string) error {
	m.targets = append(m.targets, targetID)
	return nil
}

type msgMockRewarder struct {
	calls int
}

func (m *msgMockRewarder) OnMessageSent(ctx context.Context, userID uint) error {
	m.calls++
	return nil
}

type msgFixture struct {
	svc      *MessageService
	repo     *msgMockRepo
	conv     *msgMockConvRepo
	gate     *msgMockGate
	notifier *msgMockNotifier
	rewarder *msgMockRewarder
}

func newMsgFixture(t *testing.T, convType string) *msgFixture {
	t.Helper()
	gen, err := snowflake.NewGenerator(snowflake.Config{DatacenterID: 1, WorkerID: 1})
	require.NoError(t, err)

	f := &msgFixture{
		repo: &msgMockRepo{},
		conv: &msgMockConvRepo{
			convs:   map[uint]*models.Conversation{1: {ID: 1, Type: convType}},
			members: map[uint][]uint{1: {1, 2}},
		},
		gate:     &msgMockGate{friends: true},
		notifier: &msgMockNotifier{},
		rewarder: &msgMockRewarder{},
	}
	f.svc = NewMessageService(f.repo, f.conv, &msgMockUserRepo{}, f.gate, nil, gen, f.notifier, f.rewarder)
	return f
}

func TestValidateContent(t *testing.T) {
	t.Run("whitespace only rejected", func(t *testing.T) {
		_, err := ValidateContent("  ")
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := ValidateContent("")
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("5001 characters rejected", func(t *testing.T) {
		_, err := ValidateContent(strings.Repeat("a", 5001))
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("5000 characters accepted", func(t *testing.T) {
		out, err := ValidateContent(strings.Repeat("a", 5000))
		require.NoError(t, err)
		assert.Len(t, out, 5000)
	})

	t.Run("limit counts characters not bytes", func(t *testing.T) {
		// 5000 CJK characters are 15000 bytes but still within the limit.
		out, err := ValidateContent(strings.Repeat("学", 5000))
		require.NoError(t, err)
		assert.Equal(t, 5000, len([]rune(out)))

		_, err = ValidateContent(strings.Repeat("学", 5001))
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("surrounding whitespace trimmed", func(t *testing.T) {
		out, err := ValidateContent("  hello \n")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})
}

func TestMessageService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid content writes nothing", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeDM)
		_, err := f.svc.SendMessage(ctx, 1, 1, &SendMessageRequest{Content: "   "})
		assert.ErrorIs(t, err, ErrInvalidContent)
		assert.Empty(t, f.repo.created)
		assert.Zero(t, f.conv.touchCalls)
	})

	t.Run("non-member rejected", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeGroup)
		_, err := f.svc.SendMessage(ctx, 9, 1, &SendMessageRequest{Content: "hi"})
		assert.ErrorIs(t, err, ErrUnauthorizedConv)
		assert.Empty(t, f.repo.created)
	})

	t.Run("revoked friendship blocks DM send", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeDM)
		f.gate.friends = false
		_, err := f.svc.SendMessage(ctx, 1, 1, &SendMessageRequest{Content: "hi"})
		assert.ErrorIs(t, err, ErrUnauthorizedConv)
		assert.Empty(t, f.repo.created)
	})

	t.Run("successful send persists and fans out", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeDM)
		dto, err := f.svc.SendMessage(ctx, 1, 1, &SendMessageRequest{Content: " Hello "})
		require.NoError(t, err)

		assert.Equal(t, "Hello", dto.Content, "content is stored trimmed")
		assert.NotZero(t, dto.ID)
		require.Len(t, f.repo.created, 1)
		assert.Equal(t, 1, f.conv.touchCalls)
		assert.Equal(t, 1, f.rewarder.calls)
		// Only the other member is notified, never the sender.
		assert.Equal(t, []uint{2}, f.notifier.targets)
	})

	t.Run("group send skips friendship gate", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeGroup)
		f.gate.friends = false
		_, err := f.svc.SendMessage(ctx, 1, 1, &SendMessageRequest{Content: "hi"})
		assert.NoError(t, err)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		f := newMsgFixture(t, models.ConversationTypeDM)
		_, err := f.svc.SendMessage(ctx, 1, 42, &SendMessageRequest{Content: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMessageService_GetMessages(t *testing.T) {
	ctx := context.Background()
	f := newMsgFixture(t, models.ConversationTypeGroup)

	_, err := f.svc.SendMessage(ctx, 1, 1, &SendMessageRequest{Content: "one"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, 2, 1, &SendMessageRequest{Content: "two"})
	require.NoError(t, err)

	t.Run("member reads history", func(t *testing.T) {
		msgs, err := f.svc.GetMessages(ctx, 1, 1, 50)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("non-member rejected", func(t *testing.T) {
		_, err := f.svc.GetMessages(ctx, 9, 1, 50)
		assert.ErrorIs(t, err, ErrUnauthorizedConv)
	})

	t.Run("incremental fetch honors after", func(t *testing.T) {
		msgs, err := f.svc.GetMessagesAfter(ctx, 1, 1, time.Now().Add(-time.Minute), 50)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)

		msgs, err = f.svc.GetMessagesAfter(ctx, 1, 1, time.Now().Add(time.Minute), 50)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
