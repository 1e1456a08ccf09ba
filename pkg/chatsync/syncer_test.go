package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/StudyHive/internal/services"
)

// mockStore is an in-memory Store that records calls and lets tests control
// the outcome and timing of each operation.
type mockStore struct {
	mu sync.Mutex

	history      []Message
	historyErr   error
	historyGate  chan struct{} // when set, History blocks until the channel is closed
	historyCalls int

	sendErr   error
	sendHook  func() // runs between the optimistic insert and the ack
	sendCalls int
	nextID    int64
	nextSeq   uint
	senderID  uint

	markReadCalls []time.Time
	lastReadAt    time.Time
}

func newMockStore() *mockStore {
	return &mockStore{nextID: 1000, nextSeq: 1, senderID: 1}
}

func (m *mockStore) History(ctx context.Context, conversationID uint, limit int) ([]Message, error) {
	m.mu.Lock()
	m.historyCalls++
	gate := m.historyGate
	history, err := m.history, m.historyErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (m *mockStore) Send(ctx context.Context, conversationID uint, content string) (*Message, error) {
	m.mu.Lock()
	m.sendCalls++
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return nil, err
	}
	msg := Message{
		ID:             fmt.Sprintf("msg-%d", m.nextID),
		SeqID:          m.nextSeq,
		ConversationID: conversationID,
		SenderID:       m.senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	m.nextID++
	m.nextSeq++
	hook := m.sendHook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &msg, nil
}

func (m *mockStore) MarkRead(ctx context.Context, conversationID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadCalls = append(m.markReadCalls, at)
	if at.After(m.lastReadAt) {
		m.lastReadAt = at
	}
	return nil
}

// mockSubscriber hands out a controllable event channel and counts teardowns.
type mockSubscriber struct {
	mu      sync.Mutex
	events  chan Message
	cancels int
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{events: make(chan Message, 64)}
}

func (m *mockSubscriber) Subscribe(conversationID uint) (<-chan Message, func(), error) {
	return m.events, func() {
		m.mu.Lock()
		m.cancels++
		m.mu.Unlock()
	}, nil
}

func (m *mockSubscriber) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

func historyMsg(id string, seq uint, sender uint, content string, at time.Time) Message {
	return Message{ID: id, SeqID: seq, ConversationID: 1, SenderID: sender, Content: content, CreatedAt: at}
}

func TestSyncer_OpenLoadsHistoryAscending(t *testing.T) {
	store := newMockStore()
	base := time.Now()
	store.history = []Message{
		historyMsg("a", 1, 2, "first", base),
		historyMsg("b", 2, 2, "second", base.Add(time.Second)),
		historyMsg("c", 3, 1, "third", base.Add(2*time.Second)),
	}
	sub := newMockSubscriber()
	s := NewSyncer(store, sub, 1, 1)

	require.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	assert.Equal(t, StateLive, s.State())
	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
	assert.Equal(t, "c", msgs[2].ID)

	// Opening an already-live syncer is an error, not a reload.
	assert.ErrorIs(t, s.Open(context.Background()), ErrAlreadyOpen)
	assert.Equal(t, 1, store.historyCalls)
}

func TestSyncer_OpenFailureIsRetryable(t *testing.T) {
	store := newMockStore()
	store.historyErr = errors.New("backend unavailable")
	sub := newMockSubscriber()
	s := NewSyncer(store, sub, 1, 1)

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())

	// A later retry from IDLE succeeds.
	store.mu.Lock()
	store.historyErr = nil
	store.mu.Unlock()
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()
	assert.Equal(t, StateLive, s.State())
}

func TestSyncer_SendValidation(t *testing.T) {
	store := newMockStore()
	sub := newMockSubscriber()
	s := NewSyncer(store, sub, 1, 1)
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	t.Run("whitespace only fails with no store call", func(t *testing.T) {
		_, err := s.Send(context.Background(), "   ")
		assert.ErrorIs(t, err, services.ErrInvalidContent)
		assert.Equal(t, 0, store.sendCalls)
		assert.Empty(t, s.Messages())
	})

	t.Run("5001 characters fails with no store call", func(t *testing.T) {
		_, err := s.Send(context.Background(), strings.Repeat("a", 5001))
		assert.ErrorIs(t, err, services.ErrInvalidContent)
		assert.Equal(t, 0, store.sendCalls)
	})

	t.Run("5000 characters succeeds", func(t *testing.T) {
		msg, err := s.Send(context.Background(), strings.Repeat("a", 5000))
		require.NoError(t, err)
		assert.Len(t, msg.Content, 5000)
		assert.Equal(t, 1, store.sendCalls)
		assert.Len(t, s.Messages(), 1)
	})
}

func TestSyncer_OptimisticSendConverges(t *testing.T) {
	t.Run("ack then event echo", func(t *testing.T) {
		store := newMockStore()
		sub := newMockSubscriber()
		s := NewSyncer(store, sub, 1, 1)
		require.NoError(t, s.Open(context.Background()))
		defer s.Close()

		msg, err := s.Send(context.Background(), "hello")
		require.NoError(t, err)

		msgs := s.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, msg.ID, msgs[0].ID)
		assert.False(t, msgs[0].Provisional())

		// The same message arrives again via the event stream.
		sub.events <- *msg
		assert.Never(t, func() bool {
			return len(s.Messages()) != 1
		}, 100*time.Millisecond, 10*time.Millisecond, "echo must not duplicate the message")
	})

	t.Run("event echo before ack", func(t *testing.T) {
		store := newMockStore()
		sub := newMockSubscriber()
		s := NewSyncer(store, sub, 1, 1)
		require.NoError(t, s.Open(context.Background()))
		defer s.Close()

		// While the ack is in flight, the event stream delivers the real row.
		store.sendHook = func() {
			sub.events <- Message{
				ID: "msg-1000", SeqID: 1, ConversationID: 1,
				SenderID: 1, Content: "hello", CreatedAt: time.Now(),
			}
			require.Eventually(t, func() bool {
				msgs := s.Messages()
				return len(msgs) == 1 && !msgs[0].Provisional()
			}, time.Second, 5*time.Millisecond)
		}

		_, err := s.Send(context.Background(), "hello")
		require.NoError(t, err)

		msgs := s.Messages()
		require.Len(t, msgs, 1, "optimistic insert and event echo must converge to one message")
		assert.Equal(t, "msg-1000", msgs[0].ID)
	})
}

func TestSyncer_SendFailureRestoresDraft(t *testing.T) {
	store := newMockStore()
	store.sendErr = errors.New("storage error")
	sub := newMockSubscriber()
	s := NewSyncer(store, sub, 1, 1)
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	_, err := s.Send(context.Background(), "draft text")
	require.Error(t, err)

	assert.Empty(t, s.Messages(), "provisional entry must be rolled back")
	assert.Equal(t, "draft text", s.Draft(), "failed send restores the draft")
	assert.Equal(t, 1, store.sendCalls, "no automatic retry")
}

func TestSyncer_StaleHistoryDiscardedAfterSwitch(t *testing.T) {
	storeX := newMockStore()
	storeX.historyGate = make(chan struct{})
	storeX.history = []Message{historyMsg("x-1", 1, 2, "from X", time.Now())}
	syncerX := NewSyncer(storeX, newMockSubscriber(), 1, 1)

	openResult := make(chan error, 1)
	go func() { openResult <- syncerX.Open(context.Background()) }()

	require.Eventually(t, func() bool {
		return syncerX.State() == StateLoading
	}, time.Second, 5*time.Millisecond)

	// User switches to conversation Y before X's history resolves.
	syncerX.Close()

	storeY := newMockStore()
	storeY.history = []Message{historyMsg("y-1", 1, 3, "from Y", time.Now())}
	syncerY := NewSyncer(storeY, newMockSubscriber(), 2, 1)
	require.NoError(t, syncerY.Open(context.Background()))
	defer syncerY.Close()

	// X's fetch resolves late; its result must be discarded.
	close(storeX.historyGate)
	assert.ErrorIs(t, <-openResult, ErrClosed)
	assert.Empty(t, syncerX.Messages())

	msgs := syncerY.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "y-1", msgs[0].ID)
}

func TestSyncer_CloseTearsDownSubscriptionOnce(t *testing.T) {
	store := newMockStore()
	sub := newMockSubscriber()
	s := NewSyncer(store, sub, 1, 1)
	require.NoError(t, s.Open(context.Background()))

	s.Close()
	s.Close()
	assert.Equal(t, 1, sub.cancelCount())
	assert.Equal(t, StateClosed, s.State())

	// Events delivered after close are dropped.
	sub.events <- historyMsg("late", 9, 2, "late event", time.Now())
	assert.Never(t, func() bool {
		return len(s.Messages()) != 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	assert.ErrorIs(t, s.Open(context.Background()), ErrClosed)
}

func TestSyncer_MarkReadMonotonicIdempotent(t *testing.T) {
	store := newMockStore()
	sub := newMockSubscriber()

	current := time.Unix(1000, 0)
	clock := func() time.Time { return current }
	s := NewSyncer(store, sub, 1, 1, WithClock(clock))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	require.NoError(t, s.MarkRead(context.Background()))
	first := s.LastReadAt()
	assert.Equal(t, current, first)

	// Same instant again: idempotent, no extra store call.
	require.NoError(t, s.MarkRead(context.Background()))
	assert.Len(t, store.markReadCalls, 1)

	// Later instant advances the cursor.
	current = current.Add(time.Minute)
	require.NoError(t, s.MarkRead(context.Background()))
	assert.Equal(t, current, s.LastReadAt())
	assert.Len(t, store.markReadCalls, 2)

	// Clock regression never moves the cursor backward.
	current = current.Add(-time.Hour)
	require.NoError(t, s.MarkRead(context.Background()))
	assert.True(t, s.LastReadAt().After(current))
	assert.Len(t, store.markReadCalls, 2)
}

func TestSyncer_UnreadAccounting(t *testing.T) {
	store := newMockStore()
	sub := newMockSubscriber()

	current := time.Unix(2000, 0)
	clock := func() time.Time { return current }
	store.senderID = 2
	s := NewSyncer(store, sub, 2, 2, WithClock(clock)) // local user is B (id 2)
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	// Friend A sends "Hello"; it arrives via exactly one event delivery.
	current = current.Add(time.Second)
	sub.events <- Message{
		ID: "real-1", SeqID: 1, ConversationID: 2,
		SenderID: 1, Content: "Hello", CreatedAt: current,
	}

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 1
	}, time.Second, 5*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, uint(1), msgs[0].SenderID)
	assert.Equal(t, 1, s.Unread())

	// Own replies never count as unread.
	current = current.Add(time.Second)
	_, err := s.Send(context.Background(), "Hi!")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Unread())

	current = current.Add(time.Second)
	require.NoError(t, s.MarkRead(context.Background()))
	assert.Equal(t, 0, s.Unread())
}
