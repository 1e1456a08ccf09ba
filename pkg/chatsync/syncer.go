package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"

	"github.com/Gopher0727/StudyHive/internal/services"
)

var (
	// ErrClosed is returned when an operation reaches a syncer that has been
	// torn down. Results carrying this error must be discarded by the caller.
	ErrClosed = errors.New("chatsync: syncer closed")
	// ErrAlreadyOpen is returned by Open on a syncer that is loading or live.
	ErrAlreadyOpen = errors.New("chatsync: syncer already open")
	// ErrNotLive is returned by Send before Open has succeeded.
	ErrNotLive = errors.New("chatsync: syncer not live")
)

// Syncer maintains the ordered, de-duplicated message list of one open
// conversation. A view creates one Syncer per conversation it displays and
// closes it when switching away; the Syncer guarantees that results arriving
// after Close (late history fetches, late events, late send acks) are never
// applied to the list.
type Syncer struct {
	store Store
	sub   Subscriber

	conversationID uint
	selfID         uint
	historyLimit   int
	now            func() time.Time

	mu          sync.Mutex
	state       State
	gen         uint64 // bumped on Close; stale async results carry the old value
	messages    []Message
	seenIDs     map[string]struct{}
	seenSeq     *bitset.BitSet
	pending     map[string]string // provisional id -> content awaiting ack
	lastReadAt  time.Time
	draft       string
	unsubscribe func()
}

// NewSyncer builds a syncer for one conversation. selfID is the local user;
// it is excluded from unread counts and used to reconcile optimistic sends
// against their event-stream echoes.
func NewSyncer(store Store, sub Subscriber, conversationID, selfID uint, opts ...Option) *Syncer {
	s := &Syncer{
		store:          store,
		sub:            sub,
		conversationID: conversationID,
		selfID:         selfID,
		historyLimit:   DefaultHistoryLimit,
		now:            time.Now,
		seenIDs:        make(map[string]struct{}),
		seenSeq:        bitset.New(1024),
		pending:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the initial history window and attaches the live subscription.
// On fetch failure the syncer returns to IDLE and Open may be called again.
// A history result that arrives after Close is discarded, not applied.
func (s *Syncer) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateLoading, StateLive:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = StateLoading
	gen := s.gen
	s.mu.Unlock()

	history, err := s.store.History(ctx, s.conversationID, s.historyLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || gen != s.gen {
		return ErrClosed
	}
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("history fetch: %w", err)
	}

	events, cancel, err := s.sub.Subscribe(s.conversationID)
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("subscribe: %w", err)
	}
	for i := range history {
		s.insertLocked(history[i])
	}
	s.unsubscribe = cancel
	s.state = StateLive
	go s.consume(events, gen)
	return nil
}

// consume applies live events until the channel closes or the syncer is torn
// down. Events observed after Close belong to a stale view and are dropped.
func (s *Syncer) consume(events <-chan Message, gen uint64) {
	for m := range events {
		s.mu.Lock()
		if s.state != StateLive || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.insertLocked(m)
		s.mu.Unlock()
	}
}

// Send validates and optimistically inserts the message, then submits the
// authoritative write. On failure the provisional entry is removed and the
// draft restored; the send is never retried automatically.
func (s *Syncer) Send(ctx context.Context, content string) (*Message, error) {
	trimmed, err := services.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return nil, ErrNotLive
	}
	gen := s.gen
	provisional := Message{
		ID:             provisionalIDPrefix + uuid.NewString(),
		ConversationID: s.conversationID,
		SenderID:       s.selfID,
		Content:        trimmed,
		CreatedAt:      s.now(),
	}
	s.insertLocked(provisional)
	s.pending[provisional.ID] = trimmed
	s.draft = ""
	s.mu.Unlock()

	msg, err := s.store.Send(ctx, s.conversationID, trimmed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.state != StateClosed && gen == s.gen {
			s.removeLocked(provisional.ID)
			delete(s.pending, provisional.ID)
			s.draft = content
		}
		return nil, err
	}
	if s.state == StateClosed || gen != s.gen {
		return msg, nil
	}
	// Reconcile the ack: the provisional entry gives way to the
	// authoritative row. The event stream may have delivered the same id
	// already; insertLocked de-duplicates either way.
	s.removeLocked(provisional.ID)
	delete(s.pending, provisional.ID)
	s.insertLocked(*msg)
	return msg, nil
}

// MarkRead advances the read cursor to "now". Idempotent and monotonic: a
// second call with an earlier or equal timestamp changes nothing.
func (s *Syncer) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	at := s.now()
	if !at.After(s.lastReadAt) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.store.MarkRead(ctx, s.conversationID, at); err != nil {
		return err
	}

	s.mu.Lock()
	if at.After(s.lastReadAt) {
		s.lastReadAt = at
	}
	s.mu.Unlock()
	return nil
}

// Unread counts messages newer than the read cursor that were not sent by
// the local user.
func (s *Syncer) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.messages {
		if s.messages[i].SenderID != s.selfID && s.messages[i].CreatedAt.After(s.lastReadAt) {
			n++
		}
	}
	return n
}

// Messages returns a snapshot of the ordered message list.
func (s *Syncer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// State returns the current lifecycle state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns the content restored by the last failed send, if any.
func (s *Syncer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// LastReadAt returns the current read cursor.
func (s *Syncer) LastReadAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReadAt
}

// Close tears the subscription down exactly once and marks every in-flight
// async result stale. Safe to call multiple times.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.gen++
	s.state = StateClosed
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// insertLocked adds m to the ordered list unless its id or sequence number
// has been seen. A confirmed echo of an optimistic send removes the matching
// provisional entry first. Returns whether the message was inserted.
func (s *Syncer) insertLocked(m Message) bool {
	if _, ok := s.seenIDs[m.ID]; ok {
		return false
	}
	if m.SeqID > 0 && s.seenSeq.Test(m.SeqID) {
		return false
	}

	if m.SenderID == s.selfID && !strings.HasPrefix(m.ID, provisionalIDPrefix) {
		for tmpID, content := range s.pending {
			if content == m.Content {
				s.removeLocked(tmpID)
				delete(s.pending, tmpID)
				break
			}
		}
	}

	// Ascending (created_at, id); ties broken by id.
	idx := sort.Search(len(s.messages), func(i int) bool {
		if s.messages[i].CreatedAt.Equal(m.CreatedAt) {
			return s.messages[i].ID >= m.ID
		}
		return s.messages[i].CreatedAt.After(m.CreatedAt)
	})
	s.messages = append(s.messages, Message{})
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = m

	s.seenIDs[m.ID] = struct{}{}
	if m.SeqID > 0 {
		s.seenSeq.Set(m.SeqID)
	}
	return true
}

// removeLocked drops the message with the given id, if present.
func (s *Syncer) removeLocked(id string) {
	if _, ok := s.seenIDs[id]; !ok {
		return
	}
	delete(s.seenIDs, id)
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}
