// Package chatsync implements the client-side synchronization engine for a
// single open conversation: bounded history load, live event application with
// id-based de-duplication, optimistic sends with draft restore, and monotonic
// read-state tracking.
package chatsync

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is the client view of a chat message. Real messages carry the
// server-assigned id and per-conversation sequence number; provisional
// messages created by optimistic sends carry a "tmp-" prefixed id and no
// sequence number.
type Message struct {
	ID             string
	SeqID          uint
	ConversationID uint
	SenderID       uint
	SenderName     string
	Content        string
	CreatedAt      time.Time
}

// Provisional reports whether the message is an optimistic local insert that
// has not been confirmed by the backend yet.
func (m *Message) Provisional() bool {
	return strings.HasPrefix(m.ID, provisionalIDPrefix)
}

const provisionalIDPrefix = "tmp-"

// Store is the authoritative backend the syncer reads from and writes to.
// Every call is a suspension point: the caller must tolerate the syncer being
// closed while a call is outstanding.
type Store interface {
	// History returns up to limit most recent messages of the conversation,
	// ordered ascending by (created_at, id).
	History(ctx context.Context, conversationID uint, limit int) ([]Message, error)
	// Send persists a message and returns the authoritative row.
	Send(ctx context.Context, conversationID uint, content string) (*Message, error)
	// MarkRead advances the caller's last_read_at for the conversation.
	// The store keeps the timestamp monotonic.
	MarkRead(ctx context.Context, conversationID uint, at time.Time) error
}

// Subscriber attaches a live event stream for one conversation. The returned
// cancel function tears the subscription down and must be safe to call once.
type Subscriber interface {
	Subscribe(conversationID uint) (events <-chan Message, cancel func(), err error)
}

// State of a syncer. Transitions: IDLE -> LOADING -> LIVE -> CLOSED, with
// LOADING -> IDLE on history-fetch failure (retryable).
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultHistoryLimit bounds the initial history fetch.
const DefaultHistoryLimit = 50

// Option configures a Syncer.
type Option func(*Syncer)

// WithHistoryLimit overrides the initial history fetch size.
func WithHistoryLimit(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithClock injects the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLastReadAt seeds the member's read cursor, normally from the
// conversation_members row loaded alongside the conversation.
func WithLastReadAt(t time.Time) Option {
	return func(s *Syncer) {
		s.lastReadAt = t
	}
}
