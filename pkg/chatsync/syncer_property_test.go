package chatsync

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_DedupAnyArrivalOrder verifies that for any arrival order of
// live events, including repeated deliveries of the same message, the syncer
// ends up with exactly one copy of each message in ascending (created_at, id)
// order. Correctness must not depend on the delivery schedule.
func TestProperty_DedupAnyArrivalOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any arrival order with duplicates converges to the sorted unique list",
		prop.ForAll(
			func(count int, seed int64, dupFactor int) bool {
				base := time.Unix(1700000000, 0)
				unique := make([]Message, count)
				for i := range count {
					unique[i] = Message{
						ID:             fmt.Sprintf("m-%03d", i),
						SeqID:          uint(i + 1),
						ConversationID: 1,
						SenderID:       2,
						Content:        fmt.Sprintf("content %d", i),
						// Pairs share a timestamp so the id tie-break is exercised.
						CreatedAt: base.Add(time.Duration(i/2) * time.Second),
					}
				}

				// Build a delivery schedule: every message at least once, some
				// repeated, then shuffle.
				deliveries := make([]Message, 0, count*dupFactor)
				for _, m := range unique {
					deliveries = append(deliveries, m)
				}
				rng := rand.New(rand.NewSource(seed))
				for len(deliveries) < count*dupFactor {
					deliveries = append(deliveries, unique[rng.Intn(count)])
				}
				rng.Shuffle(len(deliveries), func(i, j int) {
					deliveries[i], deliveries[j] = deliveries[j], deliveries[i]
				})

				store := newMockStore()
				sub := newMockSubscriber()
				s := NewSyncer(store, sub, 1, 1)
				if err := s.Open(context.Background()); err != nil {
					t.Logf("open failed: %v", err)
					return false
				}
				defer s.Close()

				for _, m := range deliveries {
					sub.events <- m
				}

				// Wait until every unique message has been applied.
				deadline := time.Now().Add(2 * time.Second)
				for len(s.Messages()) < count && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}

				msgs := s.Messages()
				if len(msgs) != count {
					t.Logf("expected %d unique messages, got %d", count, len(msgs))
					return false
				}
				for i, m := range msgs {
					if m.ID != unique[i].ID {
						t.Logf("position %d: expected %s, got %s", i, unique[i].ID, m.ID)
						return false
					}
				}
				return true
			},
			gen.IntRange(1, 15),
			gen.Int64(),
			gen.IntRange(1, 4),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
