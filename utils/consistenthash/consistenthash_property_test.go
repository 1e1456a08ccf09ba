package consistenthash

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Property: a node joining the ring gains exactly replicas virtual nodes, a
// node leaving loses them, and the key index stays sorted throughout.
func TestProperty_RingNodeManagement(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		replicas := rapid.IntRange(10, 200).Draw(rt, "replicas")
		ring := New(replicas, nil)

		numNodes := rapid.IntRange(1, 10).Draw(rt, "numNodes")
		nodes := make([]string, numNodes)
		for i := range numNodes {
			nodes[i] = fmt.Sprintf("gateway_%d", i)
		}
		ring.Add(nodes...)

		if ring.Size() != numNodes {
			rt.Fatalf("expected %d nodes in ring, got %d", numNodes, ring.Size())
		}
		if len(ring.keys) != numNodes*replicas {
			rt.Fatalf("expected %d virtual nodes, got %d", numNodes*replicas, len(ring.keys))
		}

		assertSorted := func(stage string) {
			for i := 1; i < len(ring.keys); i++ {
				if ring.keys[i-1] >= ring.keys[i] {
					rt.Fatalf("keys not sorted after %s at index %d", stage, i)
				}
			}
		}
		assertSorted("add")

		// A new gateway joins.
		joined := fmt.Sprintf("gateway_%d", numNodes)
		ring.Add(joined)
		if ring.Size() != numNodes+1 {
			rt.Fatalf("expected %d nodes after join, got %d", numNodes+1, ring.Size())
		}
		if len(ring.keys) != (numNodes+1)*replicas {
			rt.Fatalf("expected %d virtual nodes after join, got %d", (numNodes+1)*replicas, len(ring.keys))
		}
		assertSorted("join")

		// A gateway goes offline.
		ring.Remove(nodes[0])
		if ring.Size() != numNodes {
			rt.Fatalf("expected %d nodes after leave, got %d", numNodes, ring.Size())
		}
		if len(ring.keys) != numNodes*replicas {
			rt.Fatalf("expected %d virtual nodes after leave, got %d", numNodes*replicas, len(ring.keys))
		}
		assertSorted("leave")

		for _, node := range ring.Nodes() {
			if node == nodes[0] {
				rt.Fatalf("removed node %s should not be in the ring", nodes[0])
			}
		}

		// Routing still works for arbitrary keys.
		key := rapid.String().Draw(rt, "key")
		if node := ring.Get(key); node == "" {
			rt.Fatalf("non-empty ring must route key %q to a node", key)
		}
	})
}

// Property: the same key always routes to the same node as long as the ring
// membership does not change.
func TestProperty_RingRoutingStable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		ring := New(rapid.IntRange(10, 100).Draw(rt, "replicas"), nil)
		numNodes := rapid.IntRange(1, 8).Draw(rt, "numNodes")
		for i := range numNodes {
			ring.Add(fmt.Sprintf("gateway_%d", i))
		}

		keys := rapid.SliceOfN(rapid.String(), 1, 30).Draw(rt, "keys")
		for _, key := range keys {
			first := ring.Get(key)
			for range 3 {
				if got := ring.Get(key); got != first {
					rt.Fatalf("key %q routed to %s then %s with unchanged membership", key, first, got)
				}
			}
		}
	})
}
