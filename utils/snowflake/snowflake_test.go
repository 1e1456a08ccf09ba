package snowflake

import (
	"sync"
	"testing"
	"time"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorType   error
	}{
		{
			name:        "valid default configuration",
			config:      Config{DatacenterID: 1, WorkerID: 1},
			expectError: false,
		},
		{
			name: "valid custom configuration",
			config: Config{
				DatacenterID:   2,
				WorkerID:       7,
				WorkerIDBits:   5,
				SequenceBits:   12,
				DatacenterBits: 5,
			},
			expectError: false,
		},
		{
			name: "worker ID too large",
			config: Config{
				WorkerID:     1024, // max is 1023 for 10 bits
				WorkerIDBits: 10,
				SequenceBits: 12,
			},
			expectError: true,
			errorType:   ErrInvalidWorkerID,
		},
		{
			name:        "negative worker ID",
			config:      Config{WorkerID: -1},
			expectError: true,
			errorType:   ErrInvalidWorkerID,
		},
		{
			name: "datacenter ID too large",
			config: Config{
				DatacenterID:   8, // max is 7 for 3 bits
				WorkerID:       1,
				WorkerIDBits:   5,
				SequenceBits:   12,
				DatacenterBits: 3,
			},
			expectError: true,
			errorType:   ErrInvalidDatacenterID,
		},
		{
			name: "bit allocation exceeds 22 bits",
			config: Config{
				WorkerIDBits: 15,
				SequenceBits: 15,
			},
			expectError: true,
			errorType:   ErrInvalidBitAllocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewGenerator(tt.config)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				if tt.errorType != nil && err != tt.errorType {
					t.Errorf("expected error %v, got %v", tt.errorType, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if gen == nil {
					t.Errorf("expected generator but got nil")
				}
			}
		})
	}
}

func TestNextID_Uniqueness(t *testing.T) {
	gen, err := NewGenerator(Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	ids := make(map[int64]bool)
	count := 10000

	for range count {
		id, err := gen.NextID()
		if err != nil {
			t.Fatalf("failed to generate ID: %v", err)
		}
		if ids[id] {
			t.Errorf("duplicate ID generated: %d", id)
		}
		ids[id] = true
	}

	if len(ids) != count {
		t.Errorf("expected %d unique IDs, got %d", count, len(ids))
	}
}

func TestNextID_ThreadSafety(t *testing.T) {
	gen, err := NewGenerator(Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	goroutines := 10
	idsPerGoroutine := 100
	idChan := make(chan int64, goroutines*idsPerGoroutine)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range idsPerGoroutine {
				id, err := gen.NextID()
				if err != nil {
					t.Errorf("failed to generate ID: %v", err)
					return
				}
				idChan <- id
			}
		})
	}
	wg.Wait()
	close(idChan)

	ids := make(map[int64]bool)
	for id := range idChan {
		if ids[id] {
			t.Errorf("duplicate ID generated in concurrent test: %d", id)
		}
		ids[id] = true
	}

	if expected := goroutines * idsPerGoroutine; len(ids) != expected {
		t.Errorf("expected %d unique IDs, got %d", expected, len(ids))
	}
}

func TestNextID_MonotonicIncreasing(t *testing.T) {
	gen, err := NewGenerator(Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var lastID int64
	for i := range 1000 {
		id, err := gen.NextID()
		if err != nil {
			t.Fatalf("failed to generate ID: %v", err)
		}
		if i > 0 && id <= lastID {
			t.Errorf("IDs not monotonically increasing: %d <= %d", id, lastID)
		}
		lastID = id
	}
}

func TestParse(t *testing.T) {
	gen, err := NewGenerator(Config{
		DatacenterID:   2,
		WorkerID:       7,
		WorkerIDBits:   5,
		SequenceBits:   12,
		DatacenterBits: 5,
	})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	id, err := gen.NextID()
	if err != nil {
		t.Fatalf("failed to generate ID: %v", err)
	}

	timestamp, datacenterID, workerID, sequence := gen.Parse(id)

	if workerID != 7 {
		t.Errorf("expected worker ID 7, got %d", workerID)
	}
	if datacenterID != 2 {
		t.Errorf("expected datacenter ID 2, got %d", datacenterID)
	}

	// Timestamp should be within the last second
	now := time.Now().UnixNano() / int64(time.Millisecond)
	if timestamp < now-1000 || timestamp > now+1000 {
		t.Errorf("timestamp out of reasonable range: %d (now: %d)", timestamp, now)
	}
	if got := gen.GetTimestamp(id); got != timestamp {
		t.Errorf("GetTimestamp mismatch: %d != %d", got, timestamp)
	}

	maxSequence := int64(1<<gen.sequenceBits) - 1
	if sequence < 0 || sequence > maxSequence {
		t.Errorf("sequence out of range: %d (max: %d)", sequence, maxSequence)
	}
}

func TestSequenceOverflow(t *testing.T) {
	gen, err := NewGenerator(Config{
		DatacenterID: 1,
		WorkerID:     1,
		SequenceBits: 4, // small sequence for easier overflow testing (max 15)
	})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	// Overflowing the sequence should wait for the next millisecond, never
	// moving timestamps backwards.
	var lastTimestamp int64
	for i := range 20 {
		id, err := gen.NextID()
		if err != nil {
			t.Fatalf("failed to generate ID: %v", err)
		}
		timestamp := gen.GetTimestamp(id)
		if i > 0 && timestamp < lastTimestamp {
			t.Errorf("timestamp went backwards: %d < %d", timestamp, lastTimestamp)
		}
		lastTimestamp = timestamp
	}
}

func TestClockMovedBackwards(t *testing.T) {
	gen, err := NewGenerator(Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	if _, err := gen.NextID(); err != nil {
		t.Fatalf("failed to generate initial ID: %v", err)
	}

	// Simulate the clock moving backwards
	gen.mu.Lock()
	gen.lastTimestamp = gen.currentTimestamp() + 10000
	gen.mu.Unlock()

	if _, err := gen.NextID(); err != ErrClockMovedBackwards {
		t.Errorf("expected ErrClockMovedBackwards, got %v", err)
	}
}

func BenchmarkNextID(b *testing.B) {
	gen, err := NewGenerator(Config{DatacenterID: 1, WorkerID: 1})
	if err != nil {
		b.Fatalf("failed to create generator: %v", err)
	}

	for b.Loop() {
		if _, err := gen.NextID(); err != nil {
			b.Fatalf("failed to generate ID: %v", err)
		}
	}
}
