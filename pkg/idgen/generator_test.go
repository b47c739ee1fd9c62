package idgen

import (
	"sort"
	"sync"
	"testing"
)

type fixedClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fixedClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fixedClock) set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

func TestGeneratorIDsAreOrderedStrings(t *testing.T) {
	clock := &fixedClock{ms: Epoch + 1000}
	g, err := NewGenerator(3, clock)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := g.NewID()
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		if !Valid(id) {
			t.Fatalf("id %q is not valid", id)
		}
		ids = append(ids, id)
	}
	clock.set(Epoch + 2000)
	later, _ := g.NewID()
	ids = append(ids, later)

	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids must sort in issue order: %v", ids)
	}
}

func TestGeneratorRejectsBadNode(t *testing.T) {
	if _, err := NewGenerator(maxNode+1, nil); err != ErrInvalidNode {
		t.Fatalf("expected ErrInvalidNode, got %v", err)
	}
}

func TestGeneratorClockMovedBack(t *testing.T) {
	clock := &fixedClock{ms: Epoch + 5000}
	g, _ := NewGenerator(1, clock)
	_, _ = g.NextInt()

	clock.set(Epoch + 4000)
	if _, err := g.NextInt(); err != ErrClockMovedBack {
		t.Fatalf("expected ErrClockMovedBack, got %v", err)
	}
}

func TestGeneratorConcurrentUniqueness(t *testing.T) {
	g, _ := NewGenerator(7, nil)

	const workers, perWorker = 20, 500
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := g.NewID()
				if err != nil {
					t.Errorf("NewID: %v", err)
					return
				}
				mu.Lock()
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d ids, got %d", workers*perWorker, len(seen))
	}
}
