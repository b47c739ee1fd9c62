package service

import (
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
)

const defaultStripes = 256

// stripedLocks serialises work on one (session, chunk index) pair without a
// lock per key. Distinct keys may share a stripe.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = defaultStripes
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

// lock acquires the stripe for key and returns its release func.
func (l *stripedLocks) lock(key string) func() {
	m := &l.stripes[murmur3.Sum64([]byte(key))%uint64(len(l.stripes))]
	m.Lock()
	return m.Unlock
}

// stripedRWLocks is the reader/writer variant of stripedLocks.
type stripedRWLocks struct {
	stripes []sync.RWMutex
}

func newStripedRWLocks(n int) *stripedRWLocks {
	if n <= 0 {
		n = defaultStripes
	}
	return &stripedRWLocks{stripes: make([]sync.RWMutex, n)}
}

func (l *stripedRWLocks) stripe(key string) *sync.RWMutex {
	return &l.stripes[murmur3.Sum64([]byte(key))%uint64(len(l.stripes))]
}

// lock acquires the stripe for key exclusively.
func (l *stripedRWLocks) lock(key string) func() {
	m := l.stripe(key)
	m.Lock()
	return m.Unlock
}

// rlock acquires the stripe for key in shared mode.
func (l *stripedRWLocks) rlock(key string) func() {
	m := l.stripe(key)
	m.RLock()
	return m.RUnlock
}

func chunkKey(sessionID string, index int) string {
	return sessionID + "/" + strconv.Itoa(index)
}

// flightGroup admits one in-flight run per key and reports whether the caller got it.
type flightGroup struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newFlightGroup() *flightGroup {
	return &flightGroup{running: make(map[string]struct{})}
}

func (g *flightGroup) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[key]; busy {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

func (g *flightGroup) release(key string) {
	g.mu.Lock()
	delete(g.running, key)
	g.mu.Unlock()
}
