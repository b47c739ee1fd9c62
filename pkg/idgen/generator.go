// Package idgen issues time-ordered, collision-free session identifiers.
//
// Layout of the 63 significant bits:
//
//	41 bits  milliseconds since Epoch
//	10 bits  node id
//	12 bits  per-millisecond sequence
//
// Ids are rendered as fixed-width base32 strings so they sort like the numbers
// they encode and are safe as file names and object keys.
package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
)

const (
	nodeBits     = 10
	sequenceBits = 12

	maxNode     = 1<<nodeBits - 1
	maxSequence = 1<<sequenceBits - 1

	// Epoch is 2025-01-01T00:00:00Z in milliseconds.
	Epoch int64 = 1735689600000
)

var (
	ErrInvalidNode    = errors.New("node id out of range")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// Generator produces unique ids for one node.
type Generator struct {
	mu       sync.Mutex
	clock    Clock
	node     int64
	lastMs   int64
	sequence int64
}

// NewGenerator builds a generator. A nil clock uses the system clock.
func NewGenerator(node int64, clock Clock) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Generator{clock: clock, node: node, lastMs: -1}, nil
}

// NextInt returns the next raw id.
func (g *Generator) NextInt() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.NowMillis()
	if now < g.lastMs {
		return 0, ErrClockMovedBack
	}

	if now == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastMs {
				now = g.clock.NowMillis()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = now

	return (now-Epoch)<<(nodeBits+sequenceBits) | g.node<<sequenceBits | g.sequence, nil
}

// NewID returns the next id as a 13 character string.
func (g *Generator) NewID() (string, error) {
	n, err := g.NextInt()
	if err != nil {
		return "", err
	}
	return Encode(n), nil
}

// Encode renders n in the sortable base32 alphabet.
func Encode(n int64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return encoding.EncodeToString(buf[:])
}

// Valid reports whether s looks like an id produced by Encode.
func Valid(s string) bool {
	if len(s) != 13 || strings.ToLower(s) != s {
		return false
	}
	_, err := encoding.DecodeString(s)
	return err == nil
}
