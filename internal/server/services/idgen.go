package services

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"sync"
	"time"
)

const maxRandomBits = 22

// IDGenerator allocates message ids as (unix millis << bits) | random bits.
// Ids from one generator are strictly increasing.
type IDGenerator struct {
	bits int
	now  func() time.Time

	mu   sync.Mutex
	last int64
}

// NewIDGenerator returns a generator with the given number of random low
// bits, clamped to [0, 22] so ids stay positive int64 values.
func NewIDGenerator(bits int, now func() time.Time) *IDGenerator {
	if bits < 0 {
		bits = 0
	}
	if bits > maxRandomBits {
		bits = maxRandomBits
	}
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{bits: bits, now: now}
}

func (g *IDGenerator) Next() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	mask := int64(1)<<g.bits - 1
	random := int64(binary.BigEndian.Uint64(buf[:]) & uint64(mask))
	id := g.now().UnixMilli()<<g.bits | random

	g.mu.Lock()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	g.mu.Unlock()

	return strconv.FormatInt(id, 10)
}
