package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunIDGenerator generates unique run ids.
// Implemented by TimestampGenerator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate(now time.Time) string
}

// TimestampGenerator generates run ids of the form
// "run-<yyyymmdd>-<hhmmss>-<6 hex>".
//
// The timestamp prefix keeps run directories sortable by creation time; the
// random suffix (taken from a UUIDv4) keeps two runs started in the same
// second distinct without any shared lock.
//
// Thread-safety: TimestampGenerator is stateless and safe for concurrent use.
type TimestampGenerator struct{}

// Generate creates a new run id stamped with now in UTC.
func (g TimestampGenerator) Generate(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return "run-" + now.UTC().Format("20060102-150405") + "-" + suffix
}

// FixedGenerator returns predetermined run ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("run-a", "run-b")
//	gen.Generate(now) // "run-a"
//	gen.Generate(now) // "run-b"
//	gen.Generate(now) // panic: all run ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed. This catches a test that creates
// more runs than it declared.
func (g *FixedGenerator) Generate(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all run ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
