package engine

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runIDPattern = regexp.MustCompile(`^run-\d{8}-\d{6}-[0-9a-f]{6}$`)

func TestTimestampGenerator_Format(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	id := TimestampGenerator{}.Generate(now)

	assert.Regexp(t, runIDPattern, id)
	assert.Contains(t, id, "run-20250304-050607-")
}

func TestTimestampGenerator_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	id := TimestampGenerator{}.Generate(time.Date(2025, 3, 4, 23, 0, 0, 0, loc))
	assert.Contains(t, id, "run-20250305-040000-")
}

func TestTimestampGenerator_UniqueWithinSameSecond(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			id := TimestampGenerator{}.Generate(now)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 24 random bits: a collision among 200 ids is possible but rare.
	assert.GreaterOrEqual(t, len(seen), n-1)
}

func TestFixedGenerator_ReturnsInOrder(t *testing.T) {
	gen := NewFixedGenerator("run-a", "run-b")
	assert.Equal(t, "run-a", gen.Generate(time.Time{}))
	assert.Equal(t, "run-b", gen.Generate(time.Time{}))
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedGenerator("run-a")
	require.Equal(t, "run-a", gen.Generate(time.Time{}))
	assert.PanicsWithValue(t, "FixedGenerator: all run ids exhausted", func() {
		gen.Generate(time.Time{})
	})
}
