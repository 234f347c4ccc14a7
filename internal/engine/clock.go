package engine

import "time"

// Clock supplies wall-clock time for run ids and report timestamps.
// Tests substitute a fixed clock so persisted artifacts are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// timestampLayout is the format of every *_at field written by the engine.
const timestampLayout = "2006-01-02T15:04:05Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
