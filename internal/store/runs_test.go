package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paperfig/internal/engine"
)

func started(id, createdAt, rerunOf string) engine.RunRecord {
	return engine.RunRecord{RunID: id, SourcePath: "paper.md", CreatedAt: createdAt, RerunOf: rerunOf, ConfigHash: "h"}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.RecordRunStarted(ctx, started("run-1", "2025-01-02T03:04:05Z", "")))
	e, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusRunning, e.Status)
	assert.Empty(t, e.FinishedAt)

	require.NoError(t, s.RecordRunFinished(ctx, engine.RunOutcome{
		RunID: "run-1", Status: engine.RunStatusSucceeded, FinishedAt: "2025-01-02T03:05:00Z",
		TotalFigures: 3, AcceptedCount: 2,
	}))
	e, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunEntry{
		RunID: "run-1", SourcePath: "paper.md", CreatedAt: "2025-01-02T03:04:05Z",
		FinishedAt: "2025-01-02T03:05:00Z", Status: engine.RunStatusSucceeded,
		ConfigHash: "h", TotalFigures: 3, AcceptedCount: 2,
	}, e)
}

func TestRecordRunStarted_ResetsExistingRow(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.RecordRunStarted(ctx, started("run-1", "t1", "")))
	require.NoError(t, s.RecordRunFinished(ctx, engine.RunOutcome{RunID: "run-1", Status: engine.RunStatusFailed, Error: "gate"}))
	require.NoError(t, s.RecordRunStarted(ctx, started("run-1", "t2", "")))

	e, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusRunning, e.Status)
	assert.Empty(t, e.Error)
	assert.Equal(t, "t2", e.CreatedAt)
}

func TestRecordRunFinished_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordRunFinished(context.Background(), engine.RunOutcome{RunID: "run-x", Status: engine.RunStatusFailed})
	assert.ErrorIs(t, err, ErrRunNotIndexed)
}

func TestRecordRunFinished_RejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.RecordRunStarted(ctx, started("run-1", "t1", "")))
	assert.Error(t, s.RecordRunFinished(ctx, engine.RunOutcome{RunID: "run-1", Status: "exploded"}))
}

func TestGetRun_NotIndexed(t *testing.T) {
	_, err := createTestStore(t).GetRun(context.Background(), "run-x")
	assert.ErrorIs(t, err, ErrRunNotIndexed)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	empty, err := s.ListRuns(ctx, ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, s.RecordRunStarted(ctx, started("run-a", "2025-01-01T00:00:00Z", "")))
	require.NoError(t, s.RecordRunStarted(ctx, started("run-c", "2025-01-02T00:00:00Z", "run-a")))
	require.NoError(t, s.RecordRunStarted(ctx, started("run-b", "2025-01-02T00:00:00Z", "run-a")))
	require.NoError(t, s.RecordRunFinished(ctx, engine.RunOutcome{RunID: "run-a", Status: engine.RunStatusSucceeded}))

	ids := func(entries []RunEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.RunID)
		}
		return out
	}

	all, err := s.ListRuns(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, ids(all))

	running, err := s.ListRuns(ctx, ListOptions{Status: engine.RunStatusRunning, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c"}, ids(running))

	reruns, err := s.Reruns(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-c"}, reruns)
}

func TestStore_ImplementsRunIndex(t *testing.T) {
	var _ engine.RunIndex = createTestStore(t)
}
