package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/batch"
	"reencode/internal/testsupport"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	run, err := store.StartRun(ctx, "", "/media/tv", true)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.True(t, run.StartedAt.Equal(base))

	rec := store.Recorder(run.ID)
	processed := batch.Processed("/media/tv/a.avi", "/media/tv/a.mp4", 1000, 400)
	processed.Elapsed = 1500 * time.Millisecond
	require.NoError(t, rec.Record(ctx, processed))
	require.NoError(t, rec.Record(ctx, batch.Skipped("/media/tv/b.mkv", "already hevc")))
	require.NoError(t, rec.Record(ctx, batch.Failed("/media/tv/c.avi", errors.New("exit status 1"))))

	store.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, store.FinishRun(ctx, run.ID, batch.TotalsSnapshot{Processed: 1, Skipped: 1, Failed: 1, Delta: -600}))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "/media/tv", got.Root)
	assert.True(t, got.Recursive)
	assert.True(t, got.Finished())
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, int64(-600), got.DeltaBytes)

	entries, err := store.Results(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "processed", entries[0].Kind)
	assert.Equal(t, int64(-600), entries[0].DeltaBytes)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Elapsed)
	assert.Equal(t, "already hevc", entries[1].Reason)
	assert.Equal(t, "failed", entries[2].Kind)
	assert.Equal(t, "exit status 1", entries[2].Reason)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := store.StartRun(ctx, id, "/r", false)
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)
	assert.False(t, runs[0].Finished())

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.Results(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.FinishRun(ctx, "nope", batch.TotalsSnapshot{}), ErrRunNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.StartRun(ctx, "keep", "/r", false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "/r", run.Root)
}

func TestSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestOpenFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := OpenFromConfig(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, cfg.History.Path, store.Path())
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}
