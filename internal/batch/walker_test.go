package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/services"
)

// scriptedProcessor marks every .avi processed with a fixed delta and skips
// the rest. hook runs before each file.
type scriptedProcessor struct {
	mu    sync.Mutex
	seen  []string
	delay map[string]time.Duration
	hook  func(path string)
}

func (p *scriptedProcessor) Process(_ context.Context, path string) Result {
	if p.hook != nil {
		p.hook(path)
	}
	if d := p.delay[filepath.Base(path)]; d > 0 {
		time.Sleep(d)
	}
	p.mu.Lock()
	p.seen = append(p.seen, path)
	p.mu.Unlock()
	if filepath.Ext(path) == ".avi" {
		return Processed(path, path+".mp4", 100, 60)
	}
	return Skipped(path, "unsupported extension")
}

type memoryRecorder struct {
	results []Result
}

func (r *memoryRecorder) Record(_ context.Context, res Result) error {
	r.results = append(r.results, res)
	return nil
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func resultPaths(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, filepath.Base(r.Path))
	}
	return out
}

func TestDirProcessesSortedFilesOnly(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "c.avi"),
		filepath.Join(root, "a.avi"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "sub", "d.avi"),
	)
	proc := &scriptedProcessor{}
	w := NewWalker(proc)

	report, err := w.Dir(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.avi", "b.txt", "c.avi"}, resultPaths(report.Results))
	assert.Equal(t, int64(-80), report.Delta)
	assert.Len(t, proc.seen, 3, "subdirectory not entered")

	totals := w.Totals()
	assert.Equal(t, 2, totals.Processed)
	assert.Equal(t, 1, totals.Skipped)
	assert.Equal(t, int64(200), totals.Before)
	assert.Equal(t, int64(120), totals.After)
	assert.Equal(t, int64(-80), totals.Delta)
}

func TestDirWorkersKeepSortedOrder(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "1.avi"),
		filepath.Join(root, "2.avi"),
		filepath.Join(root, "3.avi"),
		filepath.Join(root, "4.avi"),
	)
	proc := &scriptedProcessor{delay: map[string]time.Duration{
		"1.avi": 60 * time.Millisecond,
		"2.avi": 30 * time.Millisecond,
	}}
	w := NewWalker(proc, WithWorkers(4))

	report, err := w.Dir(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.avi", "2.avi", "3.avi", "4.avi"}, resultPaths(report.Results))
	assert.Equal(t, int64(-160), w.Totals().Delta)
}

func TestTreeIsPreOrder(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "z.avi"),
		filepath.Join(root, "b", "y.avi"),
		filepath.Join(root, "a", "x.avi"),
		filepath.Join(root, "a", "deep", "w.avi"),
	)
	proc := &scriptedProcessor{}
	rec := &memoryRecorder{}
	w := NewWalker(proc, WithRecorder(rec))

	report, err := w.Tree(context.Background(), root)
	require.NoError(t, err)

	var dirs []string
	for _, d := range report.Dirs {
		rel, err := filepath.Rel(root, d.Dir)
		require.NoError(t, err)
		dirs = append(dirs, rel)
	}
	assert.Equal(t, []string{".", "a", filepath.Join("a", "deep"), "b"}, dirs)
	assert.Equal(t, []string{"z.avi", "x.avi", "w.avi", "y.avi"}, resultPaths(rec.results))
	assert.Equal(t, 4, report.Totals.Processed)
	assert.Equal(t, int64(-160), report.Totals.Delta)
}

func TestTreeSkipsVanishedDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "a.avi"),
		filepath.Join(root, "gone", "x.avi"),
		filepath.Join(root, "kept", "y.avi"),
	)
	proc := &scriptedProcessor{hook: func(path string) {
		if filepath.Base(path) == "a.avi" {
			_ = os.RemoveAll(filepath.Join(root, "gone"))
		}
	}}
	w := NewWalker(proc)

	report, err := w.Tree(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, report.Dirs, 2)
	assert.Equal(t, 2, report.Totals.Processed)
}

func TestTreeUnreadableRoot(t *testing.T) {
	w := NewWalker(&scriptedProcessor{})
	_, err := w.Tree(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.avi"), filepath.Join(root, "b.avi"))
	ctx, cancel := context.WithCancel(context.Background())
	proc := &scriptedProcessor{hook: func(string) { cancel() }}
	w := NewWalker(proc)

	report, err := w.Dir(ctx, root)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, report.Results, 1)
}

func TestTotalsDeltaIsSumOfProcessed(t *testing.T) {
	var totals Totals
	totals.Add(Processed("a", "a.mp4", 1000, 400))
	totals.Add(Processed("b", "b.mp4", 10, 50))
	totals.Add(Skipped("c", ReasonZeroSize))
	totals.Add(Failed("d", errors.New("exit 1")))
	snap := totals.Snapshot()
	assert.Equal(t, int64(-560), snap.Delta)
	assert.Equal(t, snap.After-snap.Before, snap.Delta)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 1, snap.Failed)
}

func TestResultConstructors(t *testing.T) {
	f := Failed("x", errors.New("boom"))
	assert.Equal(t, "boom", f.Reason)
	assert.Equal(t, "failed", f.Kind.String())
	assert.Equal(t, "kind(0)", Kind(0).String())
	assert.Equal(t, int64(5), Processed("a", "b", 5, 10).Delta)
}
