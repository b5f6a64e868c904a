package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receptro/internal/async"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return fmt.Sprintf("run-%d", len(q.jobs)), nil
}

func (q *recordingQueue) paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, j := range q.jobs {
		out = append(out, filepath.Base(j.Path))
	}
	return out
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.wav"), "a")
	touch(t, filepath.Join(root, "b.PNG"), "b")
	touch(t, filepath.Join(root, "notes.txt"), "c")
	touch(t, filepath.Join(root, "copy", "a-again.wav"), "a")
	touch(t, filepath.Join(root, ".hidden", "x.jpg"), "x")
	touch(t, filepath.Join(root, ".y.jpg"), "y")

	q := &recordingQueue{}
	ing := NewFSIngestor(q, "scan", nil)

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.wav", "b.PNG"}, q.paths())
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.Len(t, results, 3)
	for _, j := range q.jobs {
		assert.Equal(t, "scan", j.Source)
		assert.True(t, filepath.IsAbs(j.Path))
	}
}

func TestIngestPathRejectsUnroutable(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "doc.pdf"), "%PDF")

	_, err := NewFSIngestor(&recordingQueue{}, "", nil).IngestPath(context.Background(), filepath.Join(root, "doc.pdf"))
	assert.ErrorIs(t, err, ErrUnsupportedExt)
}

func TestIngestPathForceResubmits(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.mp3")
	touch(t, p, "same")
	q := &recordingQueue{}
	ing := NewFSIngestor(q, "", nil)
	ing.Force = true

	for i := 0; i < 2; i++ {
		res, err := ing.IngestPath(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, res.Deduplicated)
	}
	assert.Len(t, q.paths(), 2)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "z.ogg"), "")
	touch(t, filepath.Join(root, "sub", "a.heic"), "")
	touch(t, filepath.Join(root, "readme.md"), "")
	touch(t, filepath.Join(root, ".git", "b.png"), "")

	paths, err := Discover(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "sub", "a.heic"), filepath.Join(root, "z.ogg")}, paths)

	single, err := Discover(filepath.Join(root, "z.ogg"), true)
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = Discover(filepath.Join(root, "readme.md"), true)
	assert.ErrorIs(t, err, ErrUnsupportedExt)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("/a/b.png"))
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "existing.jpg"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    30 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return filepath.Base(p)
		case <-time.After(3 * time.Second):
			return "timeout"
		}
	}
	assert.Equal(t, "existing.jpg", next())

	touch(t, filepath.Join(root, "ignored.txt"), "x")
	touch(t, filepath.Join(root, "new.wav"), "x")
	assert.Equal(t, "new.wav", next())

	cancel()
	for range events {
	}
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
