package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoff time.Time
	n      int64
}

func (f *fakePruner) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	f.cutoff = t
	return f.n, nil
}

func mkRun(t *testing.T, root, name string, age time.Duration, now time.Time) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte("{}"), 0o644))
	mt := now.Add(-age)
	require.NoError(t, os.Chtimes(dir, mt, mt))
	return dir
}

func TestSweepRemovesOldRuns(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	old := mkRun(t, root, "old-run", 48*time.Hour, now)
	fresh := mkRun(t, root, "fresh-run", time.Hour, now)
	require.NoError(t, os.WriteFile(filepath.Join(root, "processing_results.json"), []byte("[]"), 0o644))

	p := &fakePruner{n: 3}
	s, err := NewSweeper(Config{OutputDir: root, MaxAge: 24 * time.Hour}, p, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RunDirs)
	assert.EqualValues(t, 3, rep.Records)
	assert.True(t, p.cutoff.Equal(now.Add(-24*time.Hour)))

	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
	assert.FileExists(t, filepath.Join(root, "processing_results.json"))
}

func TestSweepDisabled(t *testing.T) {
	root := t.TempDir()
	dir := mkRun(t, root, "ancient", 1000*time.Hour, time.Now())

	s, err := NewSweeper(Config{OutputDir: root}, nil, nil)
	require.NoError(t, err)
	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.RunDirs)
	assert.DirExists(t, dir)
}

func TestSweepMissingOutputDir(t *testing.T) {
	s, err := NewSweeper(Config{OutputDir: filepath.Join(t.TempDir(), "nope"), MaxAge: time.Hour}, nil, nil)
	require.NoError(t, err)
	_, err = s.Sweep(context.Background())
	assert.NoError(t, err)
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(Config{Schedule: "every tuesday"}, nil, nil)
	assert.Error(t, err)

	s, err := NewSweeper(Config{Schedule: "*/5 * * * *"}, nil, nil)
	require.NoError(t, err)
	s.Start()
	s.Stop()
}

func TestSweepRemovesOldUploads(t *testing.T) {
	outputs, uploads := t.TempDir(), t.TempDir()
	now := time.Now()
	oldUpload := mkRun(t, uploads, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", 72*time.Hour, now)
	freshUpload := mkRun(t, uploads, "6fa459ea-ee8a-3ca4-894e-db77e160355e", time.Minute, now)
	oldRun := mkRun(t, outputs, "old-run", 72*time.Hour, now)

	s, err := NewSweeper(Config{OutputDir: outputs, UploadDir: uploads, MaxAge: 24 * time.Hour}, nil, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RunDirs)
	assert.Equal(t, 1, rep.UploadDirs)
	assert.NoDirExists(t, oldUpload)
	assert.NoDirExists(t, oldRun)
	assert.DirExists(t, freshUpload)
}
