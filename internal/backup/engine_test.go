package backup

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghbackup/internal/config"
	"ghbackup/pkg/errs"
	"ghbackup/pkg/logger"
)

// fakeGH is the gh CLI collaborator for tests: always installed and
// authenticated, with a canned remote listing.
type fakeGH struct {
	installed     bool
	authenticated bool
	existing      map[string]struct{}
}

func newFakeGH() *fakeGH {
	return &fakeGH{installed: true, authenticated: true}
}

func (g *fakeGH) Installed() bool     { return g.installed }
func (g *fakeGH) Authenticated() bool { return g.authenticated }

func (g *fakeGH) ListExistingFiles(string, string) (map[string]struct{}, error) {
	return g.existing, nil
}

func (g *fakeGH) CloneRepo(string, string) error { return nil }

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.RepoURL = "https://github.com/test/store"
	cfg.ChunkSizeMB = 1
	cfg.BatchSize = 3
	cfg.PollTimeoutMillis = 10
	cfg.JoinTimeoutSeconds = 10
	return cfg
}

func writeFile(t *testing.T, path string, size int64) {
	t.Helper()

	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestEngineBackupFolderMixedSizes(t *testing.T) {
	cfg := testEngineConfig()
	chunkSize := cfg.ChunkSizeBytes()

	root := t.TempDir()
	source := filepath.Join(root, "photos")
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "sub/e.jpg"} {
		writeFile(t, filepath.Join(source, name), 100)
	}
	// One large file splitting into two chunks.
	writeFile(t, filepath.Join(source, "video.mp4"), chunkSize+chunkSize/2)

	git := &fakeGit{}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{})
	require.NoError(t, err)

	// 5 direct uploads + 2 chunks.
	assert.Equal(t, 7, stats.TotalFiles)
	assert.Equal(t, 7, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesSplit)

	// 7 items with batch size 3 means at least two distinct pushes.
	pushes, forcePushes := git.counts()
	assert.GreaterOrEqual(t, pushes+forcePushes, 2)

	// Chunk staging folder is cleaned up after a successful run.
	assert.NoDirExists(t, filepath.Join(root, tempChunksFolder))
}

func TestEngineBackupSingleLargeFile(t *testing.T) {
	cfg := testEngineConfig()
	chunkSize := cfg.ChunkSizeBytes()

	root := t.TempDir()
	source := filepath.Join(root, "disk.img")
	// Splits into 3 chunks: full, full, partial.
	writeFile(t, source, 2*chunkSize+chunkSize/2)

	git := &fakeGit{}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 3, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesSplit)
}

func TestEngineBackupSingleSmallFile(t *testing.T) {
	cfg := testEngineConfig()

	root := t.TempDir()
	source := filepath.Join(root, "note.txt")
	writeFile(t, source, 64)

	git := &fakeGit{}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesUploaded)
	assert.Equal(t, 0, stats.FilesSplit)
	// The original file must survive a backup.
	assert.FileExists(t, source)
}

func TestEngineSkipsFilesAlreadyInRepo(t *testing.T) {
	cfg := testEngineConfig()
	chunkSize := cfg.ChunkSizeBytes()

	root := t.TempDir()
	source := filepath.Join(root, "stuff")
	writeFile(t, filepath.Join(source, "kept.txt"), 100)
	writeFile(t, filepath.Join(source, "skipped.txt"), 100)
	writeFile(t, filepath.Join(source, "skipped-large.bin"), chunkSize+1)

	gh := newFakeGH()
	gh.existing = map[string]struct{}{
		"skipped.txt":               {},
		"skipped-large.bin.part001": {},
	}

	git := &fakeGit{}
	engine := NewEngine(cfg, git, gh, logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesUploaded)
	assert.Equal(t, 0, stats.FilesSplit)
}

func TestEngineSkipFolders(t *testing.T) {
	cfg := testEngineConfig()

	root := t.TempDir()
	source := filepath.Join(root, "tree")
	writeFile(t, filepath.Join(source, "keep/a.txt"), 10)
	writeFile(t, filepath.Join(source, "node_modules/b.txt"), 10)
	writeFile(t, filepath.Join(source, "deep/node_modules/c.txt"), 10)

	git := &fakeGit{}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{SkipFolders: []string{"node_modules"}})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesUploaded)
}

func TestEnginePreflightFailures(t *testing.T) {
	cfg := testEngineConfig()
	root := t.TempDir()
	source := filepath.Join(root, "note.txt")
	writeFile(t, source, 10)

	gh := newFakeGH()
	gh.installed = false
	engine := NewEngine(cfg, &fakeGit{}, gh, logger.NewWithLevel(logger.ERROR, os.Stderr))
	_, err := engine.Run(context.Background(), source, Options{})
	require.ErrorIs(t, err, errs.ErrGHNotInstalled)

	gh = newFakeGH()
	gh.authenticated = false
	engine = NewEngine(cfg, &fakeGit{}, gh, logger.NewWithLevel(logger.ERROR, os.Stderr))
	_, err = engine.Run(context.Background(), source, Options{})
	require.ErrorIs(t, err, errs.ErrGHNotAuthenticated)
}

func TestEngineMissingSource(t *testing.T) {
	cfg := testEngineConfig()
	engine := NewEngine(cfg, &fakeGit{}, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	_, err := engine.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	require.ErrorIs(t, err, errs.ErrSourceMissing)
}

func TestEngineFatalPushFailureFailsRun(t *testing.T) {
	cfg := testEngineConfig()
	cfg.BatchSize = 1
	cfg.JoinTimeoutSeconds = 2

	root := t.TempDir()
	source := filepath.Join(root, "files")
	writeFile(t, filepath.Join(source, "a.txt"), 10)
	writeFile(t, filepath.Join(source, "b.txt"), 10)

	git := &fakeGit{failPush: true, failForce: true}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	_, err := engine.Run(context.Background(), source, Options{})
	require.ErrorIs(t, err, errs.ErrPushFailed)
}

func TestEngineArchiveMode(t *testing.T) {
	cfg := testEngineConfig()

	root := t.TempDir()
	source := filepath.Join(root, "project")
	writeFile(t, filepath.Join(source, "a.txt"), 100)
	writeFile(t, filepath.Join(source, "sub/b.txt"), 100)

	git := &fakeGit{}
	engine := NewEngine(cfg, git, newFakeGH(), logger.NewWithLevel(logger.ERROR, os.Stderr))

	stats, err := engine.Run(context.Background(), source, Options{Archive: true})
	require.NoError(t, err)

	// A small archive uploads as a single item.
	assert.Equal(t, 1, stats.FilesUploaded)

	pushes, forcePushes := git.counts()
	assert.GreaterOrEqual(t, pushes+forcePushes, 1)
}
