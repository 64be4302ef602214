package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCreateExtractRoundTrip(t *testing.T) {
	work := t.TempDir()
	source := filepath.Join(work, "project")
	writeTestFile(t, filepath.Join(source, "a.txt"), "alpha")
	writeTestFile(t, filepath.Join(source, "sub", "b.txt"), "beta")

	archivePath := filepath.Join(work, "project.zip")
	require.NoError(t, Create(source, archivePath))

	destDir := t.TempDir()
	extracted, err := Extract(archivePath, destDir)
	require.NoError(t, err)

	// The archive carries the folder itself as its top level.
	assert.Equal(t, "project", filepath.Base(extracted))

	data, err := os.ReadFile(filepath.Join(extracted, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	data, err = os.ReadFile(filepath.Join(extracted, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))
}

func TestExtractNotAnArchive(t *testing.T) {
	work := t.TempDir()
	plain := filepath.Join(work, "plain.bin")
	writeTestFile(t, plain, "just bytes")

	_, err := Extract(plain, t.TempDir())
	require.ErrorIs(t, err, ErrNotArchive)
}

func TestCreateMissingSource(t *testing.T) {
	work := t.TempDir()
	err := Create(filepath.Join(work, "nope"), filepath.Join(work, "out.zip"))
	require.Error(t, err)
}
