package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCompareTreesIdentical(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	for _, dir := range []string{a, b} {
		writeFile(t, filepath.Join(dir, "x.txt"), "same")
		writeFile(t, filepath.Join(dir, "sub", "y.txt"), "also same")
	}

	result, err := CompareTrees(a, b)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Matches)
	assert.Equal(t, 2, result.Total())
}

func TestCompareTreesMismatch(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, filepath.Join(a, "x.txt"), "one")
	writeFile(t, filepath.Join(b, "x.txt"), "two")

	result, err := CompareTrees(a, b)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, []string{"x.txt"}, result.Mismatches)
}

func TestCompareTreesMissing(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, filepath.Join(a, "only-in-a.txt"), "data")
	writeFile(t, filepath.Join(b, "only-in-b.txt"), "data")

	result, err := CompareTrees(a, b)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.ElementsMatch(t, []string{"only-in-a.txt", "only-in-b.txt"}, result.Missing)
}
