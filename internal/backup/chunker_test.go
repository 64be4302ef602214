package backup

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChunkSize = 1024

func writeRandomFile(t *testing.T, dir string, size int64) (string, []byte) {
	t.Helper()

	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(dir, "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, data
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	c := testChunkSize
	sizes := []int64{0, 1, int64(c) - 1, int64(c), int64(c) + 1, 10 * int64(c), 10*int64(c) + 1}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			srcDir := t.TempDir()
			chunkDir := t.TempDir()
			outDir := t.TempDir()

			source, data := writeRandomFile(t, srcDir, size)
			chunker := NewChunker(testChunkSize)

			chunks, err := chunker.Split(context.Background(), source, chunkDir)
			require.NoError(t, err)

			wantChunks := int((size + testChunkSize - 1) / testChunkSize)
			require.Len(t, chunks, wantChunks)

			if wantChunks == 0 {
				return
			}

			restored, err := chunker.Reassemble(chunks, outDir)
			require.NoError(t, err)
			assert.Equal(t, "source.bin", filepath.Base(restored))

			restoredData, err := os.ReadFile(restored)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, restoredData), "reassembled bytes differ from the original")
		})
	}
}

func TestSplitChunkSizes(t *testing.T) {
	srcDir := t.TempDir()
	chunkDir := t.TempDir()

	source, _ := writeRandomFile(t, srcDir, 10*testChunkSize+1)
	chunker := NewChunker(testChunkSize)

	chunks, err := chunker.Split(context.Background(), source, chunkDir)
	require.NoError(t, err)
	require.Len(t, chunks, 11)

	for i, chunk := range chunks {
		info, err := os.Stat(chunk)
		require.NoError(t, err)
		if i < len(chunks)-1 {
			assert.Equal(t, int64(testChunkSize), info.Size(), "non-final chunk %d must be exactly chunk sized", i+1)
		} else {
			assert.Equal(t, int64(1), info.Size())
		}
	}
}

func TestChunkNamesOrderedAndPadded(t *testing.T) {
	srcDir := t.TempDir()
	chunkDir := t.TempDir()

	source, _ := writeRandomFile(t, srcDir, 12*testChunkSize)
	chunker := NewChunker(testChunkSize)

	chunks, err := chunker.Split(context.Background(), source, chunkDir)
	require.NoError(t, err)
	require.Len(t, chunks, 12)

	var names []string
	for i, chunk := range chunks {
		name := filepath.Base(chunk)
		assert.Equal(t, ChunkName("source.bin", i+1), name)
		assert.True(t, IsChunkName(name))
		names = append(names, name)
	}

	// Lexicographic order must equal sequence order.
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	assert.Equal(t, names, sorted)
}

func TestChunkNamePadding(t *testing.T) {
	assert.Equal(t, "data.zip.part001", ChunkName("data.zip", 1))
	assert.Equal(t, "data.zip.part042", ChunkName("data.zip", 42))
	assert.Equal(t, "data.zip.part999", ChunkName("data.zip", 999))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "data.zip", BaseName("data.zip.part007"))
	assert.Equal(t, "data.zip", BaseName("data.zip.part123"))
	assert.Equal(t, "plain.txt", BaseName("plain.txt"))
}

func TestSplitMissingSource(t *testing.T) {
	chunker := NewChunker(testChunkSize)
	_, err := chunker.Split(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.Error(t, err)
}

func TestSplitCancelledContext(t *testing.T) {
	srcDir := t.TempDir()
	source, _ := writeRandomFile(t, srcDir, 4*testChunkSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunker := NewChunker(testChunkSize)
	_, err := chunker.Split(ctx, source, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestReassembleEmptyInput(t *testing.T) {
	chunker := NewChunker(testChunkSize)
	_, err := chunker.Reassemble(nil, t.TempDir())
	require.Error(t, err)
}
