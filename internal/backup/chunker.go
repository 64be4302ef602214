package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"ghbackup/internal/utils"
)

// reassembleBufferSize keeps the streaming copy on restore fast without
// holding whole chunks in memory.
const reassembleBufferSize = 8 * 1024 * 1024

var chunkSuffixPattern = regexp.MustCompile(`\.part\d{3,}$`)

// Chunker splits a single file into fixed-size chunk files named
// <name>.partNNN and reassembles them back into the original byte stream.
// It never holds more than one chunk-sized buffer in memory.
type Chunker struct {
	chunkSize int64
}

func NewChunker(chunkSize int64) *Chunker {
	return &Chunker{chunkSize: chunkSize}
}

// ChunkName returns the name of the seq-th chunk (1-based) of a file.
// Sequence numbers are zero padded to three digits so lexicographic order
// matches numeric order for up to 999 chunks.
func ChunkName(baseName string, seq int) string {
	return fmt.Sprintf("%s.part%03d", baseName, seq)
}

// IsChunkName reports whether name carries a .partNNN suffix.
func IsChunkName(name string) bool {
	return chunkSuffixPattern.MatchString(name)
}

// BaseName strips the .partNNN suffix from a chunk name. Names without
// the suffix come back unchanged.
func BaseName(chunkName string) string {
	return chunkSuffixPattern.ReplaceAllString(chunkName, "")
}

// Split reads sourceFile sequentially and writes every non-empty read of
// up to the chunk size as a numbered chunk file under outputDir. Chunks
// already written are left in place on failure; the caller decides
// whether to retry or discard. The context is checked between chunks so
// an aborted run stops splitting promptly.
func (c *Chunker) Split(ctx context.Context, sourceFile, outputDir string) ([]string, error) {
	if err := utils.EnsureDirectoryExists(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}

	source, err := os.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	baseName := filepath.Base(sourceFile)
	buf := make([]byte, c.chunkSize)

	var chunkPaths []string
	for seq := 1; ; seq++ {
		if err := ctx.Err(); err != nil {
			return chunkPaths, err
		}

		n, readErr := io.ReadFull(source, buf)
		if n > 0 {
			chunkPath := filepath.Join(outputDir, ChunkName(baseName, seq))
			if err := os.WriteFile(chunkPath, buf[:n], 0644); err != nil {
				return chunkPaths, fmt.Errorf("failed to write chunk %d: %w", seq, err)
			}
			chunkPaths = append(chunkPaths, chunkPath)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return chunkPaths, nil
		}
		if readErr != nil {
			return chunkPaths, fmt.Errorf("failed to read source file: %w", readErr)
		}
	}
}

// Reassemble concatenates the chunk files, in the order given, into a
// file under outputDir named after the first chunk with its .partNNN
// suffix stripped. The caller is responsible for sorting the chunk paths
// by sequence number.
func (c *Chunker) Reassemble(orderedChunkPaths []string, outputDir string) (string, error) {
	if len(orderedChunkPaths) == 0 {
		return "", fmt.Errorf("no chunks to reassemble")
	}

	baseName := BaseName(filepath.Base(orderedChunkPaths[0]))
	outputPath := filepath.Join(outputDir, baseName)

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	buf := make([]byte, reassembleBufferSize)
	for _, chunkPath := range orderedChunkPaths {
		if err := appendChunk(out, chunkPath, buf); err != nil {
			out.Close()
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize output file: %w", err)
	}
	return outputPath, nil
}

func appendChunk(out *os.File, chunkPath string, buf []byte) error {
	in, err := os.Open(chunkPath)
	if err != nil {
		return fmt.Errorf("failed to open chunk %s: %w", filepath.Base(chunkPath), err)
	}
	defer in.Close()

	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return fmt.Errorf("failed to append chunk %s: %w", filepath.Base(chunkPath), err)
	}
	return nil
}
