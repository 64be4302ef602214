package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ghbackup/internal/utils"
)

// ErrNotArchive reports that a file is not a readable zip archive.
var ErrNotArchive = errors.New("not a zip archive")

// Create writes a zip archive of sourceFolder to outputPath. Entries are
// named relative to the folder's parent so the archive contains the
// folder itself as its top level, which Extract relies on.
func Create(sourceFolder, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	parent := filepath.Dir(sourceFolder)
	walkErr := filepath.WalkDir(sourceFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		return addEntry(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		return fmt.Errorf("failed to create archive: %w", walkErr)
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func addEntry(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// Extract unpacks archivePath into destDir and returns the top-level
// extracted folder. A file that cannot be opened as zip yields
// ErrNotArchive so callers can fall back to treating it as plain data.
func Extract(archivePath, destDir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotArchive, filepath.Base(archivePath))
	}
	defer zr.Close()

	topLevel := ""
	for _, f := range zr.File {
		name := filepath.ToSlash(f.Name)
		if strings.Contains(name, "..") {
			return "", fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if topLevel == "" {
			topLevel = strings.SplitN(name, "/", 2)[0]
		}
		if err := extractEntry(f, destDir); err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	extracted := filepath.Join(destDir, topLevel)
	if topLevel == "" || !utils.IsDirectory(extracted) {
		return destDir, nil
	}
	return extracted, nil
}

func extractEntry(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := utils.EnsureDirectoryExists(filepath.Dir(target)); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
