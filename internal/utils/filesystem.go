package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func EnsureDirectoryExists(dirPath string) error {
	if dirPath == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return os.MkdirAll(dirPath, 0755)
}

func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CopyFile copies src to dst, creating dst's parent directories.
func CopyFile(src, dst string) error {
	if err := EnsureDirectoryExists(filepath.Dir(dst)); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// MoveDir renames src to dst, falling back to a recursive copy and delete
// when the rename crosses filesystems (temp dirs usually do).
func MoveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return CopyFile(path, target)
	})
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	return os.RemoveAll(src)
}
