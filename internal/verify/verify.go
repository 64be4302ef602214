package verify

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"ghbackup/internal/utils"
)

// Result summarizes a tree comparison.
type Result struct {
	Matches    int
	Mismatches []string
	Missing    []string
}

func (r Result) Total() int {
	return r.Matches + len(r.Mismatches) + len(r.Missing)
}

func (r Result) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Missing) == 0
}

// CompareTrees walks both directories and compares every file by SHA-256.
// Files present on only one side are reported as missing.
func CompareTrees(originalDir, restoredDir string) (Result, error) {
	original, err := listFiles(originalDir)
	if err != nil {
		return Result{}, err
	}
	restored, err := listFiles(restoredDir)
	if err != nil {
		return Result{}, err
	}

	all := make(map[string]struct{}, len(original))
	for rel := range original {
		all[rel] = struct{}{}
	}
	for rel := range restored {
		all[rel] = struct{}{}
	}

	relPaths := make([]string, 0, len(all))
	for rel := range all {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	var result Result
	for _, rel := range relPaths {
		origPath, inOrig := original[rel]
		restPath, inRest := restored[rel]
		if !inOrig || !inRest {
			result.Missing = append(result.Missing, rel)
			continue
		}

		origHash, err := utils.CalculateFileHash(origPath)
		if err != nil {
			return result, fmt.Errorf("failed to hash %s: %w", origPath, err)
		}
		restHash, err := utils.CalculateFileHash(restPath)
		if err != nil {
			return result, fmt.Errorf("failed to hash %s: %w", restPath, err)
		}

		if origHash == restHash {
			result.Matches++
		} else {
			result.Mismatches = append(result.Mismatches, rel)
		}
	}
	return result, nil
}

func listFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, nil
}
