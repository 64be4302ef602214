package remotepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mapper derives the destination folder path inside the repository from a
// local source path, and reconstructs a local path from a repository
// folder path on restore. Both directions hinge on the same anchor
// segment so a backup/restore round trip lands back where it started.
type Mapper struct {
	// Anchor is matched case-insensitively against path segments,
	// "Downloads" by default.
	Anchor string
	// HomeDir is the base for reconstructed local paths. Empty means the
	// current user's home directory.
	HomeDir string
}

func NewMapper(anchor string) *Mapper {
	return &Mapper{Anchor: anchor}
}

// DeriveRemoteSegments returns the path segments from the anchor segment
// onward. If the source path does not contain the anchor, the single leaf
// name is used instead.
func (m *Mapper) DeriveRemoteSegments(sourcePath string) []string {
	cleaned := filepath.Clean(sourcePath)
	parts := strings.Split(cleaned, string(os.PathSeparator))

	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	for i, p := range kept {
		if strings.EqualFold(p, m.Anchor) {
			return append([]string{}, kept[i:]...)
		}
	}
	return []string{filepath.Base(cleaned)}
}

// DeriveRemoteFolder is DeriveRemoteSegments joined with forward slashes,
// the form used in repository paths and gh api endpoints.
func (m *Mapper) DeriveRemoteFolder(sourcePath string) string {
	return strings.Join(m.DeriveRemoteSegments(sourcePath), "/")
}

// ReconstructLocalDir inverts the derivation: given a repository folder
// path it returns the local parent directory the restored folder belongs
// in, plus the folder's own name. A path starting with the anchor maps
// under <home>/<anchor>; anything else lands directly under home.
func (m *Mapper) ReconstructLocalDir(remoteFolder string) (parentDir string, name string, err error) {
	segments := strings.Split(strings.Trim(remoteFolder, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", "", fmt.Errorf("empty remote folder path")
	}

	home := m.HomeDir
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
	}

	base := home
	rest := segments
	if strings.EqualFold(segments[0], m.Anchor) {
		base = filepath.Join(home, m.Anchor)
		rest = segments[1:]
	}
	if len(rest) == 0 {
		// The remote folder is the anchor itself.
		return filepath.Dir(base), filepath.Base(base), nil
	}

	parentDir = base
	for _, seg := range rest[:len(rest)-1] {
		parentDir = filepath.Join(parentDir, seg)
	}
	return parentDir, rest[len(rest)-1], nil
}

// ResolveCollision returns a destination path under dir that does not
// exist yet: name+suffix if free, otherwise name+suffix_1, _2 and so on.
func ResolveCollision(dir, name, suffix string) string {
	candidate := filepath.Join(dir, name+suffix)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	for counter := 1; ; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s%s_%d", name, suffix, counter))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
