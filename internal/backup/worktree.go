package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ghbackup/internal/config"
	"ghbackup/internal/gitcli"
	"ghbackup/pkg/logger"
)

// markerFile keeps every directory level visible in the remote tree view
// even when it has a single child.
const markerFile = ".gitkeep"

// WorkTree is the ephemeral local repository used as the staging ground
// for batch commits. It is initialized fresh with a single remote pointer
// rather than cloned, so runs against huge remotes stay cheap.
type WorkTree struct {
	// RepoDir is the repository root.
	RepoDir string
	// BaseDir is the destination folder inside the repository that
	// mirrors the source's anchored path.
	BaseDir string

	tempDir string
}

// SetupWorkTree creates the working tree: a temp directory holding a
// freshly initialized repository with committer identity and remote
// configured, plus the base folder structure with a marker file at each
// level, committed locally (not yet pushed).
func SetupWorkTree(git gitcli.Runner, cfg *config.Config, folderSegments []string, log *logger.Logger) (*WorkTree, error) {
	tempDir, err := os.MkdirTemp("", "ghbackup-worktree-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	repoDir := filepath.Join(tempDir, "repo")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	if err := initRepo(git, cfg, repoDir); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	baseDir := repoDir
	for _, segment := range folderSegments {
		baseDir = filepath.Join(baseDir, segment)
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to create folder structure: %w", err)
		}
		if err := touchMarker(baseDir); err != nil {
			os.RemoveAll(tempDir)
			return nil, err
		}
	}

	structure := strings.Join(folderSegments, "/")
	log.Infof("created folder structure: %s", structure)

	// Commit the structure locally. This can fail when there is nothing
	// new to commit, which is fine.
	if err := git.AddAll(repoDir); err == nil {
		if err := git.Commit(repoDir, fmt.Sprintf("Create folder structure: %s", structure)); err != nil {
			log.Debugf("structure commit skipped: %v", err)
		}
	}

	return &WorkTree{
		RepoDir: repoDir,
		BaseDir: baseDir,
		tempDir: tempDir,
	}, nil
}

func initRepo(git gitcli.Runner, cfg *config.Config, repoDir string) error {
	if err := git.Init(repoDir); err != nil {
		return fmt.Errorf("failed to setup repository: %w", err)
	}
	if err := git.ConfigureIdentity(repoDir, cfg.CommitterName, cfg.CommitterEmail); err != nil {
		return fmt.Errorf("failed to configure identity: %w", err)
	}
	if err := git.AddRemote(repoDir, cfg.Remote, cfg.RepoURL); err != nil {
		return fmt.Errorf("failed to add remote: %w", err)
	}
	return nil
}

func touchMarker(dir string) error {
	marker := filepath.Join(dir, markerFile)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	if err := os.WriteFile(marker, nil, 0644); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}
	return nil
}

// Cleanup removes the staging directory. Data left behind after a failed
// run is intentionally kept when keep is true.
func (w *WorkTree) Cleanup(keep bool) {
	if keep {
		return
	}
	os.RemoveAll(w.tempDir)
}
