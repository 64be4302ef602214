package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ghbackup/internal/archive"
	"ghbackup/internal/backup"
	"ghbackup/internal/config"
	"ghbackup/internal/ghcli"
	"ghbackup/internal/remotepath"
	"ghbackup/internal/utils"
	"ghbackup/pkg/errs"
	"ghbackup/pkg/logger"
)

/*
Engine is the restore orchestrator. Restore is sequential: clone the
repository, locate the chunk set under the requested folder, reassemble
in filename order, extract, and move the result to the reconstructed
local destination, disambiguating the name if it is already taken.
*/
type Engine struct {
	cfg     *config.Config
	gh      ghcli.Client
	mapper  *remotepath.Mapper
	chunker *backup.Chunker
	log     *logger.Logger
}

func NewEngine(cfg *config.Config, gh ghcli.Client, log *logger.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		gh:      gh,
		mapper:  &remotepath.Mapper{Anchor: cfg.Anchor, HomeDir: cfg.RestoreBaseDir},
		chunker: backup.NewChunker(cfg.ChunkSizeBytes()),
		log:     log,
	}
}

// Run restores the chunk set under remoteFolder and returns the final
// local path. The optional suffix is appended to the restored name.
func (e *Engine) Run(ctx context.Context, remoteFolder, suffix string) (string, error) {
	if err := e.preflight(); err != nil {
		return "", err
	}

	tempDir, err := os.MkdirTemp("", "ghbackup-restore-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if !e.cfg.KeepStaging {
			os.RemoveAll(tempDir)
		}
	}()

	chunkPaths, err := e.fetchChunks(tempDir, remoteFolder)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.log.Infof("reassembling %d chunk(s)", len(chunkPaths))
	assembled, err := e.chunker.Reassemble(chunkPaths, tempDir)
	if err != nil {
		return "", err
	}

	return e.placeResult(assembled, tempDir, remoteFolder, suffix)
}

func (e *Engine) preflight() error {
	if !e.gh.Installed() {
		return errs.ErrGHNotInstalled
	}
	if !e.gh.Authenticated() {
		return errs.ErrGHNotAuthenticated
	}
	return nil
}

// fetchChunks clones the repository and returns the chunk files under
// remoteFolder, sorted by name. Zero-padded sequence suffixes make the
// name order the sequence order.
func (e *Engine) fetchChunks(tempDir, remoteFolder string) ([]string, error) {
	repoDir := filepath.Join(tempDir, "repo")
	e.log.Infof("cloning %s", e.cfg.RepoURL)
	if err := e.gh.CloneRepo(e.cfg.RepoURL, repoDir); err != nil {
		return nil, err
	}

	folderDir := filepath.Join(repoDir, filepath.FromSlash(remoteFolder))
	entries, err := os.ReadDir(folderDir)
	if err != nil {
		return nil, fmt.Errorf("folder not found in repository: %s", remoteFolder)
	}

	var chunkPaths []string
	for _, entry := range entries {
		if !entry.IsDir() && backup.IsChunkName(entry.Name()) {
			chunkPaths = append(chunkPaths, filepath.Join(folderDir, entry.Name()))
		}
	}
	if len(chunkPaths) == 0 {
		return nil, fmt.Errorf("%w in: %s", errs.ErrNoChunks, remoteFolder)
	}
	sort.Strings(chunkPaths)

	e.log.Infof("found %d chunk file(s)", len(chunkPaths))
	return chunkPaths, nil
}

// placeResult extracts the reassembled archive and moves it to the local
// destination derived from the remote folder path. A reassembled file
// that is not an archive is placed as a plain file.
func (e *Engine) placeResult(assembled, tempDir, remoteFolder, suffix string) (string, error) {
	parentDir, name, err := e.mapper.ReconstructLocalDir(remoteFolder)
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDirectoryExists(parentDir); err != nil {
		return "", fmt.Errorf("failed to create destination parent: %w", err)
	}

	extractDir := filepath.Join(tempDir, "extracted")
	extracted, err := archive.Extract(assembled, extractDir)
	if errors.Is(err, archive.ErrNotArchive) {
		// A single large file was backed up without archiving; restore
		// it under its own name.
		dest := remotepath.ResolveCollision(parentDir, filepath.Base(assembled), suffix)
		if err := utils.CopyFile(assembled, dest); err != nil {
			return "", fmt.Errorf("failed to place restored file: %w", err)
		}
		e.log.Infof("restored to %s", dest)
		return dest, nil
	}
	if err != nil {
		return "", err
	}

	dest := remotepath.ResolveCollision(parentDir, name, suffix)
	if err := utils.MoveDir(extracted, dest); err != nil {
		return "", err
	}

	e.log.Infof("restored to %s", dest)
	return dest, nil
}
