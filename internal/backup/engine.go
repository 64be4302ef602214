package backup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"ghbackup/internal/archive"
	"ghbackup/internal/config"
	"ghbackup/internal/ghcli"
	"ghbackup/internal/gitcli"
	"ghbackup/internal/remotepath"
	"ghbackup/pkg/errs"
	"ghbackup/pkg/logger"
	"ghbackup/pkg/models"
)

// tempChunksFolder is created next to the source and holds chunk files
// until the pusher has staged them.
const tempChunksFolder = "temp_split_chunks"

// queueCapacity bounds how far splitting can run ahead of pushing.
const queueCapacity = 256

/*
Engine is the backup orchestrator.

 1. Preflight the gh CLI, resolve the source and the remote folder path.
 2. Set up the working tree and start the batch pusher.
 3. Enumerate the source: small files are enqueued directly, large files
    are split on a bounded worker pool with chunks enqueued as they are
    written, so splitting and pushing overlap.
 4. Signal completion, wait for the queue to drain and the pusher to exit.
*/
type Engine struct {
	cfg     *config.Config
	git     gitcli.Runner
	gh      ghcli.Client
	mapper  *remotepath.Mapper
	chunker *Chunker
	log     *logger.Logger
}

func NewEngine(cfg *config.Config, git gitcli.Runner, gh ghcli.Client, log *logger.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		git:     git,
		gh:      gh,
		mapper:  remotepath.NewMapper(cfg.Anchor),
		chunker: NewChunker(cfg.ChunkSizeBytes()),
		log:     log,
	}
}

// Options tune a single run.
type Options struct {
	// SkipFolders names directories excluded from the walk.
	SkipFolders []string
	// Archive zips a folder source first and pushes the archive through
	// the single-file path instead of uploading files individually.
	Archive bool
}

// Run backs up the file or folder at sourcePath and returns the final
// upload statistics.
func (e *Engine) Run(ctx context.Context, sourcePath string, opts Options) (models.StatsSnapshot, error) {
	stats := NewStats()

	source, err := filepath.Abs(sourcePath)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("invalid source path: %w", err)
	}
	sourceInfo, err := os.Stat(source)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("%w: %s", errs.ErrSourceMissing, source)
	}

	if err := e.preflight(); err != nil {
		return stats.Snapshot(), err
	}

	folderSegments := e.mapper.DeriveRemoteSegments(source)
	e.log.Infof("backing up %s to %s", source, e.mapper.DeriveRemoteFolder(source))

	tempFolder := filepath.Join(filepath.Dir(source), tempChunksFolder)
	if err := os.RemoveAll(tempFolder); err != nil {
		return stats.Snapshot(), fmt.Errorf("failed to clear chunk folder: %w", err)
	}
	if err := os.MkdirAll(tempFolder, 0755); err != nil {
		return stats.Snapshot(), fmt.Errorf("failed to create chunk folder: %w", err)
	}

	tree, err := SetupWorkTree(e.git, e.cfg, folderSegments, e.log)
	if err != nil {
		return stats.Snapshot(), err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := NewTransferQueue(queueCapacity)
	pusher := NewBatchPusher(queue, e.git, tree, stats, e.cfg, cancel, e.log)
	go pusher.Run()

	var enumErr error
	if sourceInfo.IsDir() && !opts.Archive {
		enumErr = e.backupFolder(runCtx, source, opts.SkipFolders, tempFolder, queue, stats)
	} else if sourceInfo.IsDir() {
		enumErr = e.backupArchived(runCtx, source, tempFolder, queue, stats)
	} else {
		enumErr = e.backupFile(runCtx, source, tempFolder, queue, stats)
	}

	// No more items are coming; let the pusher flush and exit.
	queue.MarkCompleted()

	if err := queue.Join(e.cfg.JoinTimeout()); err != nil {
		e.log.Warnf("%v", err)
	}
	select {
	case <-pusher.Done():
	case <-time.After(e.cfg.JoinTimeout()):
		e.log.Warnf("timed out waiting for pusher to exit")
	}

	keep := e.cfg.KeepStaging || pusher.Err() != nil
	tree.Cleanup(keep)
	if !keep {
		os.RemoveAll(tempFolder)
	} else {
		e.log.Infof("staging retained at %s", tree.RepoDir)
	}

	// The pusher's fatal error wins over enumeration problems: it is the
	// first cause of anything else that went wrong afterwards.
	if err := pusher.Err(); err != nil {
		return stats.Snapshot(), err
	}
	if enumErr != nil {
		return stats.Snapshot(), enumErr
	}

	snap := stats.Snapshot()
	e.log.Infof("uploaded %d file(s) (%d split)", snap.FilesUploaded, snap.FilesSplit)
	return snap, nil
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

// backupFile handles a single-file source: split-and-enqueue when over
// the chunk threshold, direct enqueue otherwise.
func (e *Engine) backupFile(ctx context.Context, source, tempFolder string, queue *TransferQueue, stats *Stats) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if info.Size() <= e.cfg.ChunkSizeBytes() {
		stats.AddTotal(1)
		return queue.PutContext(ctx, models.TransferItem{
			SourcePath: source,
			RelPath:    filepath.Base(source),
		})
	}

	e.log.Infof("splitting %s (%d bytes)", filepath.Base(source), info.Size())
	chunks, err := e.chunker.Split(ctx, source, tempFolder)
	if err != nil {
		return fmt.Errorf("failed to split file: %w", err)
	}
	stats.AddTotal(len(chunks))
	stats.IncSplit()

	for _, chunk := range chunks {
		if err := queue.PutContext(ctx, models.TransferItem{
			SourcePath: chunk,
			RelPath:    filepath.Base(chunk),
			Transient:  true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// backupArchived zips the folder first and pushes the archive through
// the single-file path. The archive itself is transient.
func (e *Engine) backupArchived(ctx context.Context, source, tempFolder string, queue *TransferQueue, stats *Stats) error {
	archivePath := filepath.Join(tempFolder, filepath.Base(source)+".zip")
	e.log.Infof("archiving %s", source)
	if err := archive.Create(source, archivePath); err != nil {
		return err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	if info.Size() <= e.cfg.ChunkSizeBytes() {
		stats.AddTotal(1)
		return queue.PutContext(ctx, models.TransferItem{
			SourcePath: archivePath,
			RelPath:    filepath.Base(archivePath),
			Transient:  true,
		})
	}

	chunks, err := e.chunker.Split(ctx, archivePath, tempFolder)
	if err != nil {
		return fmt.Errorf("failed to split archive: %w", err)
	}
	stats.AddTotal(len(chunks))
	stats.IncSplit()

	for _, chunk := range chunks {
		if err := queue.PutContext(ctx, models.TransferItem{
			SourcePath: chunk,
			RelPath:    filepath.Base(chunk),
			Transient:  true,
		}); err != nil {
			return err
		}
	}
	return nil
}

type scannedFile struct {
	path    string
	relPath string
	size    int64
}

// backupFolder walks the tree, skips files the remote already holds,
// enqueues small files immediately, and splits large files on a bounded
// worker pool so chunking overlaps with pushing.
func (e *Engine) backupFolder(ctx context.Context, source string, skipFolders []string, tempFolder string, queue *TransferQueue, stats *Stats) error {
	skip := e.buildSkipPredicate(source)

	smallFiles, largeFiles, skipped, err := e.scanFolder(source, skipFolders, skip)
	if err != nil {
		return err
	}

	e.log.Infof("found %d file(s) to upload (%d skipped)", len(smallFiles)+len(largeFiles), skipped)
	stats.AddTotal(len(smallFiles) + len(largeFiles))

	for _, f := range smallFiles {
		if err := queue.PutContext(ctx, models.TransferItem{
			SourcePath: f.path,
			RelPath:    f.relPath,
		}); err != nil {
			return err
		}
	}

	if len(largeFiles) == 0 {
		return nil
	}

	e.log.Infof("splitting %d large file(s) concurrently", len(largeFiles))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.SplitWorkers)

	for _, f := range largeFiles {
		f := f
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := e.splitAndEnqueue(ctx, f, tempFolder, queue, stats); err != nil {
				// A file that cannot be split is skipped, not fatal to
				// the run.
				e.log.Errorf("failed to split %s: %v", f.relPath, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) buildSkipPredicate(source string) SkipPredicate {
	folderPath := e.mapper.DeriveRemoteFolder(source)
	existing, err := e.gh.ListExistingFiles(e.cfg.RepoURL, folderPath)
	if err != nil {
		e.log.Warnf("could not check existing files: %v", err)
		return skipNothing{}
	}
	if len(existing) > 0 {
		e.log.Infof("found %d existing file(s) in repository", len(existing))
	}
	return NewNameSkipPredicate(existing)
}

func (e *Engine) scanFolder(source string, skipFolders []string, skip SkipPredicate) (small, large []scannedFile, skipped int, err error) {
	excluded := make(map[string]struct{}, len(skipFolders))
	for _, name := range skipFolders {
		excluded[name] = struct{}{}
	}
	threshold := e.cfg.ChunkSizeBytes()

	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ok := excluded[d.Name()]; ok && path != source {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}

		f := scannedFile{path: path, relPath: filepath.ToSlash(rel), size: info.Size()}
		isLarge := f.size > threshold

		if skip.ShouldSkip(d.Name(), isLarge) {
			skipped++
			return nil
		}
		if isLarge {
			large = append(large, f)
		} else {
			small = append(small, f)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, 0, fmt.Errorf("failed to scan folder: %w", walkErr)
	}
	return small, large, skipped, nil
}

// splitAndEnqueue runs on a worker: split one large file into the temp
// folder, mirroring its relative directory, and enqueue the chunks in
// sequence order as transient items.
func (e *Engine) splitAndEnqueue(ctx context.Context, f scannedFile, tempFolder string, queue *TransferQueue, stats *Stats) error {
	relDir := filepath.Dir(filepath.FromSlash(f.relPath))
	chunkDir := filepath.Join(tempFolder, relDir)

	chunks, err := e.chunker.Split(ctx, f.path, chunkDir)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		relPath := filepath.Base(chunk)
		if relDir != "." {
			relPath = filepath.ToSlash(filepath.Join(relDir, relPath))
		}
		if err := queue.PutContext(ctx, models.TransferItem{
			SourcePath: chunk,
			RelPath:    relPath,
			Transient:  true,
		}); err != nil {
			return err
		}
	}

	stats.IncSplit()
	// Chunks replace the original in the item count.
	stats.AddTotal(len(chunks) - 1)
	return nil
}
