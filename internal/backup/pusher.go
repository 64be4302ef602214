package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghbackup/internal/config"
	"ghbackup/internal/gitcli"
	"ghbackup/internal/utils"
	"ghbackup/pkg/errs"
	"ghbackup/pkg/logger"
	"ghbackup/pkg/models"
)

/*
BatchPusher is the single consumer of the transfer queue.

It drains items, copies each one into the working tree at its relative
path, and commits + pushes accumulated changes in batches. A push is
mandatory when the batch reaches the configured size, when the push
interval has elapsed since the last successful push, or once the
completion flag is observed; a mandatory push failure aborts the run.
Interval pushes attempted while the queue is empty are best effort and
get retried on the next trigger.
*/
type BatchPusher struct {
	queue *TransferQueue
	git   gitcli.Runner
	tree  *WorkTree
	stats *Stats
	log   *logger.Logger

	remote       string
	branch       string
	batchSize    int
	pushInterval time.Duration
	pollTimeout  time.Duration

	// now is replaceable so interval triggers are testable.
	now func() time.Time

	// cancel aborts the whole run (including in-flight split workers)
	// when a mandatory push fails.
	cancel context.CancelFunc

	batch    []string
	lastPush time.Time

	err  error
	done chan struct{}
}

func NewBatchPusher(queue *TransferQueue, git gitcli.Runner, tree *WorkTree, stats *Stats, cfg *config.Config, cancel context.CancelFunc, log *logger.Logger) *BatchPusher {
	return &BatchPusher{
		queue:        queue,
		git:          git,
		tree:         tree,
		stats:        stats,
		log:          log.WithField("component", "pusher"),
		remote:       cfg.Remote,
		branch:       cfg.Branch,
		batchSize:    cfg.BatchSize,
		pushInterval: cfg.PushInterval(),
		pollTimeout:  cfg.PollTimeout(),
		now:          time.Now,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Run drains the queue until the completion flag is set and the queue is
// empty, a sentinel arrives, or a mandatory push fails. Meant to run on
// its own goroutine; Done and Err expose the outcome.
func (p *BatchPusher) Run() {
	defer close(p.done)

	p.lastPush = p.now()

	for !p.queue.Completed() || p.queue.Len() > 0 {
		item, ok := p.queue.Get(p.pollTimeout)
		if !ok {
			// Empty poll: push accumulated files if the interval has
			// elapsed. Failures here are swallowed and retried at the
			// next trigger.
			if len(p.batch) > 0 && p.now().Sub(p.lastPush) >= p.pushInterval {
				p.tryPush()
			}
			continue
		}
		if item.Sentinel {
			break
		}

		if err := p.stage(item); err != nil {
			p.log.Errorf("failed to stage %s: %v", item.RelPath, err)
			p.queue.TaskDone()
			continue
		}

		total := p.stats.IncUploaded()
		p.queue.TaskDone()
		p.batch = append(p.batch, item.RelPath)

		shouldPush := len(p.batch) >= p.batchSize ||
			p.now().Sub(p.lastPush) >= p.pushInterval ||
			p.queue.Completed()

		if shouldPush {
			if err := p.mustPush(fmt.Sprintf("Add %d file(s) (%d total)", len(p.batch), total)); err != nil {
				p.fail(err)
				return
			}
		}
	}

	// Final flush of whatever remains. This push is mandatory.
	if len(p.batch) > 0 {
		total := p.stats.Snapshot().FilesUploaded
		if err := p.mustPush(fmt.Sprintf("Add final %d file(s) (%d total)", len(p.batch), total)); err != nil {
			p.fail(err)
		}
	}
}

// Done is closed when the consumer loop has exited.
func (p *BatchPusher) Done() <-chan struct{} {
	return p.done
}

// Err reports the fatal push error, if any. Valid after Done.
func (p *BatchPusher) Err() error {
	return p.err
}

// stage copies the item into the working tree, keeps the directory marker
// in its parent, and deletes transient chunk sources.
func (p *BatchPusher) stage(item models.TransferItem) error {
	destPath := filepath.Join(p.tree.BaseDir, filepath.FromSlash(item.RelPath))

	if err := utils.CopyFile(item.SourcePath, destPath); err != nil {
		return fmt.Errorf("failed to copy into working tree: %w", err)
	}
	if err := touchMarker(filepath.Dir(destPath)); err != nil {
		return err
	}

	if item.Transient {
		if err := os.Remove(item.SourcePath); err != nil {
			p.log.Warnf("failed to remove chunk %s: %v", item.SourcePath, err)
		}
	}
	return nil
}

// mustPush commits and pushes the current batch; failure is fatal to the
// run. The plain push is tried first, then the forcing push that also
// sets the upstream reference (which covers the very first push to an
// empty branch).
func (p *BatchPusher) mustPush(message string) error {
	if err := p.commitAndPush(message); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPushFailed, err)
	}
	p.log.Infof("pushed %d file(s)", len(p.batch))
	p.batch = p.batch[:0]
	p.lastPush = p.now()
	return nil
}

// tryPush is the best-effort variant used on empty-queue interval
// triggers.
func (p *BatchPusher) tryPush() {
	if err := p.commitAndPush(fmt.Sprintf("Add %d file(s)", len(p.batch))); err != nil {
		p.log.Debugf("interval push skipped: %v", err)
		return
	}
	p.log.Infof("pushed %d file(s)", len(p.batch))
	p.batch = p.batch[:0]
	p.lastPush = p.now()
}

func (p *BatchPusher) commitAndPush(message string) error {
	if err := p.git.AddAll(p.tree.RepoDir); err != nil {
		return err
	}
	if err := p.git.Commit(p.tree.RepoDir, message); err != nil {
		return err
	}
	if err := p.git.Push(p.tree.RepoDir); err != nil {
		return p.git.ForcePush(p.tree.RepoDir, p.remote, p.branch)
	}
	return nil
}

func (p *BatchPusher) fail(err error) {
	p.err = err
	p.log.Errorf("aborting: %v", err)
	// Staged data stays in the working tree for manual recovery; stop
	// the producers so no further work is queued.
	p.cancel()
}
