package backup

import (
	"sync"

	"ghbackup/pkg/models"
)

// Stats are the upload counters for one backup run, mutated by the split
// workers and the pusher and read by the orchestrator for the final
// report.
type Stats struct {
	mu            sync.Mutex
	totalFiles    int
	filesSplit    int
	filesUploaded int
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) AddTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFiles += n
}

func (s *Stats) IncSplit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesSplit++
}

// IncUploaded bumps the uploaded counter and returns the running total
// for commit messages.
func (s *Stats) IncUploaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesUploaded++
	return s.filesUploaded
}

func (s *Stats) Snapshot() models.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.StatsSnapshot{
		TotalFiles:    s.totalFiles,
		FilesSplit:    s.filesSplit,
		FilesUploaded: s.filesUploaded,
	}
}
