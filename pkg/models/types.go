package models

import "time"

// TransferItem is one upload-ready entry in the transfer queue: either a
// small file uploaded as-is or a single chunk produced by the splitter.
type TransferItem struct {
	// SourcePath is the absolute path of the file to stage.
	SourcePath string
	// RelPath is the path relative to the destination root in the repo,
	// always slash-separated.
	RelPath string
	// Transient marks chunk files that must be deleted once staged.
	Transient bool
	// Sentinel asks the consumer to stop even if the completion flag has
	// not been observed yet.
	Sentinel bool
}

// StatsSnapshot is a point-in-time copy of the upload counters.
type StatsSnapshot struct {
	TotalFiles    int
	FilesSplit    int
	FilesUploaded int
}

type FileEvent struct {
	Path      string
	Operation string // CREATE, MODIFY, DELETE
	Timestamp time.Time
}
