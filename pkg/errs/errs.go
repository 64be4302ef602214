package errs

import "errors"

var (
	ErrGHNotInstalled     = errors.New("github cli (gh) is not installed or not in PATH")
	ErrGHNotAuthenticated = errors.New("not authenticated with github cli, run: gh auth login")
	ErrNoChunks           = errors.New("no chunk files found")
	ErrPushFailed         = errors.New("git push failed")
	ErrSourceMissing      = errors.New("source path does not exist")
)
