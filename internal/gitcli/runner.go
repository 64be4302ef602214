package gitcli

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts the version-control primitives the batch pusher and
// working tree setup need. Everything runs out of process; failures carry
// the captured standard error text.
type Runner interface {
	Init(dir string) error
	ConfigureIdentity(dir, name, email string) error
	AddRemote(dir, name, url string) error
	AddAll(dir string) error
	Commit(dir, message string) error
	Push(dir string) error
	// ForcePush pushes with --force and sets the upstream tracking
	// reference, which also covers the first push to an empty remote.
	ForcePush(dir, remote, branch string) error
}

// ExecRunner invokes the git binary.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Init(dir string) error {
	return r.run(dir, "init")
}

func (r *ExecRunner) ConfigureIdentity(dir, name, email string) error {
	if err := r.run(dir, "config", "user.name", name); err != nil {
		return err
	}
	return r.run(dir, "config", "user.email", email)
}

func (r *ExecRunner) AddRemote(dir, name, url string) error {
	return r.run(dir, "remote", "add", name, url)
}

func (r *ExecRunner) AddAll(dir string) error {
	return r.run(dir, "add", "-A")
}

func (r *ExecRunner) Commit(dir, message string) error {
	return r.run(dir, "commit", "-m", message)
}

func (r *ExecRunner) Push(dir string) error {
	return r.run(dir, "push")
}

func (r *ExecRunner) ForcePush(dir, remote, branch string) error {
	return r.run(dir, "push", "-u", remote, branch, "--force")
}

func (r *ExecRunner) run(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
		return fmt.Errorf("git %s: %w: %s", args[0], err, detail)
	}
	return nil
}
