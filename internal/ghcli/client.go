package ghcli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Client is the GitHub CLI collaborator: pre-flight checks, the existing
// remote file listing used by the skip check, and repository cloning.
type Client interface {
	Installed() bool
	Authenticated() bool
	ListExistingFiles(repoURL, folderPath string) (map[string]struct{}, error)
	CloneRepo(repoURL, destPath string) error
}

// ExecClient shells out to the gh binary.
type ExecClient struct{}

func NewExecClient() *ExecClient {
	return &ExecClient{}
}

func (c *ExecClient) Installed() bool {
	return exec.Command("gh", "--version").Run() == nil
}

func (c *ExecClient) Authenticated() bool {
	return exec.Command("gh", "auth", "status").Run() == nil
}

// ListExistingFiles returns the set of file names present in the given
// repository folder. A missing folder is not an error: the backup simply
// has nothing to skip.
func (c *ExecClient) ListExistingFiles(repoURL, folderPath string) (map[string]struct{}, error) {
	endpoint := fmt.Sprintf("repos/%s/contents/%s", RepoSlug(repoURL), folderPath)

	cmd := exec.Command("gh", "api", endpoint, "--paginate")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// Folder does not exist on the remote yet.
		return map[string]struct{}{}, nil
	}

	var items []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	existing := make(map[string]struct{})

	// --paginate concatenates one JSON array per page.
	dec := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	for dec.More() {
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to parse contents listing: %w", err)
		}
		for _, item := range items {
			if item.Type == "file" {
				existing[item.Name] = struct{}{}
			}
		}
	}
	return existing, nil
}

func (c *ExecClient) CloneRepo(repoURL, destPath string) error {
	cmd := exec.Command("gh", "repo", "clone", repoURL, destPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return fmt.Errorf("failed to clone repository: %w", err)
		}
		return fmt.Errorf("failed to clone repository: %w: %s", err, detail)
	}
	return nil
}

// RepoSlug extracts owner/name from a GitHub repository URL.
func RepoSlug(repoURL string) string {
	slug := strings.TrimPrefix(repoURL, "https://github.com/")
	slug = strings.TrimPrefix(slug, "http://github.com/")
	slug = strings.TrimSuffix(slug, ".git")
	return strings.Trim(slug, "/")
}
