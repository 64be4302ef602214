package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a backup/restore run. Defaults match the
// values the tool has always shipped with; a yaml file overrides fields
// individually.
type Config struct {
	// RepoURL is the target repository, e.g. https://github.com/user/store.
	RepoURL string `yaml:"repo_url"`

	// ChunkSizeMB is the split threshold and maximum chunk size in MiB.
	ChunkSizeMB int `yaml:"chunk_size_mb"`

	// BatchSize is the number of staged files that forces a push.
	BatchSize int `yaml:"batch_size"`

	// PushIntervalSeconds pushes a non-empty batch after this much time
	// even if the batch is not full.
	PushIntervalSeconds int `yaml:"push_interval_seconds"`

	// PollTimeoutMillis is how long the pusher waits on an empty queue
	// before re-checking the completion flag and interval trigger.
	PollTimeoutMillis int `yaml:"poll_timeout_millis"`

	// SplitWorkers bounds how many large files are split concurrently.
	SplitWorkers int `yaml:"split_workers"`

	// Anchor is the well-known path segment used to derive the remote
	// folder path from a source path, and its inverse on restore.
	Anchor string `yaml:"anchor"`

	// RestoreBaseDir is the root restored paths are reconstructed under.
	// Empty means the current user's home directory.
	RestoreBaseDir string `yaml:"restore_base_dir"`

	Remote string `yaml:"remote"`
	Branch string `yaml:"branch"`

	CommitterName  string `yaml:"committer_name"`
	CommitterEmail string `yaml:"committer_email"`

	// JoinTimeoutSeconds bounds the final wait for the queue to drain and
	// the pusher to exit.
	JoinTimeoutSeconds int `yaml:"join_timeout_seconds"`

	// KeepStaging retains the working tree and chunk folder after a run
	// for diagnosis instead of deleting them.
	KeepStaging bool `yaml:"keep_staging"`

	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		ChunkSizeMB:         50,
		BatchSize:           20,
		PushIntervalSeconds: 30,
		PollTimeoutMillis:   500,
		SplitWorkers:        4,
		Anchor:              "Downloads",
		Remote:              "origin",
		Branch:              "master",
		CommitterName:       "backup-bot",
		CommitterEmail:      "backup@bot.local",
		JoinTimeoutSeconds:  30,
		LogLevel:            "INFO",
	}
}

// Load reads a yaml config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.ChunkSizeMB <= 0 {
		return fmt.Errorf("chunk_size_mb must be positive, got %d", c.ChunkSizeMB)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.SplitWorkers <= 0 {
		return fmt.Errorf("split_workers must be positive, got %d", c.SplitWorkers)
	}
	if c.Anchor == "" {
		return fmt.Errorf("anchor must not be empty")
	}
	return nil
}

func (c *Config) ChunkSizeBytes() int64 {
	return int64(c.ChunkSizeMB) * 1024 * 1024
}

func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalSeconds) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMillis) * time.Millisecond
}

func (c *Config) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSeconds) * time.Second
}
