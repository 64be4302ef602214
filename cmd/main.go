package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ghbackup/internal/backup"
	"ghbackup/internal/config"
	"ghbackup/internal/ghcli"
	"ghbackup/internal/gitcli"
	"ghbackup/internal/restore"
	"ghbackup/internal/verify"
	"ghbackup/internal/watcher"
	"ghbackup/pkg/logger"
)

var (
	configPath  string
	repoURL     string
	skipFolders []string
	archiveMode bool
	watchMode   bool
	refreshRate int
	nameSuffix  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ghbackup",
		Short:         "Chunked backup and restore of large files to a GitHub repository",
		Long:          "Backs up large files or folders to a GitHub repository by splitting them into fixed-size chunks, and restores them by reassembling the chunks.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to yaml config file")
	rootCmd.PersistentFlags().StringVar(&repoURL, "repo", "", "Target repository URL (overrides config)")

	backupCmd := &cobra.Command{
		Use:   "backup <source>",
		Short: "Back up a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	}
	backupCmd.Flags().StringSliceVar(&skipFolders, "skip-folders", nil, "Folder names to skip during backup")
	backupCmd.Flags().BoolVar(&archiveMode, "archive", false, "Zip the folder first and upload the archive in chunks")
	backupCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running and re-back up the source on changes")
	backupCmd.Flags().IntVar(&refreshRate, "refresh", 300, "Full rescan interval in seconds (watch mode)")

	restoreCmd := &cobra.Command{
		Use:   "restore <remoteFolderPath>",
		Short: "Restore a backed-up folder from the repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestore,
	}
	restoreCmd.Flags().StringVar(&nameSuffix, "suffix", "", "Suffix appended to the restored name")

	verifyCmd := &cobra.Command{
		Use:   "verify <originalDir> <restoredDir>",
		Short: "Compare two trees by SHA-256",
		Args:  cobra.ExactArgs(2),
		RunE:  runVerify,
	}

	rootCmd.AddCommand(backupCmd, restoreCmd, verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if repoURL != "" {
		cfg.RepoURL = repoURL
	}
	if cfg.RepoURL == "" {
		return nil, nil, fmt.Errorf("no repository configured, set repo_url in the config file or pass --repo")
	}
	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel), os.Stderr)
	return cfg, log, nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	engine := backup.NewEngine(cfg, gitcli.NewExecRunner(), ghcli.NewExecClient(), log)
	opts := backup.Options{SkipFolders: skipFolders, Archive: archiveMode}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, err := engine.Run(ctx, args[0], opts)
	if err != nil {
		return err
	}
	fmt.Printf("Backed up %d file(s), %d split into chunks\n", stats.FilesUploaded, stats.FilesSplit)

	if !watchMode {
		return nil
	}
	return watchLoop(ctx, engine, args[0], opts, log)
}

// watchLoop re-runs the backup when the source changes or the rescan
// interval elapses. The name-only skip check keeps re-runs incremental:
// files whose names the remote already holds are not uploaded again.
func watchLoop(ctx context.Context, engine *backup.Engine, source string, opts backup.Options, log *logger.Logger) error {
	w, err := watcher.NewWatcher(log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.AddWatch(source); err != nil {
		return fmt.Errorf("failed to watch source: %w", err)
	}
	w.Start()

	ticker := time.NewTicker(time.Duration(refreshRate) * time.Second)
	defer ticker.Stop()

	log.Infof("watching %s, press Ctrl+C to stop", source)

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-w.Changes():
			log.Debugf("%s: %s", event.Operation, event.Path)
			dirty = true

		case err := <-w.Errors():
			log.Warnf("watcher error: %v", err)

		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if _, err := engine.Run(ctx, source, opts); err != nil {
				log.Errorf("periodic backup failed: %v", err)
			}
		}
	}
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := restore.NewEngine(cfg, ghcli.NewExecClient(), log)
	dest, err := engine.Run(ctx, args[0], nameSuffix)
	if err != nil {
		return err
	}
	fmt.Printf("Restored to: %s\n", dest)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	result, err := verify.CompareTrees(args[0], args[1])
	if err != nil {
		return err
	}

	for _, rel := range result.Missing {
		fmt.Printf("MISSING   %s\n", rel)
	}
	for _, rel := range result.Mismatches {
		fmt.Printf("MISMATCH  %s\n", rel)
	}
	fmt.Printf("Total: %d file(s), %d matched\n", result.Total(), result.Matches)

	if !result.OK() {
		return fmt.Errorf("verification failed: %d mismatch(es), %d missing", len(result.Mismatches), len(result.Missing))
	}
	return nil
}
