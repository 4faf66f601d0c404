package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/forgeworks/forge-setup/internal/config"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the run log of the most recent setup",
	Long: `Prints the run log of the most recent forge-setup run, resolved through
the "current" symlink in the log directory.

With --follow (-f), watches the file for new lines (like tail -f).`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolP("follow", "f", false, "follow the file for new lines")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	follow, _ := cmd.Flags().GetBool("follow")

	path := filepath.Join(cfg.LogDir, "current", "forge-setup.log")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("log: open %s: %w", path, err)
	}
	defer f.Close()

	// Print all existing lines.
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fmt.Fprintln(cmd.OutOrStdout(), scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("log: read %s: %w", path, err)
	}

	if !follow {
		return nil
	}
	return tailFollow(cmd.OutOrStdout(), f, path)
}

// tailFollow watches the file for new data using fsnotify and prints new lines.
func tailFollow(w io.Writer, f *os.File, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("log: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("log: watch %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	for event := range watcher.Events {
		if event.Op&fsnotify.Write == 0 {
			continue
		}
		// Read all new lines available.
		for {
			line, err := reader.ReadString('\n')
			line = strings.TrimRight(line, "\n")
			if line != "" {
				fmt.Fprintln(w, line)
			}
			if err != nil {
				break
			}
		}
	}
	return nil
}
