package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// currentLink is the stable name that always points at the most recent run's
// log directory.
const currentLink = "current"

// RotateLogDir creates a fresh timestamped log directory under LogRoot and
// repoints the "current" symlink at it. An existing symlink is unlinked; a
// plain directory squatting on the name (from an older tool version) is
// renamed with a timestamp suffix rather than destroyed. Ownership of the new
// directory goes to the service account when that account exists.
func (w *Writer) RotateLogDir() (string, error) {
	if err := os.MkdirAll(w.LogRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating log root %s: %w", w.LogRoot, err)
	}

	stamp := w.now().Format("20060102-150405")
	link := filepath.Join(w.LogRoot, currentLink)

	if fi, err := os.Lstat(link); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(link); err != nil {
				return "", fmt.Errorf("unlinking %s: %w", link, err)
			}
		} else {
			backup := link + "-" + stamp
			if err := os.Rename(link, backup); err != nil {
				return "", fmt.Errorf("renaming %s to %s: %w", link, backup, err)
			}
		}
	}

	dir := filepath.Join(w.LogRoot, "forge-setup-"+stamp)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	if uid, gid, err := w.lookupUser(w.ServiceUser); err == nil {
		// Best effort: the account is absent on build hosts and containers.
		_ = os.Chown(dir, uid, gid)
	}

	if err := os.Symlink(dir, link); err != nil {
		return "", fmt.Errorf("linking %s: %w", link, err)
	}
	return dir, nil
}
