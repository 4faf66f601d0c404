// Package persist writes the products of a setup run: the final delta answer
// file, the restricted secrets file, the temporary dangerous-options file
// consumed only by the apply step, and the rotated per-run log directory.
package persist

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/forgeworks/forge-setup/internal/answers"
	"github.com/forgeworks/forge-setup/internal/exitcode"
)

// Writer holds the target paths of one run. The clock and the account lookup
// are injectable for tests.
type Writer struct {
	ResultPath  string
	SecretsPath string
	LogRoot     string
	ServiceUser string

	now        func() time.Time
	lookupUser func(name string) (uid, gid int, err error)
}

func New(resultPath, secretsPath, logRoot, serviceUser string) *Writer {
	return &Writer{
		ResultPath:  resultPath,
		SecretsPath: secretsPath,
		LogRoot:     logRoot,
		ServiceUser: serviceUser,
		now:         time.Now,
		lookupUser:  lookupSystemUser,
	}
}

// Persist writes every artifact of the merge under a tightened umask, so no
// file is ever observable with wider permissions than it ends up with. It
// returns the path of the dangerous-options temp file, empty when no
// dangerous option differs from its default.
func (w *Writer) Persist(main, danger []answers.Entry, secret string, hasSecret bool) (dangerPath string, err error) {
	old := syscall.Umask(0o077)
	defer syscall.Umask(old)

	if err := w.WriteResult(main); err != nil {
		return "", err
	}
	if hasSecret {
		if err := w.WriteSecrets(secret); err != nil {
			return "", err
		}
	}
	return WriteDanger(danger)
}

// WriteResult persists the delta configuration. A stale file from an
// uncleaned previous run is removed first; the create is exclusive, so a
// concurrent writer surfaces as a hard "already exists" error instead of
// silent truncation.
func (w *Writer) WriteResult(entries []answers.Entry) error {
	if err := os.Remove(w.ResultPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale %s: %w", w.ResultPath, err)
	}
	f, err := os.OpenFile(w.ResultPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("result file %s already exists and could not be replaced: %w", w.ResultPath, err)
		}
		return fmt.Errorf("creating %s: %w", w.ResultPath, err)
	}
	if _, err := f.Write(answers.Serialize(entries)); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", w.ResultPath, err)
	}
	return f.Close()
}

// WriteSecrets stores the secret value in an owner-only file, excluded from
// the main artifact. Failure here is a privilege problem: the path lives in
// root-owned territory, so the error carries the not-privileged status.
func (w *Writer) WriteSecrets(secret string) error {
	if err := os.MkdirAll(filepath.Dir(w.SecretsPath), 0o700); err != nil {
		return exitcode.Wrap(exitcode.NotPrivileged, fmt.Errorf("creating secrets directory: %w", err))
	}
	if err := os.WriteFile(w.SecretsPath, []byte(secret+"\n"), 0o600); err != nil {
		return exitcode.Wrap(exitcode.NotPrivileged, fmt.Errorf("writing secrets file %s: %w", w.SecretsPath, err))
	}
	return nil
}

// WriteDanger routes dangerous options to a process-temporary answer file
// that the apply step merges and the caller deletes afterward. They are never
// persisted to the main artifact.
func WriteDanger(entries []answers.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	f, err := os.CreateTemp("", "forge-setup-extra-*.conf")
	if err != nil {
		return "", fmt.Errorf("creating dangerous-options file: %w", err)
	}
	if _, err := f.Write(answers.Serialize(entries)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing dangerous-options file: %w", err)
	}
	return f.Name(), f.Close()
}

// ArchiveResult copies the persisted result file into the run's log
// directory, so each timestamped directory is self-contained.
func (w *Writer) ArchiveResult(logDir string) error {
	src, err := os.Open(w.ResultPath)
	if err != nil {
		return fmt.Errorf("archiving result: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(filepath.Join(logDir, filepath.Base(w.ResultPath)), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archiving result: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("archiving result: %w", err)
	}
	return dst.Close()
}

// lookupSystemUser resolves a service account to numeric uid/gid.
func lookupSystemUser(name string) (int, int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
