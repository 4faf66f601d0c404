package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forgeworks/forge-setup/internal/answers"
	"github.com/forgeworks/forge-setup/internal/exitcode"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	dir := t.TempDir()
	w := New(
		filepath.Join(dir, "forge-setup.conf"),
		filepath.Join(dir, "secure", "db-password"),
		filepath.Join(dir, "log"),
		"forge",
	)
	w.now = func() time.Time { return time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC) }
	w.lookupUser = func(string) (int, int, error) { return os.Getuid(), os.Getgid(), nil }
	return w
}

func TestWriteResult_Format(t *testing.T) {
	w := testWriter(t)
	entries := []answers.Entry{
		{Key: "web_port", Title: "Web listen port", Value: "8443"},
		{Key: "bare_key", Value: "x"},
	}
	if err := w.WriteResult(entries); err != nil {
		t.Fatalf("WriteResult() error: %v", err)
	}

	data, err := os.ReadFile(w.ResultPath)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	want := "# Web listen port.\nweb_port = 8443\n\n# bare_key.\nbare_key = x\n\n"
	if string(data) != want {
		t.Errorf("result content:\n%q\nwant:\n%q", data, want)
	}
}

func TestWriteResult_ReplacesStaleFile(t *testing.T) {
	w := testWriter(t)
	if err := os.WriteFile(w.ResultPath, []byte("stale content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.WriteResult([]answers.Entry{{Key: "a", Value: "1"}}); err != nil {
		t.Fatalf("WriteResult() error: %v", err)
	}
	data, _ := os.ReadFile(w.ResultPath)
	if strings.Contains(string(data), "stale") {
		t.Errorf("stale content survived: %q", data)
	}
}

func TestWriteSecrets(t *testing.T) {
	w := testWriter(t)
	if err := w.WriteSecrets("hunter2"); err != nil {
		t.Fatalf("WriteSecrets() error: %v", err)
	}

	fi, err := os.Stat(w.SecretsPath)
	if err != nil {
		t.Fatalf("stat secrets: %v", err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets mode = %o, want 0600", perm)
	}
	data, _ := os.ReadFile(w.SecretsPath)
	if string(data) != "hunter2\n" {
		t.Errorf("secrets content = %q", data)
	}
}

func TestWriteSecrets_FailureIsPrivilegeError(t *testing.T) {
	w := testWriter(t)
	// A plain file where the secrets directory should be makes the write fail.
	if err := os.WriteFile(filepath.Dir(w.SecretsPath), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := w.WriteSecrets("hunter2")
	if err == nil {
		t.Fatal("WriteSecrets() should fail")
	}
	if st := exitcode.FromError(err); st != exitcode.NotPrivileged {
		t.Errorf("exit status = %d, want %d", st, exitcode.NotPrivileged)
	}
}

func TestWriteDanger(t *testing.T) {
	t.Run("empty set writes nothing", func(t *testing.T) {
		path, err := WriteDanger(nil)
		if err != nil {
			t.Fatalf("WriteDanger() error: %v", err)
		}
		if path != "" {
			t.Errorf("path = %q, want empty", path)
		}
	})

	t.Run("entries go to a temp file", func(t *testing.T) {
		path, err := WriteDanger([]answers.Entry{{Key: "reset_data", Title: "Reset the database", Value: "YES"}})
		if err != nil {
			t.Fatalf("WriteDanger() error: %v", err)
		}
		defer os.Remove(path)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading danger file: %v", err)
		}
		if !strings.Contains(string(data), "reset_data = YES") {
			t.Errorf("danger content = %q", data)
		}
	})
}

func TestPersist_ExcludesSecretFromResult(t *testing.T) {
	w := testWriter(t)
	main := []answers.Entry{{Key: "org_name", Value: "Forge West"}}

	dangerPath, err := w.Persist(main, nil, "hunter2", true)
	if err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	if dangerPath != "" {
		t.Errorf("dangerPath = %q, want empty", dangerPath)
	}

	result, _ := os.ReadFile(w.ResultPath)
	if strings.Contains(string(result), "hunter2") {
		t.Errorf("secret leaked into result artifact: %q", result)
	}
	secret, err := os.ReadFile(w.SecretsPath)
	if err != nil {
		t.Fatalf("secrets file missing: %v", err)
	}
	if string(secret) != "hunter2\n" {
		t.Errorf("secrets content = %q", secret)
	}
}

func TestArchiveResult(t *testing.T) {
	w := testWriter(t)
	if err := w.WriteResult([]answers.Entry{{Key: "a", Value: "1"}}); err != nil {
		t.Fatal(err)
	}
	logDir := t.TempDir()

	if err := w.ArchiveResult(logDir); err != nil {
		t.Fatalf("ArchiveResult() error: %v", err)
	}
	copied, err := os.ReadFile(filepath.Join(logDir, filepath.Base(w.ResultPath)))
	if err != nil {
		t.Fatalf("archived copy missing: %v", err)
	}
	original, _ := os.ReadFile(w.ResultPath)
	if string(copied) != string(original) {
		t.Error("archived copy differs from original")
	}
}
