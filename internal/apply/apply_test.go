package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forgeworks/forge-setup/internal/runlog"
)

func testRunner(script string, raw bool) (*Runner, func() string) {
	printer, buf := testPrinter()
	return &Runner{
		Command:      []string{"sh", "-c", script},
		UI:           printer,
		Raw:          raw,
		TickInterval: time.Hour,
		SizeOf:       func(string) (int64, error) { return 0, nil },
	}, buf.String
}

func TestRun_CleanStream(t *testing.T) {
	r, _ := testRunner("echo hello; echo world >&2", false)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRun_ErrorMarkerFailsTheRun(t *testing.T) {
	r, output := testRunner("echo 'err: boom'; echo recovering; exit 0", false)
	err := r.Run(context.Background())
	if !errors.Is(err, ErrApplyFailed) {
		t.Fatalf("Run() error = %v, want ErrApplyFailed", err)
	}
	if !strings.Contains(output(), "boom") {
		t.Errorf("error line not surfaced: %q", output())
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	r, _ := testRunner("", false)
	r.Command = []string{"/nonexistent/forge-apply-binary"}

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail to launch")
	}
	if errors.Is(err, ErrApplyFailed) {
		t.Error("launch failure misreported as stream failure")
	}
}

func TestRun_NoCommand(t *testing.T) {
	r := &Runner{}
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run() should reject an empty command")
	}
}

func TestRun_StderrIsPartOfTheStream(t *testing.T) {
	r, _ := testRunner("echo 'err: only on stderr' >&2", false)
	if err := r.Run(context.Background()); !errors.Is(err, ErrApplyFailed) {
		t.Fatalf("stderr error marker ignored: %v", err)
	}
}

func TestRun_StdinReceivesOneLine(t *testing.T) {
	// The child blocks on a read; the single newline we send unblocks it.
	r, _ := testRunner("read line; exit 0", false)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRun_MirrorsEveryLineToRunLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	log, err := runlog.New(logPath)
	if err != nil {
		t.Fatal(err)
	}

	r, _ := testRunner("printf '\\033[31merr: tinted\\033[0m\\n'; echo plain", true)
	r.Log = log
	if err := r.Run(context.Background()); !errors.Is(err, ErrApplyFailed) {
		t.Fatalf("Run() error = %v, want ErrApplyFailed", err)
	}
	log.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "err: tinted") || !strings.Contains(string(data), "plain") {
		t.Errorf("run log incomplete: %q", data)
	}
	if strings.Contains(string(data), "\033[") {
		t.Errorf("escape sequences leaked into the run log: %q", data)
	}
}

func TestStages_TableLoads(t *testing.T) {
	stages, err := Stages()
	if err != nil {
		t.Fatalf("Stages() error: %v", err)
	}
	if len(stages) == 0 {
		t.Fatal("stage table is empty")
	}
	for path, s := range stages {
		if s.LogFile != path {
			t.Errorf("stage keyed by %q has LogFile %q", path, s.LogFile)
		}
		if s.Label == "" {
			t.Errorf("stage %q has no label", path)
		}
		if s.ExpectedBytes <= 0 {
			t.Errorf("stage %q has no expected size", path)
		}
	}
}
