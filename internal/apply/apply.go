package apply

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/forgeworks/forge-setup/internal/runlog"
	"github.com/forgeworks/forge-setup/internal/ui"
)

// ErrApplyFailed reports that the apply subprocess completed but emitted one
// or more error markers on its stream.
var ErrApplyFailed = errors.New("apply step reported errors")

// Runner invokes the apply tool and consumes its combined stdout/stderr
// stream line by line. The stream read is synchronous; the only other live
// task is the active stage's progress ticker.
type Runner struct {
	// Command is the apply invocation, argv style.
	Command []string
	// ExtraEnv entries are appended to the inherited environment.
	ExtraEnv []string
	// Stages maps known stage log paths to their metadata.
	Stages map[string]Stage

	UI  *ui.Printer
	Log *runlog.Writer

	// Raw switches to passthrough rendering; Debug additionally shows
	// debug-marked lines there.
	Raw   bool
	Debug bool

	// SizeOf and TickInterval are injectable for tests; zero values select
	// os.Stat and one second.
	SizeOf       func(string) (int64, error)
	TickInterval time.Duration
}

// Run executes the apply command to completion. One newline is written to the
// child's stdin and the stream is closed; there is no timeout — the run ends
// at end of stream and process exit. Errors seen on the stream are recorded,
// not fatal mid-run; they surface as ErrApplyFailed once the stream drains.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.Command) == 0 {
		return errors.New("apply: no command configured")
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Env = append(os.Environ(), r.ExtraEnv...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("apply: stdin pipe: %w", err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("apply: output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("apply: starting %q: %w", r.Command[0], err)
	}
	pw.Close()

	io.WriteString(stdin, "\n")
	stdin.Close()

	m := &machine{
		stages:   r.Stages,
		printer:  r.UI,
		log:      r.Log,
		raw:      r.Raw,
		debug:    r.Debug,
		sizeOf:   r.SizeOf,
		interval: r.TickInterval,
	}

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m.handleLine(scanner.Text())
	}
	m.finish()
	scanErr := scanner.Err()
	pr.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("apply: %q: %w", r.Command[0], err)
	}
	if scanErr != nil {
		return fmt.Errorf("apply: reading output: %w", scanErr)
	}
	if m.failed {
		return ErrApplyFailed
	}
	return nil
}
