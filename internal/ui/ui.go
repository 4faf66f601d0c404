// Package ui renders human-facing setup output: stage labels, the dot
// progress bar, success and failure suffixes, and error listings.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/forgeworks/forge-setup/internal/ansi"
)

// Printer writes operator-facing output. Progress and raw subprocess
// passthrough go to Out; diagnostics go to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

func New() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// StageStart prints the stage label and leaves the cursor on the line, where
// the progress dots accumulate.
func (p *Printer) StageStart(label string) {
	fmt.Fprintf(p.Out, ansi.Bold+"%s "+ansi.Reset, label)
}

// Dot advances the progress bar by one cell.
func (p *Printer) Dot() {
	fmt.Fprint(p.Out, ".")
}

// StageOK terminates the active stage line with a success suffix.
func (p *Printer) StageOK() {
	fmt.Fprintln(p.Out, " ... "+ansi.Green+ansi.Bold+"OK"+ansi.Reset)
}

// StageFail terminates the active stage line and names the log file that
// holds the details.
func (p *Printer) StageFail(logPath string) {
	fmt.Fprintf(p.Out, "\n"+ansi.Red+ansi.Bold+"Failed"+ansi.Reset+", check the log file %s\n", logPath)
}

// EndLine terminates a partial progress line without a verdict, used when a
// stage is abandoned mid-bar.
func (p *Printer) EndLine() {
	fmt.Fprintln(p.Out)
}

// Raw echoes one subprocess line unchanged.
func (p *Printer) Raw(line string) {
	fmt.Fprintln(p.Out, line)
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.Err, ansi.Red+ansi.Bold+"error: "+ansi.Reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(p.Err, ansi.Dim+"%s"+ansi.Reset+"\n", msg)
}

// Problems prints a batch of collected problems under one header, the way
// parse and unknown-option errors are reported: all at once.
func (p *Printer) Problems(header string, problems []string) {
	fmt.Fprintf(p.Err, ansi.Red+ansi.Bold+"%s"+ansi.Reset+"\n", header)
	for _, problem := range problems {
		fmt.Fprintf(p.Err, "  "+ansi.Red+"• "+ansi.Reset+"%s\n", problem)
	}
}

// Done prints the end-of-run verdict.
func (p *Printer) Done(failed bool, logDir string) {
	if failed {
		fmt.Fprintf(p.Out, ansi.Red+ansi.Bold+"✗ setup failed"+ansi.Reset+" — see the logs under %s\n", logDir)
		return
	}
	fmt.Fprintln(p.Out, ansi.Green+ansi.Bold+"✓ setup completed successfully"+ansi.Reset)
}
