package apply

import (
	"regexp"
	"strings"
	"time"

	"github.com/forgeworks/forge-setup/internal/ansi"
	"github.com/forgeworks/forge-setup/internal/runlog"
	"github.com/forgeworks/forge-setup/internal/ui"
)

// Output markers of the apply tool. The tool's line format is a published
// contract; these are matched against ANSI-stripped, whitespace-trimmed text.
var executingRE = regexp.MustCompile(`Executing '([^']+)'`)

const (
	successMarker = "executed successfully"
	errorMarker   = "err:"
	debugMarker   = "debug:"
)

// machine is the per-line state machine over the subprocess output stream.
// At most one progressSession is active at a time; every transition cancels
// the old session before a new one may start.
type machine struct {
	stages  map[string]Stage
	printer *ui.Printer
	log     *runlog.Writer

	raw      bool
	debug    bool
	sizeOf   func(string) (int64, error)
	interval time.Duration

	session *progressSession
	failed  bool
}

// handleLine consumes one line of subprocess output. Every line is mirrored
// to the run log regardless of mode.
func (m *machine) handleLine(raw string) {
	m.log.Line(raw)
	line := strings.TrimSpace(ansi.Strip(raw))

	if m.raw {
		if strings.HasPrefix(line, debugMarker) && !m.debug {
			return
		}
		if strings.HasPrefix(line, errorMarker) {
			m.failed = true
		}
		m.printer.Raw(raw)
		return
	}

	switch {
	case executingRE.MatchString(line):
		command := executingRE.FindStringSubmatch(line)[1]
		stage, ok := m.matchStage(command)
		if !ok {
			return
		}
		if m.session != nil {
			// A new stage begins while one is drawing: abandon the old bar.
			m.session.cancel()
			m.printer.EndLine()
			m.session = nil
		}
		m.printer.StageStart(stage.Label)
		m.session = newProgressSession(stage, m.printer, m.sizeOf, m.interval)
		m.session.start()

	case strings.Contains(line, successMarker):
		// A success marker with no active stage is not ours to celebrate.
		if m.session != nil {
			m.session.finishOK()
			m.session = nil
		}

	case strings.HasPrefix(line, errorMarker):
		m.failed = true
		if m.session != nil {
			m.session.finishFail()
			m.session = nil
		} else {
			m.printer.Raw(line)
		}
	}
}

// matchStage finds the stage whose log file the executed command references.
func (m *machine) matchStage(command string) (Stage, bool) {
	for path, stage := range m.stages {
		if strings.Contains(command, path) {
			return stage, true
		}
	}
	return Stage{}, false
}

// finish tears down a session left active at end of stream, so no ticker
// outlives the subprocess.
func (m *machine) finish() {
	if m.session != nil {
		m.session.cancel()
		m.printer.EndLine()
		m.session = nil
	}
}
