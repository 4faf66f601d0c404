package apply

import (
	"os"
	"time"

	"github.com/forgeworks/forge-setup/internal/ui"
)

// barWidth is the number of dot cells in a full progress bar.
const barWidth = 60

// progressSession owns the drawn-width counter for exactly one active stage.
// While the session is alive its ticker goroutine is the only writer of
// drawn; cancel joins that goroutine before returning, so the counter has a
// single owner at every point in time. Cancel-before-reset is a hard
// invariant: the stream loop may not start a new session until the previous
// one's cancel has returned.
type progressSession struct {
	stage    Stage
	printer  *ui.Printer
	sizeOf   func(path string) (int64, error)
	interval time.Duration

	drawn int
	stop  chan struct{}
	done  chan struct{}
}

func newProgressSession(stage Stage, printer *ui.Printer, sizeOf func(string) (int64, error), interval time.Duration) *progressSession {
	if sizeOf == nil {
		sizeOf = fileSize
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &progressSession{
		stage:    stage,
		printer:  printer,
		sizeOf:   sizeOf,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start launches the once-per-second ticker that re-estimates progress from
// the stage log's size.
func (s *progressSession) start() {
	go s.run()
}

func (s *progressSession) run() {
	defer close(s.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.advance()
		}
	}
}

// advance widens the bar toward the current size estimate. The bar never
// retreats: a shrinking or vanished log file simply produces no new dots.
func (s *progressSession) advance() {
	size, err := s.sizeOf(s.stage.LogFile)
	if err != nil {
		return
	}
	pct := int64(100)
	if s.stage.ExpectedBytes > 0 && size < s.stage.ExpectedBytes {
		pct = size * 100 / s.stage.ExpectedBytes
	}
	target := int(pct) * barWidth / 100
	for s.drawn < target {
		s.printer.Dot()
		s.drawn++
	}
}

// cancel stops the ticker and blocks until its goroutine has exited.
func (s *progressSession) cancel() {
	close(s.stop)
	<-s.done
}

// finishOK cancels the ticker, fills the bar to completion, and prints the
// success suffix.
func (s *progressSession) finishOK() {
	s.cancel()
	for s.drawn < barWidth {
		s.printer.Dot()
		s.drawn++
	}
	s.printer.StageOK()
}

// finishFail cancels the ticker and prints the failure line naming the
// stage's log file. The partial bar is left as drawn.
func (s *progressSession) finishFail() {
	s.cancel()
	s.printer.StageFail(s.stage.LogFile)
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
