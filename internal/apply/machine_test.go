package apply

import (
	"strings"
	"testing"
	"time"
)

func testMachine(raw, debug bool) (*machine, func() string) {
	printer, buf := testPrinter()
	m := &machine{
		stages: map[string]Stage{
			"/var/log/forge/db-migrate.log": {
				LogFile:       "/var/log/forge/db-migrate.log",
				Label:         "Migrating the database schema",
				ExpectedBytes: 1000,
			},
		},
		printer:  printer,
		raw:      raw,
		debug:    debug,
		sizeOf:   func(string) (int64, error) { return 0, nil },
		interval: time.Hour,
	}
	return m, buf.String
}

func TestMachine_StageLifecycle(t *testing.T) {
	m, output := testMachine(false, false)

	m.handleLine("notice: Executing '/usr/sbin/forge-db-migrate 2>> /var/log/forge/db-migrate.log'")
	if m.session == nil {
		t.Fatal("executing marker should open a stage")
	}
	if !strings.Contains(output(), "Migrating the database schema") {
		t.Errorf("stage label not printed: %q", output())
	}

	m.handleLine("notice: /usr/sbin/forge-db-migrate returns: executed successfully")
	if m.session != nil {
		t.Error("success marker should close the stage")
	}
	if !strings.Contains(output(), "OK") {
		t.Errorf("missing OK suffix: %q", output())
	}
	if m.failed {
		t.Error("clean stage marked the run failed")
	}
}

func TestMachine_SuccessWithoutStageIsIgnored(t *testing.T) {
	m, output := testMachine(false, false)

	m.handleLine("notice: something returns: executed successfully")
	if strings.Contains(output(), "OK") {
		t.Errorf("false OK printed: %q", output())
	}
	if m.failed {
		t.Error("run marked failed")
	}
}

func TestMachine_ErrorWithActiveStage(t *testing.T) {
	m, output := testMachine(false, false)

	m.handleLine("Executing '/usr/sbin/forge-db-migrate 2>> /var/log/forge/db-migrate.log'")
	m.handleLine("err: /Stage[main]/Forge::Db: change from absent to present failed")

	if m.session != nil {
		t.Error("error marker should close the stage")
	}
	if !m.failed {
		t.Error("error not recorded")
	}
	if !strings.Contains(output(), "/var/log/forge/db-migrate.log") {
		t.Errorf("failure should name the stage log: %q", output())
	}
}

func TestMachine_ErrorWithoutStagePrintedDirectly(t *testing.T) {
	m, output := testMachine(false, false)

	m.handleLine("err: could not contact service")
	if !m.failed {
		t.Error("error not recorded")
	}
	if !strings.Contains(output(), "could not contact service") {
		t.Errorf("bare error not echoed: %q", output())
	}
}

func TestMachine_ErrorDoesNotAbortStream(t *testing.T) {
	m, output := testMachine(false, false)

	m.handleLine("err: first failure")
	m.handleLine("Executing 'retry 2>> /var/log/forge/db-migrate.log'")
	m.handleLine("returns: executed successfully")

	if !m.failed {
		t.Error("earlier error forgotten")
	}
	if !strings.Contains(output(), "OK") {
		t.Errorf("later stage did not complete: %q", output())
	}
}

func TestMachine_UnknownExecutingCommandIgnored(t *testing.T) {
	m, _ := testMachine(false, false)

	m.handleLine("Executing '/usr/bin/true'")
	if m.session != nil {
		t.Error("unknown command opened a stage")
	}
}

func TestMachine_NewStageAbandonsPrevious(t *testing.T) {
	m, _ := testMachine(false, false)
	m.stages["/var/log/forge/db-seed.log"] = Stage{
		LogFile: "/var/log/forge/db-seed.log", Label: "Seeding", ExpectedBytes: 10,
	}

	m.handleLine("Executing 'a 2>> /var/log/forge/db-migrate.log'")
	first := m.session
	m.handleLine("Executing 'b 2>> /var/log/forge/db-seed.log'")

	if m.session == first {
		t.Fatal("second executing marker did not open a new session")
	}
	select {
	case <-first.done:
	default:
		t.Error("previous session's ticker still alive after new stage started")
	}
	m.finish()
}

func TestMachine_RawMode(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		line     string
		wantSeen bool
	}{
		{"plain line echoed", false, "notice: doing things", true},
		{"debug line hidden", false, "debug: internals", false},
		{"debug line shown with flag", true, "debug: internals", true},
		{"colored debug line hidden", false, "\033[34mdebug:\033[0m internals", false},
		{"error line echoed", false, "err: broken", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, output := testMachine(true, tt.debug)
			m.handleLine(tt.line)
			if got := strings.Contains(output(), "internals") || strings.Contains(output(), "doing things") || strings.Contains(output(), "broken"); got != tt.wantSeen {
				t.Errorf("line visibility = %v, want %v (output %q)", got, tt.wantSeen, output())
			}
		})
	}
}

func TestMachine_FinishClosesDanglingSession(t *testing.T) {
	m, _ := testMachine(false, false)
	m.handleLine("Executing 'x 2>> /var/log/forge/db-migrate.log'")
	m.finish()

	if m.session != nil {
		t.Error("finish left a session active")
	}
}
