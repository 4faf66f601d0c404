// Package apply drives the external configuration-apply tool as a subprocess
// and turns its line-oriented output into per-stage progress rendering.
package apply

import (
	_ "embed"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

// Stage describes one known unit of apply work: the log file the stage
// writes, the label shown to the operator, and how large the log grows on a
// typical run. Progress is the ratio of the log's current size to
// ExpectedBytes, capped at 100%.
type Stage struct {
	LogFile       string `toml:"log_file"`
	Label         string `toml:"label"`
	ExpectedBytes int64  `toml:"expected_bytes"`
}

type stageTable struct {
	Stages []Stage `toml:"stage"`
}

//go:embed stages.toml
var stagesTOML []byte

// Stages loads the built-in stage table, keyed by log-file path.
func Stages() (map[string]Stage, error) {
	var t stageTable
	if err := toml.Unmarshal(stagesTOML, &t); err != nil {
		return nil, fmt.Errorf("parsing stage table: %w", err)
	}
	m := make(map[string]Stage, len(t.Stages))
	for _, s := range t.Stages {
		m[s.LogFile] = s
	}
	return m, nil
}
