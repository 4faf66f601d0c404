// Package ansi provides ANSI escape code constants and helpers for terminal output.
// All colored/styled terminal output should reference these constants to avoid duplication.
package ansi

import "regexp"

// ANSI SGR (Select Graphic Rendition) codes.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Blue   = "\033[34m"
	Yellow = "\033[33m"
	Green  = "\033[32m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
)

// escapeRE matches CSI escape sequences (colors, cursor and line control).
var escapeRE = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// Strip removes ANSI escape sequences from s. Persisted log lines hold the
// plain text of what the subprocess printed, not the terminal styling.
func Strip(s string) string {
	return escapeRE.ReplaceAllString(s, "")
}
