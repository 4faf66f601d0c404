// Package answers parses and serializes the answer-file format: a plain-text
// key=value configuration where consecutive comment lines document the option
// that follows them. The first comment line of a block is the option's short
// title, the remaining lines its synopsis.
package answers

import (
	"fmt"
	"regexp"
	"strings"
)

// File is the parsed content of one answer file. The maps are keyed by option
// name; Order preserves the order in which keys first appeared, which drives
// both display and serialization.
type File struct {
	Name     string
	Values   map[string]string
	Order    []string
	Titles   map[string]string
	Synopses map[string]string
}

// ParseError aggregates every unparseable line of one file. Parsing never
// stops at the first bad line; the operator gets the full list in one run.
type ParseError struct {
	File     string
	Problems []string
}

func (e *ParseError) Error() string {
	return strings.Join(e.Problems, "\n")
}

var dataLineRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

// Parse reads the answer-file grammar from data. The name is used in error
// messages only. On malformed input the returned *File still carries every
// line that did parse, alongside a *ParseError listing the ones that did not.
func Parse(name string, data []byte) (*File, error) {
	f := &File{
		Name:     name,
		Values:   make(map[string]string),
		Titles:   make(map[string]string),
		Synopses: make(map[string]string),
	}

	var problems []string
	var title string
	var synopsis []string

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, " \t\r")

		switch {
		case strings.TrimSpace(line) == "":
			// A blank line orphans any pending comment block.
			title = ""
			synopsis = nil

		case strings.HasPrefix(line, "#"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if title == "" && len(synopsis) == 0 {
				title = strings.TrimSuffix(text, ".")
			} else {
				synopsis = append(synopsis, text)
			}

		default:
			m := dataLineRE.FindStringSubmatch(line)
			if m == nil {
				problems = append(problems, fmt.Sprintf("%s:%d: unparseable line %q", name, i+1, line))
				title = ""
				synopsis = nil
				continue
			}
			key, value := m[1], m[2]
			if _, seen := f.Values[key]; !seen {
				f.Order = append(f.Order, key)
			}
			f.Values[key] = value
			if title != "" {
				f.Titles[key] = title
			}
			if len(synopsis) > 0 {
				f.Synopses[key] = strings.Join(synopsis, " ")
			}
			title = ""
			synopsis = nil
		}
	}

	if len(problems) > 0 {
		return f, &ParseError{File: name, Problems: problems}
	}
	return f, nil
}
