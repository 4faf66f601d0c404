// Package rules parses the options-format file: the companion to the default
// answer file that declares, per option, whether it is mandatory and which
// regular expression its value must satisfy.
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is the validation contract for one option. Regexp is compiled once at
// load time; Pattern keeps the source text for prompts and error messages.
type Rule struct {
	Key       string
	Mandatory bool
	Pattern   string
	Regexp    *regexp.Regexp
}

// Matches reports whether value satisfies the rule's pattern.
func (r *Rule) Matches(value string) bool {
	return r.Regexp.MatchString(value)
}

// Set holds every rule of one options-format file, in declaration order.
type Set struct {
	Rules    map[string]*Rule
	Order    []string
	Titles   map[string]string
	Synopses map[string]string
}

// Get returns the rule for key, or nil when the key has no declared rule.
func (s *Set) Get(key string) *Rule {
	return s.Rules[key]
}

// ParseError aggregates every unparseable line of one options-format file.
type ParseError struct {
	File     string
	Problems []string
}

func (e *ParseError) Error() string {
	return strings.Join(e.Problems, "\n")
}

var dataLineRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s+(true|false)\s+(\S.*)$`)

// Parse reads the options-format grammar from data. The comment grammar
// (title, synopsis, blank-line reset) is the same as the answer file's; data
// lines are `key bool regex` with case-sensitive boolean literals. Malformed
// lines and regexes that fail to compile are collected, not fatal, so every
// problem in the file surfaces in one run.
func Parse(name string, data []byte) (*Set, error) {
	s := &Set{
		Rules:    make(map[string]*Rule),
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
			key, mandatory, pattern := m[1], m[2] == "true", strings.TrimSpace(m[3])
			re, err := regexp.Compile(pattern)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s:%d: invalid regex for %s: %v", name, i+1, key, err))
				title = ""
				synopsis = nil
				continue
			}
			if _, seen := s.Rules[key]; !seen {
				s.Order = append(s.Order, key)
			}
			s.Rules[key] = &Rule{Key: key, Mandatory: mandatory, Pattern: pattern, Regexp: re}
			if title != "" {
				s.Titles[key] = title
			}
			if len(synopsis) > 0 {
				s.Synopses[key] = strings.Join(synopsis, " ")
			}
			title = ""
			synopsis = nil
		}
	}

	if len(problems) > 0 {
		return s, &ParseError{File: name, Problems: problems}
	}
	return s, nil
}
