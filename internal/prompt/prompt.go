// Package prompt interactively repairs options whose values are missing or
// fail validation. Password-titled options are read with terminal echo off
// and must be entered twice.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/forgeworks/forge-setup/internal/exitcode"
	"github.com/forgeworks/forge-setup/internal/rules"
)

// Prompter reads corrected option values from the operator. The zero value is
// not usable; construct with New. In, Out, and the password reader are
// injectable for tests.
type Prompter struct {
	In             *bufio.Reader
	Out            io.Writer
	NonInteractive bool

	passwordFd   int
	readPassword func(fd int) ([]byte, error)
}

// New builds a Prompter on the process's controlling streams.
func New(nonInteractive bool) *Prompter {
	return &Prompter{
		In:             bufio.NewReader(os.Stdin),
		Out:            os.Stderr,
		NonInteractive: nonInteractive,
		passwordFd:     int(os.Stdin.Fd()),
		readPassword:   term.ReadPassword,
	}
}

// Ask returns a value for rule that satisfies its pattern. In non-interactive
// mode the current value must already be valid, otherwise the run fails with
// the default-option status. Interactively, the loop is unbounded: it ends
// only when the operator supplies a matching value.
func (p *Prompter) Ask(rule *rules.Rule, title, current string) (string, error) {
	valid := current != "" && rule.Matches(current)

	if p.NonInteractive {
		if valid {
			return current, nil
		}
		return "", exitcode.Errorf(exitcode.DefaultOptionError,
			"option %s (%s) has no valid value and input is non-interactive; value must match %s",
			rule.Key, title, rule.Pattern)
	}

	if strings.Contains(title, "password") {
		return p.askMasked(rule, title)
	}
	return p.askPlain(rule, title, current, valid)
}

// askPlain prompts with the current value offered inline when it is itself
// valid; empty input then accepts it.
func (p *Prompter) askPlain(rule *rules.Rule, title, current string, valid bool) (string, error) {
	for {
		if valid {
			fmt.Fprintf(p.Out, "Enter %s [%s]: ", title, current)
		} else {
			fmt.Fprintf(p.Out, "Enter %s: ", title)
		}
		line, err := p.readLine()
		if err != nil {
			return "", fmt.Errorf("reading value for %s: %w", rule.Key, err)
		}
		if line == "" && valid {
			return current, nil
		}
		if rule.Matches(line) {
			return line, nil
		}
		fmt.Fprintf(p.Out, "The value must match %s\n", rule.Pattern)
	}
}

// askMasked reads the value twice with echo disabled and requires the two
// entries to agree.
func (p *Prompter) askMasked(rule *rules.Rule, title string) (string, error) {
	for {
		fmt.Fprintf(p.Out, "Enter %s: ", title)
		first, err := p.readPassword(p.passwordFd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", title, err)
		}
		if !rule.Matches(string(first)) {
			fmt.Fprintf(p.Out, "The value must match %s\n", rule.Pattern)
			continue
		}

		fmt.Fprintf(p.Out, "Confirm %s: ", title)
		second, err := p.readPassword(p.passwordFd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", title, err)
		}
		if string(first) != string(second) {
			fmt.Fprintln(p.Out, "The two entries do not match, try again.")
			continue
		}
		return string(first), nil
	}
}

// readLine reads one line of input, tolerating a final line without a
// trailing newline.
func (p *Prompter) readLine() (string, error) {
	line, err := p.In.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
