// Package merge combines the default answer file, the operator's answer file,
// and command-line overrides into one configuration set, then validates it
// against the options-format rules. Precedence is defaults < answer file <
// command line; only keys explicitly present in a layer override the layer
// below. State is threaded explicitly: the defaults stay immutable and every
// mutation happens on the Result.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgeworks/forge-setup/internal/answers"
	"github.com/forgeworks/forge-setup/internal/rules"
)

// Prompter obtains a corrected value for an option whose current value is
// missing or fails its validation rule.
type Prompter interface {
	Ask(rule *rules.Rule, title, current string) (string, error)
}

// UnknownOptionsError reports every answer-file key that is not part of the
// default set. All offenders are collected before the merge fails so the
// operator can fix the file in one pass.
type UnknownOptionsError struct {
	File string
	Keys []string
}

func (e *UnknownOptionsError) Error() string {
	return fmt.Sprintf("unknown option(s) in %s: %s", e.File, strings.Join(e.Keys, ", "))
}

// Result is the mutable merge state. It owns copies of everything it holds;
// the parsed files it was built from are never written to.
type Result struct {
	values   map[string]string
	defaults map[string]string
	titles   map[string]string
	synopses map[string]string
	order    []string
	repaired map[string]bool
}

// New seeds a Result from the parsed default answer file.
func New(def *answers.File) *Result {
	r := &Result{
		values:   make(map[string]string, len(def.Values)),
		defaults: make(map[string]string, len(def.Values)),
		titles:   make(map[string]string, len(def.Titles)),
		synopses: make(map[string]string, len(def.Synopses)),
		order:    append([]string(nil), def.Order...),
		repaired: make(map[string]bool),
	}
	for k, v := range def.Values {
		r.values[k] = v
		r.defaults[k] = v
	}
	for k, v := range def.Titles {
		r.titles[k] = v
	}
	for k, v := range def.Synopses {
		r.synopses[k] = v
	}
	return r
}

// ApplyAnswers overlays the operator's answer file. Keys absent from the
// default set are a hard error, reported together.
func (r *Result) ApplyAnswers(f *answers.File) error {
	var unknown []string
	for _, k := range f.Order {
		if _, ok := r.defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UnknownOptionsError{File: f.Name, Keys: unknown}
	}
	for _, k := range f.Order {
		r.values[k] = f.Values[k]
	}
	return nil
}

// ApplyOverrides overlays command-line values. The flag surface is generated
// from the default set, so every key is known by construction.
func (r *Result) ApplyOverrides(overrides map[string]string) {
	for k, v := range overrides {
		r.values[k] = v
	}
}

// Validate walks the rule set in declaration order and repairs, via the
// prompter, every mandatory option that is missing or invalid and every
// present value that fails its pattern. Repaired keys not yet in the key
// order are appended to it.
func (r *Result) Validate(set *rules.Set, p Prompter) error {
	for _, key := range set.Order {
		rule := set.Get(key)
		value, present := r.values[key]
		missing := !present || value == ""

		needsRepair := false
		if rule.Mandatory && (missing || !rule.Matches(value)) {
			needsRepair = true
		}
		if !missing && !rule.Matches(value) {
			needsRepair = true
		}
		if !needsRepair {
			continue
		}

		corrected, err := p.Ask(rule, r.Title(key), value)
		if err != nil {
			return err
		}
		r.values[key] = corrected
		if !present {
			r.order = append(r.order, key)
		}
		r.repaired[key] = true
	}
	return nil
}

// Title returns the best human label for key: the answer-file title when one
// exists, otherwise the raw key.
func (r *Result) Title(key string) string {
	if t, ok := r.titles[key]; ok {
		return t
	}
	return key
}

// Value returns the merged value for key.
func (r *Result) Value(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Entries returns every merged option in declaration order, for display.
func (r *Result) Entries() []answers.Entry {
	out := make([]answers.Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, answers.Entry{Key: k, Title: r.titles[k], Value: r.values[k]})
	}
	return out
}

// Delta returns the options to persist: every key whose value differs from
// its default, plus every interactively repaired key. A value the operator
// typed is kept even when it happens to equal the shipped default, so a later
// change to that default cannot silently alter the installed system.
func (r *Result) Delta() []answers.Entry {
	var out []answers.Entry
	for _, k := range r.order {
		def, hasDefault := r.defaults[k]
		if r.repaired[k] || !hasDefault || r.values[k] != def {
			out = append(out, answers.Entry{Key: k, Title: r.titles[k], Value: r.values[k]})
		}
	}
	return out
}

// Partition splits entries into the main persisted set, the dangerous set
// bound for the temporary apply-only file, and the value of the secret key
// (excluded from both). Relative order is preserved.
func Partition(entries []answers.Entry, dangerous []string, secretKey string) (main, danger []answers.Entry, secret string, hasSecret bool) {
	isDangerous := make(map[string]bool, len(dangerous))
	for _, k := range dangerous {
		isDangerous[k] = true
	}
	for _, e := range entries {
		switch {
		case e.Key == secretKey:
			secret = e.Value
			hasSecret = true
		case isDangerous[e.Key]:
			danger = append(danger, e)
		default:
			main = append(main, e)
		}
	}
	return main, danger, secret, hasSecret
}
