// Package exitcode defines the fixed exit-status taxonomy of forge-setup and
// a typed error that carries a status through the call chain to main.
package exitcode

import (
	"errors"
	"fmt"
)

// Status is a process exit code. The values are a published interface:
// packaging scripts and kickstart files branch on them.
type Status int

const (
	OK                  Status = 0
	General             Status = 1
	DefaultOptionError  Status = 2
	AnswerFileMissing   Status = 3
	AnswerParsingError  Status = 4
	AnswerUnknownOption Status = 5
	ApplyError          Status = 6
	HostnameError       Status = 7
	NotPrivileged       Status = 8
	Unknown             Status = 127
)

// Error pairs an underlying error with the exit status it should produce.
type Error struct {
	Status Status
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error with a formatted message.
func Errorf(st Status, format string, args ...any) error {
	return &Error{Status: st, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a status to an existing error. A nil err returns nil.
func Wrap(st Status, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Status: st, Err: err}
}

// FromError extracts the status from an error chain. A nil error is OK;
// an error with no attached status maps to General.
func FromError(err error) Status {
	if err == nil {
		return OK
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Status
	}
	return General
}
