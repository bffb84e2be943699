// File: deferred/failure.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Failure wraps the error travelling down a deferred chain together
// with the stack captured where it entered the chain.

package deferred

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Failure is the error-mode payload of a Deferred chain. It implements
// error and carries a stack trace from the point the failure was
// created, printable with %+v.
type Failure struct {
	err error
}

// stackTracer matches errors that already carry a pkg/errors stack.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewFailure wraps err into a Failure, capturing the current stack
// unless err already carries one. A nil err yields a generic failure.
// Passing an existing *Failure returns it unchanged.
func NewFailure(err error) *Failure {
	if err == nil {
		err = errors.New("unknown failure")
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	if _, ok := err.(stackTracer); !ok {
		err = errors.WithStack(err)
	}
	return &Failure{err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string { return f.err.Error() }

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (f *Failure) Unwrap() error { return f.err }

// Cause returns the innermost error, unwinding any stack annotations.
func (f *Failure) Cause() error { return errors.Cause(f.err) }

// Check reports whether the failure matches any of the target errors.
// It is the errback-side test for expected error kinds.
func (f *Failure) Check(targets ...error) bool {
	for _, target := range targets {
		if errors.Is(f.err, target) {
			return true
		}
	}
	return false
}

// Format renders the failure; %+v includes the captured stack.
func (f *Failure) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%+v", f.err)
			return
		}
		io.WriteString(s, f.err.Error())
	case 's':
		io.WriteString(s, f.err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", f.err.Error())
	}
}
