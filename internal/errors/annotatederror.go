// Package errors wraps the standard library errors package with errors that carry structured slog
// annotations and the source location where they were created.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

type annotatedError struct {
	msg         string
	err         error
	annotations []slog.Attr
	file        string
	line        int
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

func (e *annotatedError) source() string {
	if e.file == "" {
		return ""
	}
	return e.file + ":" + strconv.Itoa(e.line)
}

// New creates an error with annotations and the caller's source location.
func New(msg string, annotations ...slog.Attr) error {
	file, line := callerLocation()
	return &annotatedError{msg: msg, err: nil, annotations: annotations, file: file, line: line}
}

// NewSentinel creates an error without source location for use as a package-level sentinel value.
func NewSentinel(msg string) error {
	return errors.New(msg) //nolint:err113 // this is the constructor
}

// Wrap annotates err with a message, slog attributes and the caller's source location. The message is
// prepended to the wrapped error's message.
func Wrap(err error, msg string, annotations ...slog.Attr) error {
	file, line := callerLocation()
	return &annotatedError{msg: msg, err: err, annotations: annotations, file: file, line: line}
}

// Join wraps [errors.Join].
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is wraps [errors.Is].
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps [errors.As].
func As(err error, target any) bool {
	return errors.As(err, target) //nolint:errorlint // pass-through
}

// Unwrap wraps [errors.Unwrap].
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// DecoratePanic turns a recovered panic value into an error pointing at the line that panicked. It must
// be called from the deferred function that recovered. A nil value returns nil.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	file, line := panicLocation()
	if err, ok := recovered.(error); ok {
		return &annotatedError{msg: "panic", err: err, annotations: nil, file: file, line: line}
	}
	return &annotatedError{
		msg:         fmt.Sprintf("panic: %v", recovered),
		err:         nil,
		annotations: nil,
		file:        file,
		line:        line,
	}
}

// SlogError returns an "error" group with the message, the annotations collected from the whole error
// chain and the source location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error", slog.String("message", "<nil>"))
	}

	var (
		annotations []any
		source      string
	)
	queue := []error{err}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == nil {
			continue
		}
		//nolint:errorlint // walking the chain manually
		switch e := current.(type) {
		case *annotatedError:
			for _, a := range e.annotations {
				annotations = append(annotations, a)
			}
			if s := e.source(); s != "" {
				source = s
			}
			queue = append(queue, e.err)
		case interface{ Unwrap() []error }:
			queue = append(queue, e.Unwrap()...)
		case interface{ Unwrap() error }:
			queue = append(queue, e.Unwrap())
		}
	}

	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// callerLocation returns the location of the function calling New or Wrap.
func callerLocation() (string, int) {
	var pcs [1]uintptr
	if runtime.Callers(3, pcs[:]) == 0 { //nolint:mnd // skip Callers, callerLocation and New/Wrap
		return "", 0
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	return frame.File, frame.Line
}

// panicLocation returns the frame below runtime.gopanic on the current stack.
func panicLocation() (string, int) {
	pcs := make([]uintptr, 64) //nolint:mnd // deep enough for handlers
	n := runtime.Callers(3, pcs) //nolint:mnd // skip Callers, panicLocation and DecoratePanic
	frames := runtime.CallersFrames(pcs[:n])
	var (
		first     runtime.Frame
		haveFirst bool
		afterPan  bool
	)
	for {
		frame, more := frames.Next()
		if !haveFirst {
			first, haveFirst = frame, true
		}
		if afterPan {
			return frame.File, frame.Line
		}
		if frame.Function == "runtime.gopanic" {
			afterPan = true
		}
		if !more {
			break
		}
	}
	return first.File, first.Line
}
