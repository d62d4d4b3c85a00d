// Package exitcode interprets the exit status of the XPDF conversion tools.
//
// The exit code is the only failure signal the tools provide, so it is
// classified rather than treated as opaque. The mapping is part of the
// external contract any replacement tool must reproduce.
package exitcode

import "fmt"

// Class is the interpreted outcome of a tool invocation.
type Class int

const (
	// Success is exit status 0.
	Success Class = iota
	// InputUnreadable is exit status 1: the tool could not open its input.
	InputUnreadable
	// PermissionDenied is exit status 3: the document's internal
	// protections forbid content extraction.
	PermissionDenied
	// GenericFailure is any other non-zero status.
	GenericFailure
)

// Outcome pairs the raw exit code with its classification.
type Outcome struct {
	Code  int
	Class Class
}

// Classify maps a tool exit code to an outcome. It is total and pure.
func Classify(code int) Outcome {
	switch code {
	case 0:
		return Outcome{Code: code, Class: Success}
	case 1:
		return Outcome{Code: code, Class: InputUnreadable}
	case 3:
		return Outcome{Code: code, Class: PermissionDenied}
	default:
		return Outcome{Code: code, Class: GenericFailure}
	}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Class == Success
}

// Reason renders the human-readable failure description carried into
// conversion errors. Success outcomes have no reason.
func (o Outcome) Reason() string {
	switch o.Class {
	case Success:
		return ""
	case InputUnreadable:
		return "tool could not open its input file"
	case PermissionDenied:
		return "content extraction forbidden by the document's internal permissions"
	default:
		return fmt.Sprintf("tool failed with exit status %d (input may be corrupt)", o.Code)
	}
}
