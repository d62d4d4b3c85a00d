package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure modes a Transform call can surface.
// Callers classify with errors.Is.
var (
	// ErrConfiguration marks a missing or unusable external-tool setting.
	// Fatal to the filter instance: every call fails until corrected.
	ErrConfiguration = errors.New("configuration error")

	// ErrStaging marks a failure to create, write, or read the temporary
	// staging copy of the source.
	ErrStaging = errors.New("staging error")

	// ErrLaunch marks an external executable that could not be started.
	ErrLaunch = errors.New("process launch error")

	// ErrConversion marks a classified non-success exit of the external
	// tool, or a failure reading its output. Partial output is discarded.
	ErrConversion = errors.New("conversion error")

	// ErrInterrupted marks a Transform cut short by context cancellation
	// or deadline; the external process has been killed.
	ErrInterrupted = errors.New("interrupted")
)

// Wrap builds an error message that includes filter context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, filterName, operation, message string, err error) error {
	detail := buildDetail(filterName, operation, message)
	if marker == nil {
		marker = ErrConversion
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// NeedsReview reports whether the error indicates an operator problem rather
// than a bad source document: configuration errors keep failing until a human
// fixes the setup, so runs carrying them are parked for review instead of
// being marked as ordinary failures.
func NeedsReview(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(filterName, operation, message string) string {
	parts := make([]string, 0, 3)
	if filterName = strings.TrimSpace(filterName); filterName != "" {
		parts = append(parts, filterName)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "filter failure"
	}
	return strings.Join(parts, ": ")
}
