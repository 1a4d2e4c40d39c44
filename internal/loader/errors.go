package loader

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidParameterError is returned before any fetch work when a run is
// invoked with a parameter the loader does not recognize.
type InvalidParameterError struct {
	Provider   string
	Dataset    string
	Name       string
	Recognized []string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("loader %s/%s: unknown parameter %q (recognized: %s)",
		e.Provider, e.Dataset, e.Name, strings.Join(e.Recognized, ", "))
}

// IsInvalidParameter reports whether err is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var ipe *InvalidParameterError
	return errors.As(err, &ipe)
}

// SourceUnavailableError is returned when every fetch attempt against a
// provider failed transiently. It signals the engine to fall back to the
// last known good snapshot rather than fail the run outright.
type SourceUnavailableError struct {
	Provider string
	Dataset  string
	Attempts int
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("loader %s/%s: source unavailable after %d attempts: %v",
		e.Provider, e.Dataset, e.Attempts, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// IsSourceUnavailable reports whether err is a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	var sue *SourceUnavailableError
	return errors.As(err, &sue)
}
