package registry

import "fmt"

// DuplicateRegistrationError is returned when a (provider, dataset) pair is
// registered twice within one process lifetime.
type DuplicateRegistrationError struct {
	Provider string
	Dataset  string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("registry: %s/%s already registered", e.Provider, e.Dataset)
}

// UnknownDatasetError is returned when resolving a (provider, dataset) pair
// that was never registered.
type UnknownDatasetError struct {
	Provider string
	Dataset  string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("registry: unknown dataset %s/%s", e.Provider, e.Dataset)
}
