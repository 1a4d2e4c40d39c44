package crosswalk

import "fmt"

// ConflictError is returned when a proposed alias would map one provider's
// native identifier onto two canonical entities, contradicting an existing
// mapping. It requires explicit human override to accept.
type ConflictError struct {
	Provider    string
	NativeID    string
	ExistingID  string
	ProposedID  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("crosswalk: %s:%q already maps to %q, proposed %q",
		e.Provider, e.NativeID, e.ExistingID, e.ProposedID)
}
