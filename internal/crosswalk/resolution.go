// Package crosswalk maps provider-native identifiers onto the canonical
// identity space and maintains the alias reference data behind that mapping.
package crosswalk

// Outcome tags a resolution result. Ambiguity is explicit, never collapsed
// to a best guess.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeAmbiguous  Outcome = "ambiguous"
)

// Resolution is the result of resolving one provider-native identifier.
type Resolution struct {
	Outcome     Outcome
	CanonicalID string   // set when Outcome == OutcomeResolved
	Candidates  []string // composite-key candidates when Outcome == OutcomeAmbiguous
}

// Resolved reports whether the resolution produced a canonical identifier.
func (r Resolution) Resolved() bool { return r.Outcome == OutcomeResolved }
