package model

// Severity classifies the outcome of one quality check.
type Severity string

const (
	SeverityPass Severity = "pass"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// Finding is the result of one validation check against a raw batch.
// Findings are produced per run and surfaced to operators; they are not
// persisted as first-class state.
type Finding struct {
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Rows        int      `json:"rows,omitempty"` // affected row count
}

// Findings is an ordered list of quality findings.
type Findings []Finding

// Failed reports whether any finding has fail severity.
func (fs Findings) Failed() bool {
	for _, f := range fs {
		if f.Severity == SeverityFail {
			return true
		}
	}
	return false
}

// Warned reports whether any finding has warn severity.
func (fs Findings) Warned() bool {
	for _, f := range fs {
		if f.Severity == SeverityWarn {
			return true
		}
	}
	return false
}
