package snapshot

import "fmt"

// AlreadyExistsError guards against accidental duplicate publication: a
// partition already holds a snapshot with different content and the caller
// did not request correction mode.
type AlreadyExistsError struct {
	Provider  string
	Dataset   string
	Date      string
	ContentID string // existing content id
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("snapshot: %s/%s dt=%s already published (content %s); use correction mode to supersede",
		e.Provider, e.Dataset, e.Date, e.ContentID)
}
