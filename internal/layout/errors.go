package layout

import "fmt"

// StructuralError reports a header layout that cannot be decoded. It is fatal
// for the whole sheet: no records are emitted when one is returned.
type StructuralError struct {
	// Store is the store label involved, "" for sheet-wide failures.
	Store string

	Reason string
}

func (e *StructuralError) Error() string {
	if e.Store == "" {
		return fmt.Sprintf("structural error: %s", e.Reason)
	}
	return fmt.Sprintf("structural error: store %q: %s", e.Store, e.Reason)
}

func structural(store, format string, args ...any) *StructuralError {
	return &StructuralError{Store: store, Reason: fmt.Sprintf(format, args...)}
}
