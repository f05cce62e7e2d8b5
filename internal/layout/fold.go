package layout

import "strings"

// CarryForward resolves merged-cell continuations in one header row.
//
// The row is folded left to right with the last non-empty label as the only
// accumulator: a non-empty cell replaces the label, an empty or absent cell
// inherits it. The result has exactly width entries and the input is not
// modified, so a label spanning K columns resolves the same for any K.
//
// Labels are trimmed of surrounding whitespace; case is preserved.
func CarryForward(cells []string, width int) []string {
	out := make([]string, width)
	current := ""
	for i := 0; i < width; i++ {
		if i < len(cells) {
			if v := strings.TrimSpace(cells[i]); v != "" {
				current = v
			}
		}
		out[i] = current
	}
	return out
}

// constant returns width copies of label, used when a vendor has no row for
// an annotation (single-store or single-period layouts).
func constant(label string, width int) []string {
	out := make([]string, width)
	for i := range out {
		out[i] = label
	}
	return out
}

// NormalizeStoreID turns a store header label into a store identifier:
// lowercase words joined by underscores.
func NormalizeStoreID(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.NewReplacer("-", " ", "/", " ", ".", " ").Replace(label)
	return strings.Join(strings.Fields(label), "_")
}
