package sheet

import (
	"fmt"
	"strings"
)

// ColumnMap maps canonical labels to column indices in the detected header
// row. It is built once per run so per-row lookups never rescan headers.
type ColumnMap map[string]int

// BuildColumnMap matches each canonical label against the raw header cells.
// A raw header matches when it equals the canonical label after trimming
// and lower-casing.
func BuildColumnMap(headerRow []string, canonical []string) ColumnMap {
	m := make(ColumnMap, len(canonical))
	for _, label := range canonical {
		want := normalizeLabel(label)
		for i, raw := range headerRow {
			if normalizeLabel(raw) == want {
				m[label] = i
				break
			}
		}
	}
	return m
}

// Resolve returns the trimmed cell value for the canonical label, or false
// when the column is absent or the row is too short.
func (m ColumnMap) Resolve(row []string, canonical string) (string, bool) {
	idx, ok := m[canonical]
	if !ok || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// ValidateRequired fails fast when any required canonical label found no
// matching raw header, enumerating both sides so the operator can fix the
// export instead of silently losing columns.
func ValidateRequired(m ColumnMap, required []string, headerRow []string) error {
	var missing []string
	for _, label := range required {
		if _, ok := m[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var found []string
	for _, raw := range headerRow {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			found = append(found, trimmed)
		}
	}
	return fmt.Errorf("missing required columns [%s]; headers found: [%s]",
		strings.Join(missing, ", "), strings.Join(found, ", "))
}
