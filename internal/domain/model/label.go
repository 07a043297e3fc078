// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Label is the fetal health status of an observation.
// The numeric values match the codes stored in the datastore.
type Label int

// Fetal health status codes.
const (
	Normal     Label = 1
	Suspect    Label = 2
	Pathologic Label = 3
)

// Labels lists every valid label in code order.
var Labels = []Label{Normal, Suspect, Pathologic}

// NumLabels is the number of fetal health classes.
const NumLabels = 3

// String returns the display name of the label.
func (l Label) String() string {
	switch l {
	case Normal:
		return "Normal"
	case Suspect:
		return "Suspect"
	case Pathologic:
		return "Pathologic"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Valid reports whether l is one of the three known codes.
func (l Label) Valid() bool {
	return l >= Normal && l <= Pathologic
}

// Index returns the zero-based position of the label (Normal=0).
func (l Label) Index() int {
	return int(l) - 1
}

// LabelAt is the inverse of Index.
func LabelAt(i int) Label {
	return Label(i + 1)
}

// ParseLabel accepts a display name (case-insensitive) or a numeric code.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "1", "1.0":
		return Normal, nil
	case "suspect", "2", "2.0":
		return Suspect, nil
	case "pathologic", "pathological", "3", "3.0":
		return Pathologic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// LabelFromFloat converts a stored label value (1.0, 2.0, 3.0) to a Label.
func LabelFromFloat(v float64) (Label, error) {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %v", ErrUnknownLabel, v)
	}
	l := Label(int(v))
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrUnknownLabel, v)
	}
	return l, nil
}

// MarshalText encodes the label by name.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLabel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a label by name or code.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalJSON accepts either a quoted name/code or a bare numeric code.
func (l *Label) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = 0
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	return l.UnmarshalText([]byte(s))
}
