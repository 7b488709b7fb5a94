package filter

import (
	"fmt"
)

// DiagnosticKind classifies the ways a filter fragment can end up contributing nothing.
type DiagnosticKind string

const (
	// DroppedFragment is reported by the lexer for input that matches no token.
	DroppedFragment DiagnosticKind = "dropped-fragment"
	// InvalidCondition is reported when a condition token can't be split into field, operator and value.
	InvalidCondition DiagnosticKind = "invalid-condition"
	// DroppedMarker is reported for a boolean marker at the start of a group.
	DroppedMarker DiagnosticKind = "dropped-marker"
	// UnbalancedParens is reported for a ')' without a matching '(' or input ending inside a group.
	UnbalancedParens DiagnosticKind = "unbalanced-parens"
	// UnknownField is reported by the compiler for basic filters on a column the base entity doesn't have.
	UnknownField DiagnosticKind = "unknown-field"
	// InvalidValue is reported by the compiler for basic filters whose operator or value doesn't fit the kind
	// of the column, e.g. LIKE on a number or a non-numeric value for a numeric column.
	InvalidValue DiagnosticKind = "invalid-value"
	// EmptyGroup is reported by the compiler for a nested group that compiled to nothing.
	EmptyGroup DiagnosticKind = "empty-group"
)

// Diagnostic describes one filter fragment that was absorbed instead of failing the whole filter.
type Diagnostic struct {
	Kind     DiagnosticKind
	Fragment string
	Pos      int // Pos is the byte offset of the fragment in the filter string or -1 if unknown.
}

func (d Diagnostic) String() string {
	if d.Pos >= 0 {
		return fmt.Sprintf("%s at pos %d: %q", d.Kind, d.Pos, d.Fragment)
	}

	return fmt.Sprintf("%s: %q", d.Kind, d.Fragment)
}

// Diagnostics collects diagnostics of a single parse/compile run.
type Diagnostics []Diagnostic

func (d *Diagnostics) add(kind DiagnosticKind, fragment string, pos int) {
	*d = append(*d, Diagnostic{Kind: kind, Fragment: fragment, Pos: pos})
}

// Has reports whether at least one diagnostic of the given kind was recorded.
func (d Diagnostics) Has(kind DiagnosticKind) bool {
	for _, diag := range d {
		if diag.Kind == kind {
			return true
		}
	}

	return false
}
