package filter

// Filter is the parsed representation of a single filter string.
type Filter struct {
	Expr        string
	Group       Group
	Diagnostics Diagnostics
}

// Parse parses the given filter string. It never fails: fragments that can't be parsed are dropped and
// reported in the Diagnostics of the returned Filter.
func Parse(expr string, opts ParseOptions) *Filter {
	f := &Filter{Expr: expr}
	f.Group = NewParser(opts, &f.Diagnostics).Parse(expr)

	return f
}

// Empty reports whether the filter has no nodes at all and thus doesn't restrict anything.
func (f *Filter) Empty() bool {
	return len(f.Group.Nodes()) == 0
}

// CompileFilter compiles the parsed filter with the given builder and appends all compiler diagnostics to
// the filter's Diagnostics. See Compile.
func CompileFilter[P any](f *Filter, b Builder[P], schema Schema) (P, bool) {
	return Compile(f.Group, b, schema, &f.Diagnostics)
}
