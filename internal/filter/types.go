package filter

import (
	"fmt"
	"strings"
)

// Operator is a type used for grouping the individual comparison operators of a filter string.
type Operator string

// List of the supported comparison operators.
const (
	Eq     Operator = "="
	Neq    Operator = "!="
	Gte    Operator = ">="
	Lte    Operator = "<="
	Gt     Operator = ">"
	Lt     Operator = "<"
	Like   Operator = "LIKE"
	In     Operator = "IN"
	HasAny Operator = "HAS_ANY"
	IsAny  Operator = "IS_ANY"
)

// operatorSpellings lists every supported operator.
var operatorSpellings = []Operator{Eq, Neq, Gte, Lte, Gt, Lt, Like, In, HasAny, IsAny}

// ParseOperator returns the Operator for the given spelling. Word style operators are matched case-insensitively.
func ParseOperator(s string) (Operator, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, op := range operatorSpellings {
		if string(op) == s {
			return op, true
		}
	}

	return "", false
}

// TakesList reports whether the operator carries a list value.
func (op Operator) TakesList() bool {
	return op == In || op == HasAny || op == IsAny
}

// Relation identifies a related collection of the base entity.
type Relation string

const (
	Languages       Relation = "languages"
	Locations       Relation = "locations"
	Categories      Relation = "categories"
	AttributeValues Relation = "attribute_values"
)

// AttributePrefix marks a field as an EAV attribute lookup, e.g. "attribute:years_experience".
const AttributePrefix = "attribute:"

// Columns of the related collections that the compiler refers to.
const (
	ColumnName    = "name"
	ColumnCity    = "city"
	ColumnState   = "state"
	ColumnCountry = "country"
	ColumnValue   = "value"
)

// Value is either a single scalar or a list of strings, depending on the operator it was parsed with.
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

// ScalarValue returns a non-list Value.
func ScalarValue(s string) Value {
	return Value{Scalar: s}
}

// ListValue returns a list Value.
func ListValue(items ...string) Value {
	return Value{List: items, IsList: true}
}

// Items returns the value as a list, wrapping a scalar into a single element list.
func (v Value) Items() []string {
	if v.IsList {
		return v.List
	}

	return []string{v.Scalar}
}

func (v Value) String() string {
	if v.IsList {
		return "(" + strings.Join(v.List, ",") + ")"
	}

	return v.Scalar
}

// Entry is a single element of a Group: either a Node or a Marker.
type Entry interface {
	entry()
}

// Node is a single filter condition. The set of implementations is closed:
// *Basic, *Relationship, *EAV and *SubGroup.
type Node interface {
	Entry
	node()
}

// Basic filters on a column of the base entity itself.
type Basic struct {
	Field    string
	Operator Operator
	Value    Value
}

// Relationship filters on one of the many-to-many relations of the base entity.
type Relationship struct {
	Relation Relation
	Operator Operator
	Values   []string
}

// EAV filters on a named dynamic attribute of the base entity.
type EAV struct {
	Attribute string
	Operator  Operator
	Value     Value
}

// SubGroup is a parenthesised group that is kept as its own nested predicate.
// It is only produced when ParseOptions.NestedGroups is set.
type SubGroup struct {
	Group Group
}

// Marker is a boolean marker combining the following sibling with everything accumulated before it.
type Marker string

const (
	And Marker = "AND"
	Or  Marker = "OR"
)

// Group is an ordered sequence of nodes and markers. Its first entry is always a Node.
type Group []Entry

// Nodes returns only the nodes of the group, in order.
func (g Group) Nodes() []Node {
	var nodes []Node
	for _, e := range g {
		if n, ok := e.(Node); ok {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

func (*Basic) entry()        {}
func (*Relationship) entry() {}
func (*EAV) entry()          {}
func (*SubGroup) entry()     {}
func (Marker) entry()        {}

func (*Basic) node()        {}
func (*Relationship) node() {}
func (*EAV) node()          {}
func (*SubGroup) node()     {}

// Assert interface compliance.
var (
	_ Node  = (*Basic)(nil)
	_ Node  = (*Relationship)(nil)
	_ Node  = (*EAV)(nil)
	_ Node  = (*SubGroup)(nil)
	_ Entry = Marker("")
)

func (b *Basic) String() string {
	return b.Field + " " + string(b.Operator) + " " + b.Value.String()
}

func (r *Relationship) String() string {
	return string(r.Relation) + " " + string(r.Operator) + " " + ListValue(r.Values...).String()
}

func (e *EAV) String() string {
	return AttributePrefix + e.Attribute + " " + string(e.Operator) + " " + e.Value.String()
}

func (s *SubGroup) String() string {
	return "(" + s.Group.String() + ")"
}

// String renders the group in filter syntax.
func (g Group) String() string {
	parts := make([]string, 0, len(g))
	for _, e := range g {
		parts = append(parts, fmt.Sprint(e))
	}

	return strings.Join(parts, " ")
}
