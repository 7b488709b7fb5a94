package filter

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// RemoteField is the boolean column of the base entity whose filter values are coerced to bool.
const RemoteField = "is_remote"

// contribution is what a single node adds to the accumulated predicate.
// A zero contribution (ok == false) constrains nothing.
type contribution[P any] struct {
	pred P
	ok   bool
}

func constrains[P any](pred P) contribution[P] {
	return contribution[P]{pred: pred, ok: true}
}

func noConstraint[P any]() contribution[P] {
	return contribution[P]{}
}

// compiler folds a Group into a single predicate built by b.
type compiler[P any] struct {
	b      Builder[P]
	schema Schema
	diags  *Diagnostics
}

// Compile folds the given group left to right into a single predicate. Each marker decides how the following
// node is combined with everything accumulated before it. Returns false if the group constrains nothing,
// in which case the base result set must not be restricted at all.
func Compile[P any](group Group, b Builder[P], schema Schema, diags *Diagnostics) (P, bool) {
	if diags == nil {
		diags = new(Diagnostics)
	}

	c := &compiler[P]{b: b, schema: schema, diags: diags}
	acc := c.group(group)

	return acc.pred, acc.ok
}

func (c *compiler[P]) group(group Group) contribution[P] {
	acc := noConstraint[P]()
	pending := And
	for _, e := range group {
		switch e := e.(type) {
		case Marker:
			pending = e
		case Node:
			acc = c.combine(acc, pending, c.node(e))
			pending = And
		default:
			panic(fmt.Sprintf("filter: unexpected group entry %T", e))
		}
	}

	return acc
}

// combine appends next to acc using op. The first contributing node always becomes the base predicate.
func (c *compiler[P]) combine(acc contribution[P], op Marker, next contribution[P]) contribution[P] {
	switch {
	case !next.ok:
		return acc
	case !acc.ok:
		return next
	case op == Or:
		return constrains(c.b.Or(acc.pred, next.pred))
	default:
		return constrains(c.b.And(acc.pred, next.pred))
	}
}

func (c *compiler[P]) node(n Node) contribution[P] {
	switch n := n.(type) {
	case *Basic:
		return c.basic(n)
	case *Relationship:
		return c.relationship(n)
	case *EAV:
		return c.eav(n)
	case *SubGroup:
		sub := c.group(n.Group)
		if !sub.ok {
			c.diags.add(EmptyGroup, n.String(), -1)
		}

		return sub
	default:
		panic(fmt.Sprintf("filter: unexpected node %T", n))
	}
}

func (c *compiler[P]) basic(n *Basic) contribution[P] {
	if c.schema == nil || !c.schema.HasField(BaseEntity, n.Field) {
		c.diags.add(UnknownField, n.Field, -1)
		return noConstraint[P]()
	}

	switch kind := c.fieldKind(n.Field); kind {
	case KindBool:
		return c.boolean(n)
	case KindInteger, KindDecimal:
		return c.numeric(n, kind)
	}

	switch {
	case n.Operator == Like:
		return constrains(c.b.Like(n.Field, contains(n.Value.Scalar)))
	case n.Operator.TakesList():
		return constrains(c.b.In(n.Field, n.Value.Items()))
	default:
		return constrains(c.b.Compare(n.Field, n.Operator, n.Value.Scalar))
	}
}

// fieldKind returns the kind of the given base entity column. RemoteField is always a flag.
func (c *compiler[P]) fieldKind(field string) FieldKind {
	if field == RemoteField {
		return KindBool
	}

	if ks, ok := c.schema.(KindSchema); ok {
		return ks.FieldKind(BaseEntity, field)
	}

	return KindText
}

// boolean compiles a filter on a flag column. The flag is only ever tested for equality with the coerced
// value, whatever comparison operator was written. List operators match any of the coerced values.
func (c *compiler[P]) boolean(n *Basic) contribution[P] {
	if n.Operator == Like {
		c.diags.add(InvalidValue, n.String(), -1)
		return noConstraint[P]()
	}

	var pred P
	var seen []bool
	for _, v := range n.Value.Items() {
		b := ParseBool(v)
		if slices.Contains(seen, b) {
			continue
		}

		eq := c.b.Compare(n.Field, Eq, b)
		if len(seen) == 0 {
			pred = eq
		} else {
			pred = c.b.Or(pred, eq)
		}
		seen = append(seen, b)
	}

	return constrains(pred)
}

// numeric compiles a filter on a numeric column. Values that aren't numbers of the column's kind are dropped,
// as is LIKE, which numbers don't support.
func (c *compiler[P]) numeric(n *Basic, kind FieldKind) contribution[P] {
	if n.Operator == Like {
		c.diags.add(InvalidValue, n.String(), -1)
		return noConstraint[P]()
	}

	if n.Operator.TakesList() {
		items := n.Value.Items()
		values := make([]string, 0, len(items))
		for _, item := range items {
			if v, ok := canonicalNumber(item, kind); ok {
				values = append(values, v)
			} else {
				c.diags.add(InvalidValue, item, -1)
			}
		}

		if len(values) == 0 {
			return noConstraint[P]()
		}

		return constrains(c.b.In(n.Field, values))
	}

	v, ok := canonicalNumber(n.Value.Scalar, kind)
	if !ok {
		c.diags.add(InvalidValue, n.String(), -1)
		return noConstraint[P]()
	}

	return constrains(c.b.Compare(n.Field, n.Operator, v))
}

func (c *compiler[P]) relationship(n *Relationship) contribution[P] {
	values := n.Values
	if n.Relation == Locations {
		return constrains(c.b.Exists(Locations, func(b Builder[P]) P {
			var pred P
			for i, v := range values {
				pattern := contains(v)
				anyColumn := b.Or(b.Or(b.Like(ColumnCity, pattern), b.Like(ColumnState, pattern)), b.Like(ColumnCountry, pattern))
				if i == 0 {
					pred = anyColumn
				} else {
					pred = b.Or(pred, anyColumn)
				}
			}

			return pred
		}))
	}

	return constrains(c.b.Exists(n.Relation, func(b Builder[P]) P {
		return b.In(ColumnName, values)
	}))
}

func (c *compiler[P]) eav(n *EAV) contribution[P] {
	return constrains(c.b.Exists(AttributeValues, func(b Builder[P]) P {
		var value P
		switch {
		case n.Operator == Like:
			value = b.Like(ColumnValue, contains(n.Value.Scalar))
		case n.Operator.TakesList():
			value = b.In(ColumnValue, n.Value.Items())
		default:
			value = b.Compare(ColumnValue, n.Operator, n.Value.Scalar)
		}

		return b.And(b.Compare(ColumnName, Eq, n.Attribute), value)
	}))
}

// contains wraps the given value into a substring match pattern.
func contains(value string) string {
	return "%" + value + "%"
}

// canonicalNumber returns s in plain decimal notation if it's a number of the given kind.
// Special values such as NaN and infinities are rejected.
func canonicalNumber(s string, kind FieldKind) (string, bool) {
	s = strings.TrimSpace(s)
	if kind == KindInteger {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", false
		}

		return strconv.FormatInt(i, 10), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}

	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// ParseBool converts common truthy spellings ("1", "true", "on", "yes") to true and everything else to false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
