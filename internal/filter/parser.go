package filter

import (
	"regexp"
	"strings"
)

var conditionRegexp = regexp.MustCompile(`(?is)^([A-Za-z0-9_.:]+)\s*(` + operatorPattern + `)\s*(.+)$`)

// relationFields maps the filterable relationship fields to their Relation.
var relationFields = map[string]Relation{
	string(Languages):  Languages,
	string(Locations):  Locations,
	string(Categories): Categories,
}

// ParseCondition parses a single condition token such as "attribute:years_experience>=3" or
// "locations IN (NY,SF)" into a Node. Returns false if the token isn't a condition.
func ParseCondition(token string) (Node, bool) {
	m := conditionRegexp.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return nil, false
	}

	field := m[1]
	op, ok := ParseOperator(m[2])
	if !ok {
		return nil, false
	}

	value := parseValue(op, m[3])

	if attr, ok := strings.CutPrefix(field, AttributePrefix); ok {
		return &EAV{Attribute: attr, Operator: op, Value: value}, true
	}

	if rel, ok := relationFields[field]; ok {
		return &Relationship{Relation: rel, Operator: op, Values: value.Items()}, true
	}

	return &Basic{Field: field, Operator: op, Value: value}, true
}

// parseValue returns a list Value for the list operators and a trimmed scalar otherwise.
func parseValue(op Operator, raw string) Value {
	raw = strings.TrimSpace(raw)
	if !op.TakesList() {
		return ScalarValue(raw)
	}

	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		raw = raw[1 : len(raw)-1]
	}

	items := strings.Split(raw, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}

	return ListValue(items...)
}

// ParseOptions control how the tree builder treats parenthesised groups.
type ParseOptions struct {
	// NestedGroups keeps every parenthesised group as a *SubGroup node with its own precedence.
	// By default, the entries of a group are spliced into the enclosing group.
	NestedGroups bool
}

// Parser builds a Group from a token sequence.
type Parser struct {
	opts  ParseOptions
	diags *Diagnostics
}

// NewParser returns a Parser reporting absorbed fragments to diags, which may be nil.
func NewParser(opts ParseOptions, diags *Diagnostics) *Parser {
	if diags == nil {
		diags = new(Diagnostics)
	}

	return &Parser{opts: opts, diags: diags}
}

// Parse lexes and parses the given filter string.
func (p *Parser) Parse(expr string) Group {
	tokens := Lex(expr, p.diags)
	group, closed := p.buildGroup(&tokens)
	if closed {
		// A ')' without a matching '(' terminates the outermost group, everything after it is ignored.
		p.diags.add(UnbalancedParens, ")", -1)
		for _, tok := range tokens {
			p.diags.add(DroppedFragment, tok.Text, tok.Pos)
		}
	}

	return group
}

// buildGroup consumes tokens left to right until the matching ')' or the end of input.
// Returns the built group and whether it was terminated by a ')'.
func (p *Parser) buildGroup(tokens *[]Token) (Group, bool) {
	var group Group
	for len(*tokens) > 0 {
		tok := (*tokens)[0]
		*tokens = (*tokens)[1:]

		switch tok.Kind {
		case LParen:
			nested, closed := p.buildGroup(tokens)
			if !closed {
				p.diags.add(UnbalancedParens, "(", tok.Pos)
			}

			if p.opts.NestedGroups {
				if len(nested) > 0 {
					group = append(group, &SubGroup{Group: nested})
				}
			} else {
				group = append(group, nested...)
			}
		case RParen:
			return group, true
		case AndToken, OrToken:
			if len(group) == 0 {
				p.diags.add(DroppedMarker, tok.Text, tok.Pos)
				continue
			}

			marker := And
			if tok.Kind == OrToken {
				marker = Or
			}
			group = append(group, marker)
		case ConditionToken:
			node, ok := ParseCondition(tok.Text)
			if !ok {
				p.diags.add(InvalidCondition, tok.Text, tok.Pos)
				continue
			}

			group = append(group, node)
		}
	}

	return group, false
}
