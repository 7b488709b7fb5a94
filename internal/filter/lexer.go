package filter

import (
	"regexp"
	"strings"
)

// TokenKind identifies the type of a lexed Token.
type TokenKind int

const (
	LParen TokenKind = iota
	RParen
	AndToken
	OrToken
	ConditionToken
)

func (k TokenKind) String() string {
	switch k {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case AndToken:
		return "AND"
	case OrToken:
		return "OR"
	case ConditionToken:
		return "condition"
	default:
		return "unknown"
	}
}

// Token is a single lexed element of a filter string.
type Token struct {
	Kind TokenKind
	Text string // Text is the trimmed source text of the token.
	Pos  int    // Pos is the byte offset of the token in the filter string.
}

// operatorPattern matches any operator spelling. Two character operators come first, so that ">=" isn't lexed
// as ">" followed by a value starting with "=".
const operatorPattern = `!=|>=|<=|=|>|<|LIKE|IN|HAS_ANY|IS_ANY`

// conditionPattern matches a field, an operator and either a parenthesised list or a bare word.
const conditionPattern = `[A-Za-z0-9_.:]+\s*(?:` + operatorPattern + `)\s*(?:\([^)]+\)|[^()\s]+)`

var tokenRegexp = regexp.MustCompile(`(?i)\(|\)|\bAND\b|\bOR\b|` + conditionPattern)

// Lex splits the given filter string into tokens. Substrings that aren't a token are skipped and reported
// to diags as DroppedFragment, diags may be nil.
func Lex(expr string, diags *Diagnostics) []Token {
	var tokens []Token
	last := 0
	for _, loc := range tokenRegexp.FindAllStringIndex(expr, -1) {
		reportDropped(expr, last, loc[0], diags)
		last = loc[1]

		text := strings.TrimSpace(expr[loc[0]:loc[1]])
		if text == "" {
			continue
		}

		tokens = append(tokens, Token{Kind: classifyToken(text), Text: text, Pos: loc[0]})
	}
	reportDropped(expr, last, len(expr), diags)

	return tokens
}

func classifyToken(text string) TokenKind {
	switch {
	case text == "(":
		return LParen
	case text == ")":
		return RParen
	case strings.EqualFold(text, string(And)):
		return AndToken
	case strings.EqualFold(text, string(Or)):
		return OrToken
	default:
		return ConditionToken
	}
}

func reportDropped(expr string, from, to int, diags *Diagnostics) {
	if diags == nil || from >= to {
		return
	}

	gap := expr[from:to]
	if fragment := strings.TrimSpace(gap); fragment != "" {
		diags.add(DroppedFragment, fragment, from+strings.Index(gap, fragment))
	}
}
