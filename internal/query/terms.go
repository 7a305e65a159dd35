package query

import "strings"

// Mode selects how a formatted term list is composed.
type Mode int

const (
	// ModeOr joins terms with OR, quoting multi-word terms.
	ModeOr Mode = iota
	// ModeRequire additionally prefixes each term with +.
	ModeRequire
	// ModeExclude additionally prefixes each term with - and joins with
	// spaces, since -a OR -b is not a meaningful engine expression.
	ModeExclude
)

// FormatTerms turns comma-separated free text into a boolean fragment.
//
// A comma-free input is returned trimmed but otherwise unmodified: the caller
// may already have supplied a fully-formed boolean expression, and there is
// no reliable way to tell that apart from a single plain term. The comma is
// the mode switch. Prefix modes still apply their operator to comma-free
// input when it looks like a single term rather than an expression.
//
// Empty input yields an empty string, which callers must treat as "no
// constraint".
func FormatTerms(raw string, mode Mode) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, ",") {
		if mode == ModeOr || isBooleanExpression(raw) {
			return raw
		}
		return prefixTerm(quoteTerm(raw), mode)
	}

	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		term := strings.TrimSpace(part)
		if term == "" {
			continue
		}
		tokens = append(tokens, prefixTerm(quoteTerm(term), mode))
	}

	if mode == ModeExclude || mode == ModeRequire {
		return strings.Join(tokens, " ")
	}
	return strings.Join(tokens, " OR ")
}

// quoteTerm wraps a term in double quotes when it contains whitespace and is
// not already quoted. Single tokens and pre-quoted phrases pass through.
func quoteTerm(term string) string {
	if strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`) && len(term) > 1 {
		return term
	}
	if hasOperatorPrefix(term) {
		return term
	}
	if strings.ContainsAny(term, " \t") {
		return `"` + term + `"`
	}
	return term
}

func prefixTerm(term string, mode Mode) string {
	switch mode {
	case ModeRequire:
		if !strings.HasPrefix(term, "+") {
			return "+" + term
		}
	case ModeExclude:
		if !strings.HasPrefix(term, "-") {
			return "-" + term
		}
	}
	return term
}

func hasOperatorPrefix(term string) bool {
	return strings.HasPrefix(term, "-") || strings.HasPrefix(term, "+")
}

// isBooleanExpression guesses whether comma-free input is already a composed
// expression rather than a single term. Only composition markers count: a
// lone quoted phrase is still a single term and prefix modes must operate
// on it.
func isBooleanExpression(raw string) bool {
	return strings.Contains(raw, " OR ") || strings.Contains(raw, "(")
}
