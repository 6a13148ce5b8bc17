package search

import "strings"

// Tokenize splits a query string into evaluator tokens. Parentheses and
// braces become standalone tokens; double-quoted substrings stay intact
// as a single token with the quotes stripped, so `subject:"foo bar"`
// survives as one token. OR is never coalesced here: precedence belongs
// to the parser, not the tokenizer.
func Tokenize(q string) []string {
	for _, g := range []string{"(", ")", "{", "}"} {
		q = strings.ReplaceAll(q, g, " "+g+" ")
	}
	toks, err := splitQuoted(q)
	if err != nil {
		// Unbalanced quote: degrade to a plain whitespace split.
		return strings.Fields(q)
	}
	return toks
}

// splitQuoted is a minimal shell-style field splitter. Double quotes
// group whitespace into one token and are removed from the output. An
// unterminated quote is an error.
func splitQuoted(s string) ([]string, error) {
	var (
		toks     []string
		cur      strings.Builder
		inQuote  bool
		hasField bool
	)
	flush := func() {
		if hasField {
			toks = append(toks, cur.String())
			cur.Reset()
			hasField = false
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			hasField = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			cur.WriteRune(r)
			hasField = true
		}
	}
	if inQuote {
		return nil, errUnbalancedQuote
	}
	flush()
	return toks, nil
}
