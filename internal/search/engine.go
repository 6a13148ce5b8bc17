// Package search implements the Gmail-style query engine: tokenizer,
// recursive-descent parser and field predicates evaluated against the
// in-memory store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailsim/gmailsim/internal/store"
)

// DefaultMaxTokens bounds worst-case evaluation work.
const DefaultMaxTokens = 10000

var (
	// ErrInvalidQuery marks malformed query strings: bad grouping, a
	// dangling OR, or a token budget overrun.
	ErrInvalidQuery = errors.New("invalid query")

	errUnbalancedQuote = errors.New("unbalanced quote")
)

// Resource kinds the engine evaluates over.
const (
	ResourceMessage = "message"
	ResourceDraft   = "draft"
)

// Filter scopes a text-index lookup.
type Filter struct {
	UserID   string
	Resource string
	// Content restricts the lookup to one field: "subject", "body",
	// "sender" or "recipient". Empty means any of them.
	Content string
}

// Index answers substring text queries over indexed resources. The
// SQLite-backed implementation lives in internal/db.
type Index interface {
	Search(ctx context.Context, text string, f Filter) ([]string, error)
}

// Input is the universe a query evaluates against. Candidates is the
// spam/trash- and label-filtered set; All is the unfiltered map that
// in:anywhere reaches for.
type Input struct {
	UserID     string
	Resource   string
	Candidates map[string]*store.Message
	All        map[string]*store.Message
}

// Engine evaluates query strings to sets of matching resource IDs.
type Engine struct {
	Index     Index
	Now       func() time.Time
	MaxTokens int
}

// Evaluate parses and evaluates q against the input universe. An empty
// query matches every candidate. Per-predicate parse failures (bad
// dates, sizes, periods) collapse to the empty set without failing the
// whole query; structural errors return ErrInvalidQuery.
func (e *Engine) Evaluate(ctx context.Context, q string, in Input) (map[string]bool, error) {
	tokens := Tokenize(q)
	maxTokens := e.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(tokens) > maxTokens {
		return nil, fmt.Errorf("%w: token budget exceeded (%d tokens)", ErrInvalidQuery, len(tokens))
	}

	universe := make(map[string]bool, len(in.Candidates))
	for id := range in.Candidates {
		universe[id] = true
	}
	if len(tokens) == 0 {
		return universe, nil
	}

	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	p := &parser{
		tokens:   tokens,
		engine:   e,
		ctx:      ctx,
		in:       in,
		universe: universe,
		now:      now,
	}
	result, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalidQuery, p.tokens[p.pos])
	}
	return result, nil
}

// parser is the (tokens, position) state machine. Precedence from lowest
// to highest: OR, implicit AND, negation, atom.
type parser struct {
	tokens   []string
	pos      int
	engine   *Engine
	ctx      context.Context
	in       Input
	universe map[string]bool
	now      time.Time
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func isOr(tok string) bool  { return strings.EqualFold(tok, "OR") }
func isAnd(tok string) bool { return strings.EqualFold(tok, "AND") }

func (p *parser) parseOr() (map[string]bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || !isOr(tok) {
			return result, nil
		}
		p.pos++
		if _, ok := p.peek(); !ok {
			return nil, fmt.Errorf("%w: dangling OR", ErrInvalidQuery)
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		result = union(result, right)
	}
}

func (p *parser) parseAnd() (map[string]bool, error) {
	// result stays nil until the first primary lands, so a primary that
	// reaches beyond the candidate set (in:anywhere) is not clipped back
	// to it by a premature intersection with the universe.
	var result map[string]bool
	for {
		tok, ok := p.peek()
		if !ok || tok == ")" || tok == "}" || isOr(tok) {
			if result == nil {
				return copySet(p.universe), nil
			}
			return result, nil
		}
		if isAnd(tok) {
			// Explicit AND is optional noise between primaries.
			p.pos++
			continue
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = right
		} else {
			result = intersect(result, right)
		}
	}
}

func (p *parser) parsePrimary() (map[string]bool, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: expected expression", ErrInvalidQuery)
	}
	switch {
	case tok == "(":
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if next, ok := p.peek(); !ok || next != ")" {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidQuery)
		}
		p.pos++
		return inner, nil

	case tok == "{":
		// Brace groups OR their members regardless of whitespace.
		p.pos++
		result := make(map[string]bool)
		for {
			next, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("%w: missing closing brace", ErrInvalidQuery)
			}
			if next == "}" {
				p.pos++
				return result, nil
			}
			if isOr(next) || isAnd(next) {
				p.pos++
				continue
			}
			member, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			result = union(result, member)
		}

	case tok == ")":
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidQuery, tok)

	case tok == "}":
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidQuery, tok)

	case tok == "-":
		p.pos++
		next, ok := p.peek()
		if ok && (next == "(" || next == "{") {
			inner, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return subtract(p.universe, inner), nil
		}
		// A bare dash is a neutral token.
		return copySet(p.universe), nil

	case strings.HasPrefix(tok, "-") && len(tok) > 1:
		p.pos++
		inner, err := p.evalNegated(tok[1:])
		if err != nil {
			return nil, err
		}
		return subtract(p.universe, inner), nil

	default:
		p.pos++
		return p.evalTerm(tok)
	}
}

// evalNegated handles the body of a -token, unwrapping stacked dashes.
func (p *parser) evalNegated(body string) (map[string]bool, error) {
	if strings.HasPrefix(body, "-") && len(body) > 1 {
		inner, err := p.evalNegated(body[1:])
		if err != nil {
			return nil, err
		}
		return subtract(p.universe, inner), nil
	}
	if body == "-" {
		return copySet(p.universe), nil
	}
	return p.evalTerm(body)
}

// Set helpers.

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := copySet(a)
	for k := range b {
		out[k] = true
	}
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func subtract(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}
