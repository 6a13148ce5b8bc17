package search

import (
	"regexp"
	"strings"

	"github.com/mailsim/gmailsim/internal/labels"
	"github.com/mailsim/gmailsim/internal/store"
)

// Category names accepted by category:<name> and the label each implies.
var categoryLabels = map[string]string{
	"primary":      "CATEGORY_PERSONAL",
	"social":       "CATEGORY_SOCIAL",
	"promotions":   "CATEGORY_PROMOTIONS",
	"updates":      "CATEGORY_UPDATES",
	"forums":       "CATEGORY_FORUMS",
	"reservations": "CATEGORY_RESERVATIONS",
	"purchases":    "CATEGORY_PURCHASES",
}

// evalTerm evaluates a single non-operator token: a field predicate, an
// exact-word +keyword, or a plain keyword.
func (p *parser) evalTerm(tok string) (map[string]bool, error) {
	if strings.HasPrefix(tok, "+") && len(tok) > 1 {
		return p.exactWord(strings.Trim(tok[1:], `"`)), nil
	}
	if i := strings.Index(tok, ":"); i > 0 {
		field := strings.ToLower(tok[:i])
		value := strings.Trim(tok[i+1:], `"`)
		return p.evalField(field, value)
	}
	return p.keyword(tok, "")
}

// evalField dispatches one field:value predicate. Failures local to a
// predicate (bad date, size or period) yield the empty set; unknown
// fields impose no constraint and return the whole universe.
func (p *parser) evalField(field, value string) (map[string]bool, error) {
	switch field {
	case "from":
		return p.filter(func(m *store.Message) bool {
			return strings.EqualFold(m.Sender, value)
		}), nil
	case "to":
		return p.filter(func(m *store.Message) bool {
			return strings.EqualFold(m.Recipient, value)
		}), nil
	case "cc":
		return p.filter(func(m *store.Message) bool {
			return containsFold(m.Cc, value)
		}), nil
	case "bcc":
		return p.filter(func(m *store.Message) bool {
			return containsFold(m.Bcc, value)
		}), nil
	case "subject":
		return p.keyword(value, "subject")
	case "label":
		want := strings.ToUpper(value)
		return p.filter(func(m *store.Message) bool {
			for _, l := range m.LabelIDs {
				if strings.ToUpper(l) == want {
					return true
				}
			}
			return false
		}), nil
	case "filename":
		return p.filter(func(m *store.Message) bool {
			if m.Payload == nil {
				return false
			}
			for _, part := range m.Payload.Parts {
				if containsFold(part.Filename, value) {
					return true
				}
			}
			return false
		}), nil
	case "after":
		t, err := ParseDate(value, p.now)
		if err != nil {
			return make(map[string]bool), nil
		}
		cutoff := t.UnixMilli()
		return p.filter(func(m *store.Message) bool {
			return internalMillis(m) > cutoff
		}), nil
	case "before":
		t, err := ParseDate(value, p.now)
		if err != nil {
			return make(map[string]bool), nil
		}
		cutoff := t.UnixMilli()
		return p.filter(func(m *store.Message) bool {
			return internalMillis(m) < cutoff
		}), nil
	case "older_than":
		d, err := ParsePeriod(value)
		if err != nil {
			return make(map[string]bool), nil
		}
		cutoff := p.now.Add(-d).UnixMilli()
		return p.filter(func(m *store.Message) bool {
			return internalMillis(m) < cutoff
		}), nil
	case "newer_than":
		d, err := ParsePeriod(value)
		if err != nil {
			return make(map[string]bool), nil
		}
		cutoff := p.now.Add(-d).UnixMilli()
		return p.filter(func(m *store.Message) bool {
			return internalMillis(m) > cutoff
		}), nil
	case "size":
		n, err := ParseSize(value)
		if err != nil {
			return make(map[string]bool), nil
		}
		return p.filter(func(m *store.Message) bool { return MessageSize(m) == n }), nil
	case "larger":
		n, err := ParseSize(value)
		if err != nil {
			return make(map[string]bool), nil
		}
		return p.filter(func(m *store.Message) bool { return MessageSize(m) > n }), nil
	case "smaller":
		n, err := ParseSize(value)
		if err != nil {
			return make(map[string]bool), nil
		}
		return p.filter(func(m *store.Message) bool { return MessageSize(m) < n }), nil
	case "is":
		return p.evalIs(strings.ToLower(value)), nil
	case "has":
		return p.evalHas(strings.ToLower(value)), nil
	case "category":
		label, ok := categoryLabels[strings.ToLower(value)]
		if !ok {
			return make(map[string]bool), nil
		}
		return p.filter(func(m *store.Message) bool {
			for _, l := range m.LabelIDs {
				if strings.ToUpper(l) == label {
					return true
				}
			}
			return false
		}), nil
	case "list":
		return p.filter(func(m *store.Message) bool {
			return containsFold(m.Sender, value)
		}), nil
	case "deliveredto":
		return p.filter(func(m *store.Message) bool {
			return containsFold(m.Recipient, value)
		}), nil
	case "rfc822msgid":
		return p.filter(func(m *store.Message) bool {
			return strings.Contains(m.ID, value)
		}), nil
	case "in":
		return p.evalIn(strings.ToLower(value)), nil
	default:
		// Unknown fields impose no constraint; they compose benignly
		// under AND.
		return copySet(p.universe), nil
	}
}

func (p *parser) evalIs(value string) map[string]bool {
	switch value {
	case "unread":
		return p.filter(func(m *store.Message) bool { return m.HasLabel("UNREAD") })
	case "read":
		return p.filter(func(m *store.Message) bool { return !m.HasLabel("UNREAD") })
	case "starred":
		return p.filter(func(m *store.Message) bool {
			for _, l := range m.LabelIDs {
				if strings.Contains(strings.ToUpper(l), "STAR") {
					return true
				}
			}
			return false
		})
	case "important":
		return p.filter(func(m *store.Message) bool { return m.HasLabel("IMPORTANT") })
	case "muted":
		// Muting is intentionally not modeled.
		return make(map[string]bool)
	default:
		return copySet(p.universe)
	}
}

func (p *parser) evalHas(value string) map[string]bool {
	switch {
	case value == "attachment":
		return p.filter(hasAttachment)
	case value == "userlabels":
		return p.filter(labels.HasUserLabel)
	case value == "nouserlabels":
		return p.filter(func(m *store.Message) bool { return !labels.HasUserLabel(m) })
	case attachmentTypeNames[value]:
		return p.filter(func(m *store.Message) bool {
			return attachmentTags(m)[value]
		})
	case starTypeNames[value]:
		want := strings.ToUpper(strings.ReplaceAll(value, "-", "_"))
		return p.filter(func(m *store.Message) bool {
			for _, l := range m.LabelIDs {
				u := strings.ToUpper(l)
				if u == want || (value == "star" && strings.Contains(u, "STAR")) {
					return true
				}
			}
			return false
		})
	default:
		return make(map[string]bool)
	}
}

func (p *parser) evalIn(value string) map[string]bool {
	switch value {
	case "anywhere":
		// The whole unfiltered universe; the outer spam/trash filter has
		// already been applied to the candidate set, so the composition
		// with other predicates happens on candidates only.
		out := make(map[string]bool, len(p.in.All))
		for id := range p.in.All {
			out[id] = true
		}
		return out
	case "snoozed":
		return make(map[string]bool)
	default:
		want := strings.ToUpper(value)
		return p.filter(func(m *store.Message) bool {
			for _, l := range m.LabelIDs {
				if strings.ToUpper(l) == want {
					return true
				}
			}
			return false
		})
	}
}

// keyword resolves a free-text token through the text index, falling
// back to a direct scan when no index is wired. Content narrows the
// lookup to one field ("subject" for the subject: predicate).
func (p *parser) keyword(text, content string) (map[string]bool, error) {
	if p.engine.Index != nil {
		ids, err := p.engine.Index.Search(p.ctx, text, Filter{
			UserID:   p.in.UserID,
			Resource: p.in.Resource,
			Content:  content,
		})
		if err == nil {
			out := make(map[string]bool)
			for _, id := range ids {
				if p.universe[id] {
					out[id] = true
				}
			}
			return out, nil
		}
		// Index trouble degrades to a scan rather than failing the query.
	}
	return p.filter(func(m *store.Message) bool {
		switch content {
		case "subject":
			return containsFold(m.Subject, text)
		case "body":
			return containsFold(m.Body, text)
		case "sender":
			return containsFold(m.Sender, text)
		case "recipient":
			return containsFold(m.Recipient, text)
		default:
			return containsFold(m.Subject, text) || containsFold(m.Body, text) ||
				containsFold(m.Sender, text) || containsFold(m.Recipient, text)
		}
	}), nil
}

// exactWord implements the +keyword form: a word-boundary regex match
// across subject, body, sender and recipient, bypassing the index.
func (p *parser) exactWord(word string) map[string]bool {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return make(map[string]bool)
	}
	return p.filter(func(m *store.Message) bool {
		return re.MatchString(m.Subject) || re.MatchString(m.Body) ||
			re.MatchString(m.Sender) || re.MatchString(m.Recipient)
	})
}

// filter applies a predicate to every candidate in the universe.
func (p *parser) filter(pred func(*store.Message) bool) map[string]bool {
	out := make(map[string]bool)
	for id := range p.universe {
		if m := p.in.Candidates[id]; m != nil && pred(m) {
			out[id] = true
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func internalMillis(m *store.Message) int64 {
	var n int64
	for _, r := range m.InternalDate {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
