package mimeutil

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var phoneKeyRe = regexp.MustCompile(`(?i)(phone|tel|mobile|cell)`)

// NormalizePhoneFields walks a decoded JSON value and rewrites string
// values under keys matching phone/tel/mobile/cell to E.164 form.
// Values that fail to parse are kept as-is; the walk covers nested
// maps and lists.
func NormalizePhoneFields(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if s, ok := inner.(string); ok && phoneKeyRe.MatchString(k) {
				val[k] = normalizePhone(s)
				continue
			}
			val[k] = NormalizePhoneFields(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = NormalizePhoneFields(inner)
		}
		return val
	default:
		return v
	}
}

// NormalizeJSONPhones applies NormalizePhoneFields to a raw JSON body.
// Bodies that are not JSON objects or arrays pass through untouched.
func NormalizeJSONPhones(body []byte) []byte {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	switch v.(type) {
	case map[string]any, []any:
	default:
		return body
	}
	out, err := json.Marshal(NormalizePhoneFields(v))
	if err != nil {
		return body
	}
	return out
}

func normalizePhone(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return s
	}
	region := ""
	if !strings.HasPrefix(raw, "+") {
		region = "US"
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
