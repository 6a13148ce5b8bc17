package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mailsim/gmailsim/internal/store"
)

var sizeRe = regexp.MustCompile(`^([0-9]+)([kmg]?)b?$`)

// ParseSize parses size values like "500", "10K", "2M", "1G". Suffixes
// are powers of 1024 and case-insensitive; no suffix means bytes.
func ParseSize(value string) (int64, error) {
	m := sizeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if m == nil {
		return 0, fmt.Errorf("unrecognized size %q", value)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized size %q", value)
	}
	switch m[2] {
	case "k":
		n *= 1024
	case "m":
		n *= 1024 * 1024
	case "g":
		n *= 1024 * 1024 * 1024
	}
	return n, nil
}

// MessageSize computes the size a size:/larger:/smaller: predicate sees:
// the text fields plus declared part sizes plus an estimate of inline
// base64 payloads (3 bytes per 4 encoded characters).
func MessageSize(m *store.Message) int64 {
	size := int64(len(m.Subject) + len(m.Body) + len(m.Sender) + len(m.Recipient))
	if m.Payload == nil {
		return size
	}
	for _, p := range m.Payload.Parts {
		size += p.Body.Size
		if p.Body.Data != "" {
			size += int64(len(p.Body.Data)) * 3 / 4
		}
	}
	return size
}
