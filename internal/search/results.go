package search

import (
	"sort"
	"strconv"

	"github.com/mailsim/gmailsim/internal/store"
)

// SortIDs orders a result set by internalDate descending, ties broken by
// ID descending, so pagination is stable across calls.
func SortIDs(result map[string]bool, msgs map[string]*store.Message) []string {
	ids := make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := msgs[ids[i]], msgs[ids[j]]
		var am, bm int64
		if a != nil {
			am = internalMillis(a)
		}
		if b != nil {
			bm = internalMillis(b)
		}
		if am != bm {
			return am > bm
		}
		return ids[i] > ids[j]
	})
	return ids
}

// Paginate slices an ordered ID list by the integer-offset page token.
// Non-numeric or negative tokens read as offset 0; maxResults <= 0 means
// no cap. The next token is the following offset, empty when the page
// reaches the end.
func Paginate(ids []string, maxResults int64, pageToken string) (page []string, nextPageToken string) {
	start := 0
	if pageToken != "" {
		if n, err := strconv.Atoi(pageToken); err == nil && n > 0 {
			start = n
		}
	}
	if start >= len(ids) {
		return []string{}, ""
	}
	end := len(ids)
	if maxResults > 0 && start+int(maxResults) < end {
		end = start + int(maxResults)
	}
	page = ids[start:end]
	if end < len(ids) {
		nextPageToken = strconv.Itoa(end)
	}
	return page, nextPageToken
}
