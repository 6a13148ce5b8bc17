package labels

import (
	"fmt"

	"github.com/mailsim/gmailsim/internal/store"
)

// Diff is one stored-vs-recomputed mismatch.
type Diff struct {
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
}

// UserReport collects the mismatches found for one user.
type UserReport struct {
	Labels  map[string]map[string]Diff `json:"labels,omitempty"`
	Profile map[string]Diff            `json:"profile,omitempty"`
}

// Report is the result of a verification pass. It never fails on diffs;
// it records them, and optionally repairs the stored values.
type Report struct {
	Users          map[string]*UserReport `json:"users"`
	HasDifferences bool                   `json:"hasDifferences"`
}

// Verify recomputes every label count and the profile totals from first
// principles and diffs them against the stored values. With applyChanges
// the stored values are overwritten with the recomputed ones, so a
// second pass returns a clean report.
//
// The caller must hold the store write lock when applyChanges is set,
// the read lock otherwise.
func Verify(db *store.Store, applyChanges bool) (*Report, error) {
	if db == nil {
		return nil, fmt.Errorf("verify: nil store")
	}
	report := &Report{Users: make(map[string]*UserReport)}

	for userID, u := range db.Users() {
		ur := &UserReport{
			Labels:  make(map[string]map[string]Diff),
			Profile: make(map[string]Diff),
		}

		// Labels referenced by messages but absent from the label map get
		// a default user-label entry before counting.
		missing := referencedUnknownLabels(u)
		if len(missing) > 0 && applyChanges {
			NewManager(db).Ensure(u, missing)
		}

		counts := computeCounts(u)
		for id, c := range counts {
			l, ok := u.Labels[id]
			if !ok {
				// Known only through references; compare against zeros.
				l = &store.Label{ID: id}
			}
			fields := map[string]Diff{}
			record := func(name string, expected, actual int64) {
				if expected != actual {
					fields[name] = Diff{Expected: expected, Actual: actual}
				}
			}
			record("messagesTotal", c.messagesTotal, l.MessagesTotal)
			record("messagesUnread", c.messagesUnread, l.MessagesUnread)
			record("threadsTotal", c.threadsTotal, l.ThreadsTotal)
			record("threadsUnread", c.threadsUnread, l.ThreadsUnread)
			if len(fields) > 0 {
				ur.Labels[id] = fields
				report.HasDifferences = true
			}
			if applyChanges && ok {
				l.MessagesTotal = c.messagesTotal
				l.MessagesUnread = c.messagesUnread
				l.ThreadsTotal = c.threadsTotal
				l.ThreadsUnread = c.threadsUnread
			}
		}

		wantMsgs := int64(len(u.Messages))
		wantThreads := int64(len(u.Threads))
		if u.Profile.MessagesTotal != wantMsgs {
			ur.Profile["messagesTotal"] = Diff{Expected: wantMsgs, Actual: u.Profile.MessagesTotal}
			report.HasDifferences = true
		}
		if u.Profile.ThreadsTotal != wantThreads {
			ur.Profile["threadsTotal"] = Diff{Expected: wantThreads, Actual: u.Profile.ThreadsTotal}
			report.HasDifferences = true
		}
		if applyChanges {
			u.Profile.MessagesTotal = wantMsgs
			u.Profile.ThreadsTotal = wantThreads
		}

		if len(ur.Labels) > 0 || len(ur.Profile) > 0 {
			report.Users[userID] = ur
		}
	}
	return report, nil
}

// referencedUnknownLabels lists label IDs cited by messages or drafts
// that have no entry in the user's label map.
func referencedUnknownLabels(u *store.User) []string {
	var out []string
	seen := make(map[string]bool)
	collect := func(msg *store.Message) {
		if msg == nil {
			return
		}
		for _, raw := range msg.LabelIDs {
			id := Canonical(raw)
			if _, ok := u.Labels[id]; !ok && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, msg := range u.Messages {
		collect(msg)
	}
	for _, d := range u.Drafts {
		collect(d.Message)
	}
	return out
}
