// Package labels maintains label existence and the four per-label count
// fields, and provides the verifier that recomputes counts from first
// principles.
package labels

import (
	"strings"

	"github.com/mailsim/gmailsim/internal/store"
)

// Manager creates labels on demand and keeps counts consistent after
// mutations. All methods assume the caller holds the store lock.
type Manager struct {
	store *store.Store
}

// NewManager creates a label manager over the store.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Ensure makes sure every referenced label ID exists in the user's label
// map. An ID whose uppercase form matches a system label is inserted as
// that system label; anything else becomes a user label preserving the
// caller's original case.
func (m *Manager) Ensure(u *store.User, ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		upper := strings.ToUpper(id)
		if store.IsSystemLabel(upper) {
			if _, ok := u.Labels[upper]; !ok {
				u.Labels[upper] = &store.Label{
					ID:                    upper,
					Name:                  upper,
					Type:                  "system",
					LabelListVisibility:   "labelShow",
					MessageListVisibility: "show",
				}
			}
			continue
		}
		if _, ok := u.Labels[id]; !ok {
			u.Labels[id] = &store.Label{
				ID:                    id,
				Name:                  id,
				Type:                  "user",
				LabelListVisibility:   "labelShow",
				MessageListVisibility: "show",
			}
		}
	}
}

// Canonical maps a referenced label ID to the key it is stored under:
// system labels uppercase, user labels verbatim.
func Canonical(id string) string {
	upper := strings.ToUpper(id)
	if store.IsSystemLabel(upper) {
		return upper
	}
	return id
}

// Recount recomputes every label's four count fields and the profile
// totals for one user. Services call this inside the same locked step as
// the mutation, so counts are never observed stale (invariant work that
// the verifier below re-derives independently).
func (m *Manager) Recount(u *store.User) {
	counts := computeCounts(u)
	for id, l := range u.Labels {
		c := counts[id]
		l.MessagesTotal = c.messagesTotal
		l.MessagesUnread = c.messagesUnread
		l.ThreadsTotal = c.threadsTotal
		l.ThreadsUnread = c.threadsUnread
	}
	u.Profile.MessagesTotal = int64(len(u.Messages))
	u.Profile.ThreadsTotal = int64(len(u.Threads))
}

type labelCounts struct {
	messagesTotal  int64
	messagesUnread int64
	threadsTotal   int64
	threadsUnread  int64
}

// computeCounts derives the count quad for every label from the user's
// messages, drafts and threads. Drafts contribute through their embedded
// message. Thread counts use the union of member labels.
func computeCounts(u *store.User) map[string]labelCounts {
	counts := make(map[string]labelCounts, len(u.Labels))
	for id := range u.Labels {
		counts[id] = labelCounts{}
	}

	countMessage := func(msg *store.Message) {
		unread := msg.Unread()
		for _, raw := range msg.LabelIDs {
			id := Canonical(raw)
			c := counts[id]
			c.messagesTotal++
			if unread {
				c.messagesUnread++
			}
			counts[id] = c
		}
	}
	for _, msg := range u.Messages {
		countMessage(msg)
	}
	for _, d := range u.Drafts {
		if d.Message != nil {
			countMessage(d.Message)
		}
	}

	for _, t := range u.Threads {
		threadLabels := make(map[string]bool)
		unreadLabels := make(map[string]bool)
		for _, mid := range t.MessageIDs {
			msg, ok := u.Messages[mid]
			if !ok {
				continue
			}
			for _, raw := range msg.LabelIDs {
				id := Canonical(raw)
				threadLabels[id] = true
				if msg.Unread() {
					unreadLabels[id] = true
				}
			}
		}
		for id := range threadLabels {
			c := counts[id]
			c.threadsTotal++
			counts[id] = c
		}
		for id := range unreadLabels {
			c := counts[id]
			c.threadsUnread++
			counts[id] = c
		}
	}
	return counts
}

// SyncThread refreshes a thread's derived label set and snippet from its
// member messages.
func SyncThread(u *store.User, t *store.Thread) {
	seen := make(map[string]bool)
	t.LabelIDs = t.LabelIDs[:0]
	t.Snippet = ""
	for _, mid := range t.MessageIDs {
		msg, ok := u.Messages[mid]
		if !ok {
			continue
		}
		if t.Snippet == "" {
			t.Snippet = msg.Snippet
		}
		for _, raw := range msg.LabelIDs {
			id := Canonical(raw)
			if !seen[id] {
				seen[id] = true
				t.LabelIDs = append(t.LabelIDs, id)
			}
		}
	}
}

// HasUserLabel reports whether the message carries any label outside the
// fixed system set.
func HasUserLabel(msg *store.Message) bool {
	for _, raw := range msg.LabelIDs {
		if !store.IsSystemLabel(strings.ToUpper(raw)) {
			return true
		}
	}
	return false
}
