package labels

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsim/gmailsim/internal/store"
)

// seedMailbox builds two INBOX messages (one unread) across two
// threads, with counts freshly recomputed.
func seedMailbox(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(zerolog.Nop())
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	u.Messages["m1"] = &store.Message{
		ID: "m1", ThreadID: "t1", LabelIDs: []string{"INBOX", "UNREAD"},
		InternalDate: "1700000000000",
	}
	u.Messages["m2"] = &store.Message{
		ID: "m2", ThreadID: "t2", LabelIDs: []string{"INBOX"}, IsRead: true,
		InternalDate: "1700000001000",
	}
	u.Threads["t1"] = &store.Thread{ID: "t1", MessageIDs: []string{"m1"}}
	u.Threads["t2"] = &store.Thread{ID: "t2", MessageIDs: []string{"m2"}}
	NewManager(s).Recount(u)
	return s
}

func TestRecount(t *testing.T) {
	s := seedMailbox(t)
	s.RLock()
	defer s.RUnlock()

	u := s.User("me")
	inbox := u.Labels["INBOX"]
	assert.Equal(t, int64(2), inbox.MessagesTotal)
	assert.Equal(t, int64(1), inbox.MessagesUnread)
	assert.Equal(t, int64(2), inbox.ThreadsTotal)
	assert.Equal(t, int64(1), inbox.ThreadsUnread)
	assert.Equal(t, int64(2), u.Profile.MessagesTotal)
	assert.Equal(t, int64(2), u.Profile.ThreadsTotal)
}

func TestRecount_DraftsContribute(t *testing.T) {
	s := seedMailbox(t)
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	u.Drafts["d1"] = &store.Draft{ID: "d1", Message: &store.Message{
		ID: "m3", LabelIDs: []string{"DRAFT"},
	}}
	NewManager(s).Recount(u)

	assert.Equal(t, int64(1), u.Labels["DRAFT"].MessagesTotal)
	assert.Equal(t, int64(1), u.Labels["DRAFT"].MessagesUnread)
	// Drafts count for labels but not for the profile message total.
	assert.Equal(t, int64(2), u.Profile.MessagesTotal)
}

func TestVerify_CleanMailbox(t *testing.T) {
	s := seedMailbox(t)
	s.Lock()
	defer s.Unlock()

	report, err := Verify(s, false)
	require.NoError(t, err)
	assert.False(t, report.HasDifferences)
	assert.Empty(t, report.Users)
}

func TestVerify_RepairsCorruptCounts(t *testing.T) {
	s := seedMailbox(t)
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	u.Labels["INBOX"].MessagesTotal = 99
	u.Profile.MessagesTotal = 42

	report, err := Verify(s, true)
	require.NoError(t, err)
	require.True(t, report.HasDifferences)

	ur := report.Users["me"]
	require.NotNil(t, ur)
	diff := ur.Labels["INBOX"]["messagesTotal"]
	assert.Equal(t, int64(2), diff.Expected)
	assert.Equal(t, int64(99), diff.Actual)
	assert.Equal(t, int64(2), ur.Profile["messagesTotal"].Expected)

	inbox := u.Labels["INBOX"]
	assert.Equal(t, int64(2), inbox.MessagesTotal)
	assert.Equal(t, int64(1), inbox.MessagesUnread)
	assert.Equal(t, int64(2), inbox.ThreadsTotal)
	assert.Equal(t, int64(1), inbox.ThreadsUnread)

	// Repair then re-verify: the second pass must come back clean.
	second, err := Verify(s, false)
	require.NoError(t, err)
	assert.False(t, second.HasDifferences)
}

func TestVerify_CreatesReferencedLabels(t *testing.T) {
	s := seedMailbox(t)
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	u.Messages["m1"].AddLabel("Ghost")

	report, err := Verify(s, true)
	require.NoError(t, err)
	assert.True(t, report.HasDifferences)

	l, ok := u.Labels["Ghost"]
	require.True(t, ok)
	assert.Equal(t, "user", l.Type)
	assert.Equal(t, int64(1), l.MessagesTotal)
}

func TestVerify_NilStore(t *testing.T) {
	_, err := Verify(nil, false)
	assert.Error(t, err)
}

func TestEnsure(t *testing.T) {
	s := store.New(zerolog.Nop())
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	m := NewManager(s)
	m.Ensure(u, []string{"inbox", "ProjectX", ""})

	// Uppercase form of a system label maps onto the system entry.
	assert.Equal(t, "system", u.Labels["INBOX"].Type)
	_, lowercase := u.Labels["inbox"]
	assert.False(t, lowercase)

	// User labels keep the caller's case.
	l, ok := u.Labels["ProjectX"]
	require.True(t, ok)
	assert.Equal(t, "user", l.Type)
	assert.Equal(t, "ProjectX", l.Name)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "INBOX", Canonical("inbox"))
	assert.Equal(t, "TRASH", Canonical("Trash"))
	assert.Equal(t, "ProjectX", Canonical("ProjectX"))
}

func TestSyncThread(t *testing.T) {
	s := store.New(zerolog.Nop())
	s.Lock()
	defer s.Unlock()

	u := s.User("me")
	u.Messages["m1"] = &store.Message{ID: "m1", LabelIDs: []string{"INBOX"}, Snippet: "first"}
	u.Messages["m2"] = &store.Message{ID: "m2", LabelIDs: []string{"inbox", "STARRED"}}
	tr := &store.Thread{ID: "t1", MessageIDs: []string{"m1", "m2"}}
	u.Threads["t1"] = tr

	SyncThread(u, tr)
	assert.ElementsMatch(t, []string{"INBOX", "STARRED"}, tr.LabelIDs)
	assert.Equal(t, "first", tr.Snippet)
}

func TestHasUserLabel(t *testing.T) {
	assert.False(t, HasUserLabel(&store.Message{LabelIDs: []string{"INBOX", "SENT"}}))
	assert.True(t, HasUserLabel(&store.Message{LabelIDs: []string{"INBOX", "Work"}}))
}
