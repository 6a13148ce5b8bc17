package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedThread imports n messages into one thread and returns the thread ID.
func seedThread(t *testing.T, r *Registry, n int, body string) string {
	t.Helper()
	ctx := context.Background()
	threadID := ""
	for i := 0; i < n; i++ {
		m, err := r.Messages.Import(ctx, "me", MessageInput{
			Body:         body,
			ThreadID:     threadID,
			InternalDate: strconv.FormatInt(int64(1700000000000+i*1000), 10),
			LabelIDs:     []string{"INBOX"},
		})
		require.NoError(t, err)
		threadID = m.ThreadId
	}
	return threadID
}

func TestThreadGet(t *testing.T) {
	r := newTestRegistry(t)
	tid := seedThread(t, r, 3, "conversation")

	thread, err := r.Threads.Get(context.Background(), "me", tid)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 3)

	// Members come back oldest first.
	for i := 1; i < len(thread.Messages); i++ {
		assert.LessOrEqual(t, thread.Messages[i-1].InternalDate, thread.Messages[i].InternalDate)
	}

	_, err = r.Threads.Get(context.Background(), "me", "thread_99")
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestThreadList(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	old := seedThread(t, r, 2, "quarterly report")
	recent := seedThread(t, r, 1, "lunch plans")

	resp, err := r.Threads.List(ctx, "me", ListOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Threads, 2)

	// seedThread dates the second thread's message later, so it leads.
	assert.Equal(t, recent, resp.Threads[0].Id)
	assert.Equal(t, old, resp.Threads[1].Id)

	// One matching member is enough for the whole thread.
	resp, err = r.Threads.List(ctx, "me", ListOptions{Query: "report"})
	require.NoError(t, err)
	require.Len(t, resp.Threads, 1)
	assert.Equal(t, old, resp.Threads[0].Id)

	_, err = r.Threads.List(ctx, "me", ListOptions{Query: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestThreadModify_FansOut(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	tid := seedThread(t, r, 2, "x")

	thread, err := r.Threads.Modify(ctx, "me", tid, []string{"Flagged"}, []string{"INBOX"})
	require.NoError(t, err)
	for _, m := range thread.Messages {
		assert.Contains(t, m.LabelIds, "Flagged")
		assert.NotContains(t, m.LabelIds, "INBOX")
	}

	l, err := r.Labels.Get(ctx, "me", "Flagged")
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.MessagesTotal)
	assert.Equal(t, int64(1), l.ThreadsTotal)
	requireCleanCounts(t, r)
}

func TestThreadTrashUntrash(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	tid := seedThread(t, r, 2, "x")

	thread, err := r.Threads.Trash(ctx, "me", tid)
	require.NoError(t, err)
	for _, m := range thread.Messages {
		assert.Contains(t, m.LabelIds, "TRASH")
	}

	// Trashed threads drop out of default listings.
	resp, err := r.Threads.List(ctx, "me", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Threads)

	thread, err = r.Threads.Untrash(ctx, "me", tid)
	require.NoError(t, err)
	for _, m := range thread.Messages {
		assert.NotContains(t, m.LabelIds, "TRASH")
	}
	requireCleanCounts(t, r)
}

func TestThreadDelete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	tid := seedThread(t, r, 2, "x")

	thread, err := r.Threads.Get(ctx, "me", tid)
	require.NoError(t, err)

	require.NoError(t, r.Threads.Delete(ctx, "me", tid))
	_, err = r.Threads.Get(ctx, "me", tid)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	for _, m := range thread.Messages {
		_, err := r.Messages.Get(ctx, "me", m.Id)
		assert.ErrorIs(t, err, ErrMessageNotFound)
	}

	p, err := r.Profile.GetProfile(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.MessagesTotal)
	assert.Equal(t, int64(0), p.ThreadsTotal)
	requireCleanCounts(t, r)
}
