package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

func newTestDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexStore(t *testing.T) {
	s := newTestDB(t)
	idx := NewIndexStore(s)
	ctx := context.Background()

	msg := &store.Message{
		ID:        "m1",
		Subject:   "Quarterly Report",
		Body:      "numbers are up",
		Sender:    "boss@example.com",
		Recipient: "me@example.com",
	}
	require.NoError(t, idx.IndexMessage(ctx, "me", search.ResourceMessage, "m1", msg))

	t.Run("substring match is case-insensitive", func(t *testing.T) {
		got, err := idx.Search(ctx, "quarterly", search.Filter{UserID: "me", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, got)
	})

	t.Run("field filter scopes the lookup", func(t *testing.T) {
		got, err := idx.Search(ctx, "boss", search.Filter{
			UserID: "me", Resource: search.ResourceMessage, Content: "sender",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, got)

		got, err = idx.Search(ctx, "boss", search.Filter{
			UserID: "me", Resource: search.ResourceMessage, Content: "subject",
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("scoped by user and resource type", func(t *testing.T) {
		got, err := idx.Search(ctx, "quarterly", search.Filter{UserID: "other", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = idx.Search(ctx, "quarterly", search.Filter{UserID: "me", Resource: search.ResourceDraft})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("reindex replaces rows", func(t *testing.T) {
		msg.Subject = "Final Report"
		require.NoError(t, idx.IndexMessage(ctx, "me", search.ResourceMessage, "m1", msg))

		got, err := idx.Search(ctx, "quarterly", search.Filter{UserID: "me", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Empty(t, got)
		got, err = idx.Search(ctx, "final", search.Filter{UserID: "me", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, got)
	})

	t.Run("delete resource", func(t *testing.T) {
		require.NoError(t, idx.DeleteResource(ctx, "me", search.ResourceMessage, "m1"))
		got, err := idx.Search(ctx, "final", search.Filter{UserID: "me", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("delete user", func(t *testing.T) {
		require.NoError(t, idx.IndexMessage(ctx, "u1", search.ResourceMessage, "a", msg))
		require.NoError(t, idx.IndexMessage(ctx, "u1", search.ResourceDraft, "d1", msg))
		require.NoError(t, idx.DeleteUser(ctx, "u1"))
		got, err := idx.Search(ctx, "final", search.Filter{UserID: "u1", Resource: search.ResourceMessage})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestQueryStore_SaveIsUpsert(t *testing.T) {
	qs := NewQueryStore(newTestDB(t))
	ctx := context.Background()

	q, err := qs.Save(ctx, "me", "unread-inbox", "is:unread in:inbox", "triage view", "")
	require.NoError(t, err)
	assert.Equal(t, "general", q.Category, "empty category defaults")
	assert.Equal(t, 0, q.UseCount)

	// Saving the same (user, name) updates in place.
	q2, err := qs.Save(ctx, "me", "unread-inbox", "is:unread", "narrower", "triage")
	require.NoError(t, err)
	assert.Equal(t, q.ID, q2.ID)
	assert.Equal(t, "is:unread", q2.Query)
	assert.Equal(t, "triage", q2.Category)

	_, err = qs.Save(ctx, "me", "", "q", "", "")
	assert.Error(t, err)
	_, err = qs.Save(ctx, "me", "name", " ", "", "")
	assert.Error(t, err)
}

func TestQueryStore_Lookups(t *testing.T) {
	qs := NewQueryStore(newTestDB(t))
	ctx := context.Background()

	saved, err := qs.Save(ctx, "me", "starred", "is:starred", "important mail", "triage")
	require.NoError(t, err)
	_, err = qs.Save(ctx, "me", "attachments", "has:attachment", "", "files")
	require.NoError(t, err)
	_, err = qs.Save(ctx, "other", "starred", "is:starred", "", "")
	require.NoError(t, err)

	byName, err := qs.GetByName(ctx, "me", "starred")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byName.ID)

	byID, err := qs.GetByID(ctx, "me", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "starred", byID.Name)

	_, err = qs.GetByName(ctx, "me", "missing")
	assert.Error(t, err)

	// List is per user, optionally narrowed by category.
	all, err := qs.List(ctx, "me", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	triage, err := qs.List(ctx, "me", "triage")
	require.NoError(t, err)
	require.Len(t, triage, 1)
	assert.Equal(t, "starred", triage[0].Name)

	found, err := qs.Search(ctx, "me", "important")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "starred", found[0].Name)

	cats, err := qs.Categories(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "triage"}, cats)
}

func TestQueryStore_UsageAndDelete(t *testing.T) {
	qs := NewQueryStore(newTestDB(t))
	ctx := context.Background()

	saved, err := qs.Save(ctx, "me", "q1", "in:inbox", "", "")
	require.NoError(t, err)

	require.NoError(t, qs.RecordUsage(ctx, "me", saved.ID))
	require.NoError(t, qs.RecordUsage(ctx, "me", saved.ID))
	got, err := qs.GetByID(ctx, "me", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)

	// Another user cannot touch it.
	assert.Error(t, qs.RecordUsage(ctx, "other", saved.ID))
	assert.Error(t, qs.Delete(ctx, "other", saved.ID))

	require.NoError(t, qs.Delete(ctx, "me", saved.ID))
	assert.Error(t, qs.Delete(ctx, "me", saved.ID))
}
