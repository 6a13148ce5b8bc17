package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftCreate(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	d, err := r.Drafts.Create(ctx, "me", MessageInput{
		Recipient: "to@example.com",
		Subject:   "wip",
		Body:      "unfinished",
	})
	require.NoError(t, err)

	assert.Equal(t, "draft_1", d.Id)
	require.NotNil(t, d.Message)
	assert.Equal(t, "message_1", d.Message.Id)
	assert.Contains(t, d.Message.LabelIds, "DRAFT")

	// Sender defaults to the owning profile's address.
	var from string
	for _, h := range d.Message.Payload.Headers {
		if h.Name == "From" {
			from = h.Value
		}
	}
	assert.Equal(t, "me@example.com", from)

	// Drafts count toward label totals but not the profile.
	l, err := r.Labels.Get(ctx, "me", "DRAFT")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.MessagesTotal)
	p, err := r.Profile.GetProfile(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.MessagesTotal)

	requireCleanCounts(t, r)
}

func TestDraftUpdate_KeepsIDs(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	d, err := r.Drafts.Create(ctx, "me", MessageInput{Body: "v1"})
	require.NoError(t, err)

	updated, err := r.Drafts.Update(ctx, "me", d.Id, MessageInput{Body: "v2", Subject: "new"})
	require.NoError(t, err)
	assert.Equal(t, d.Id, updated.Id)
	assert.Equal(t, d.Message.Id, updated.Message.Id)
	assert.Equal(t, "v2", updated.Message.Snippet)

	_, err = r.Drafts.Update(ctx, "me", "missing", MessageInput{Body: "x"})
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftListAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Drafts.Create(ctx, "me", MessageInput{Body: "alpha report"})
	require.NoError(t, err)
	_, err = r.Drafts.Create(ctx, "me", MessageInput{Body: "beta notes"})
	require.NoError(t, err)

	resp, err := r.Drafts.List(ctx, "me", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, resp.Drafts, 2)

	// Query narrows by the embedded message content.
	resp, err = r.Drafts.List(ctx, "me", ListOptions{Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, resp.Drafts, 1)
	assert.Equal(t, a.Id, resp.Drafts[0].Id)

	got, err := r.Drafts.Get(ctx, "me", a.Id)
	require.NoError(t, err)
	assert.Equal(t, "alpha report", got.Message.Snippet)

	_, err = r.Drafts.Get(ctx, "me", "nope")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftDelete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	d, err := r.Drafts.Create(ctx, "me", MessageInput{Body: "bye"})
	require.NoError(t, err)

	require.NoError(t, r.Drafts.Delete(ctx, "me", d.Id))
	_, err = r.Drafts.Get(ctx, "me", d.Id)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	l, err := r.Labels.Get(ctx, "me", "DRAFT")
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.MessagesTotal)
	requireCleanCounts(t, r)
}

func TestDraftSend_Promotion(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	d, err := r.Drafts.Create(ctx, "me", MessageInput{
		Recipient: "to@example.com",
		Subject:   "final",
		Body:      "ship it",
	})
	require.NoError(t, err)

	m, err := r.Drafts.Send(ctx, "me", d.Id)
	require.NoError(t, err)

	// Same message identity, promoted atomically.
	assert.Equal(t, d.Message.Id, m.Id)
	assert.Contains(t, m.LabelIds, "SENT")
	assert.NotContains(t, m.LabelIds, "DRAFT")
	assert.Equal(t, testNow.UnixMilli(), m.InternalDate)
	assert.NotEmpty(t, m.ThreadId)

	_, err = r.Drafts.Get(ctx, "me", d.Id)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	got, err := r.Messages.Get(ctx, "me", m.Id)
	require.NoError(t, err)
	assert.Contains(t, got.LabelIds, "SENT")

	p, err := r.Profile.GetProfile(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.MessagesTotal)
	sent, err := r.Labels.Get(ctx, "me", "SENT")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent.MessagesTotal)

	requireCleanCounts(t, r)

	_, err = r.Drafts.Send(ctx, "me", d.Id)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
