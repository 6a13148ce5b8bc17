package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestGetProfile(t *testing.T) {
	r := newTestRegistry(t)

	p, err := r.Profile.GetProfile(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", p.EmailAddress)
	assert.Equal(t, int64(0), p.MessagesTotal)
	assert.Equal(t, uint64(1), p.HistoryId)

	_, err = r.Profile.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestWatchAndStop(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	resp, err := r.Profile.Watch(ctx, "me", &gmail.WatchRequest{
		TopicName: "projects/demo/topics/mail",
		LabelIds:  []string{"INBOX"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.HistoryId)
	assert.Equal(t, testNow.Add(watchWindow).UnixMilli(), resp.Expiration)

	require.NoError(t, r.Profile.Stop(ctx, "me"))
	// Stop with no active watch is still fine.
	require.NoError(t, r.Profile.Stop(ctx, "me"))

	_, err = r.Profile.Watch(ctx, "me", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListHistory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id := mustSend(t, r, "me", MessageInput{Body: "x", LabelIDs: []string{"INBOX"}})
	_, err := r.Messages.Modify(ctx, "me", id, []string{"Work"}, nil)
	require.NoError(t, err)

	resp, err := r.Profile.ListHistory(ctx, "me", HistoryOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.History)

	var added, labeled bool
	for _, h := range resp.History {
		if len(h.MessagesAdded) > 0 {
			added = true
			assert.Equal(t, id, h.MessagesAdded[0].Message.Id)
		}
		if len(h.LabelsAdded) > 0 {
			labeled = true
			assert.Contains(t, h.LabelsAdded[0].LabelIds, "Work")
		}
	}
	assert.True(t, added)
	assert.True(t, labeled)

	// IDs are strictly increasing.
	for i := 1; i < len(resp.History); i++ {
		assert.Greater(t, resp.History[i].Id, resp.History[i-1].Id)
	}
}

func TestListHistory_Filters(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id := mustSend(t, r, "me", MessageInput{Body: "x"})
	_, err := r.Messages.Modify(ctx, "me", id, []string{"Work"}, nil)
	require.NoError(t, err)

	// Type filter keeps only the named record kinds.
	resp, err := r.Profile.ListHistory(ctx, "me", HistoryOptions{
		HistoryTypes: []string{"labelAdded"},
	})
	require.NoError(t, err)
	for _, h := range resp.History {
		assert.Empty(t, h.MessagesAdded)
		assert.NotEmpty(t, h.LabelsAdded)
	}

	// Label filter keeps records touching the label.
	resp, err = r.Profile.ListHistory(ctx, "me", HistoryOptions{LabelID: "Work"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.History)
	resp, err = r.Profile.ListHistory(ctx, "me", HistoryOptions{LabelID: "NoSuchLabel"})
	require.NoError(t, err)
	assert.Empty(t, resp.History)

	// Records at or below startHistoryId are excluded.
	full, err := r.Profile.ListHistory(ctx, "me", HistoryOptions{})
	require.NoError(t, err)
	last := full.History[len(full.History)-1]
	resp, err = r.Profile.ListHistory(ctx, "me", HistoryOptions{
		StartHistoryID: strconv.FormatUint(full.History[0].Id, 10),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.History)
	assert.Equal(t, last.Id, resp.History[len(resp.History)-1].Id)
	assert.Less(t, len(resp.History), len(full.History))

	_, err = r.Profile.ListHistory(ctx, "me", HistoryOptions{StartHistoryID: "abc"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListHistory_Pagination(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mustSend(t, r, "me", MessageInput{Body: "x"})
	}

	var pages int
	var total int
	token := ""
	for {
		resp, err := r.Profile.ListHistory(ctx, "me", HistoryOptions{MaxResults: 2, PageToken: token})
		require.NoError(t, err)
		pages++
		total += len(resp.History)
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, pages)
}
