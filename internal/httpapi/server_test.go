package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/services"
	"github.com/mailsim/gmailsim/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.New(zerolog.Nop())
	engine := &search.Engine{Now: func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	}}
	registry := services.New(st, engine, nil, zerolog.Nop())
	srv := httptest.NewServer(New(registry, st, nil, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, "GET", srv.URL+"/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSendAndListRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me"

	var sent gmail.Message
	resp := doJSON(t, "POST", base+"/messages/send", map[string]any{
		"recipient": "to@example.com",
		"subject":   "hello",
		"body":      "over the wire",
		"labelIds":  []string{"INBOX"},
	}, &sent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, sent.LabelIds, "SENT")

	var list gmail.ListMessagesResponse
	resp = doJSON(t, "GET", base+"/messages?q=hello", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, sent.Id, list.Messages[0].Id)

	var got gmail.Message
	resp = doJSON(t, "GET", base+"/messages/"+sent.Id, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "over the wire", got.Snippet)

	resp = doJSON(t, "DELETE", base+"/messages/"+sent.Id, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, "GET", base+"/messages/"+sent.Id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me"

	t.Run("missing resource is 404", func(t *testing.T) {
		var body errorBody
		resp := doJSON(t, "GET", base+"/messages/message_99", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		r2, err := http.Get(base + "/messages/message_99")
		require.NoError(t, err)
		defer r2.Body.Close()
		require.NoError(t, json.NewDecoder(r2.Body).Decode(&body))
		assert.Equal(t, "NOT_FOUND", body.Error.Status)
		assert.Equal(t, http.StatusNotFound, body.Error.Code)
	})

	t.Run("bad parameters are 400", func(t *testing.T) {
		resp := doJSON(t, "GET", base+"/messages?maxResults=nope", nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = doJSON(t, "POST", base+"/drafts/send", map[string]any{}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate label is 409", func(t *testing.T) {
		resp := doJSON(t, "POST", base+"/labels", map[string]string{"name": "Dup"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = doJSON(t, "POST", base+"/labels", map[string]string{"name": "Dup"}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		resp := doJSON(t, "GET", srv.URL+"/gmail/v1/users/ghost/profile", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestLabelCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me/labels"

	var created gmail.Label
	resp := doJSON(t, "POST", base, map[string]string{"name": "Work"}, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, created.Id)

	var patched gmail.Label
	resp = doJSON(t, "PATCH", base+"/"+created.Id, map[string]string{
		"labelListVisibility": "labelHide",
	}, &patched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Work", patched.Name)
	assert.Equal(t, "labelHide", patched.LabelListVisibility)

	var list gmail.ListLabelsResponse
	resp = doJSON(t, "GET", base, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := false
	for _, l := range list.Labels {
		if l.Id == created.Id {
			found = true
		}
	}
	assert.True(t, found)

	resp = doJSON(t, "DELETE", base+"/"+created.Id, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, "GET", base+"/"+created.Id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDraftSendOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me"

	var draft gmail.Draft
	resp := doJSON(t, "POST", base+"/drafts", map[string]any{
		"message": map[string]string{"recipient": "to@example.com", "body": "wip"},
	}, &draft)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, draft.Id)

	var sent gmail.Message
	resp = doJSON(t, "POST", base+"/drafts/send", map[string]string{"id": draft.Id}, &sent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, sent.LabelIds, "SENT")

	resp = doJSON(t, "GET", base+"/drafts/"+draft.Id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/internal/verify", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, "POST", srv.URL+"/internal/verify?fix=true", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me"

	var sent gmail.Message
	resp := doJSON(t, "POST", base+"/messages/send", map[string]string{"body": "x"}, &sent)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/reset", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "GET", base+"/messages/"+sent.Id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSavedQueriesUnavailableWithoutDatabase(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "GET", srv.URL+"/internal/queries/me", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp = doJSON(t, "POST", srv.URL+"/internal/queries/me", map[string]string{
		"name": "q", "query": "is:unread",
	}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSettingsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/gmail/v1/users/me/settings"

	var imap gmail.ImapSettings
	resp := doJSON(t, "PUT", base+"/imap", map[string]any{"enabled": true}, &imap)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, imap.Enabled)

	var got gmail.ImapSettings
	resp = doJSON(t, "GET", base+"/imap", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Enabled)

	var sendAs gmail.SendAs
	resp = doJSON(t, "POST", base+"/sendAs", map[string]string{
		"sendAsEmail": "alias@example.com",
	}, &sendAs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", sendAs.VerificationStatus)

	resp = doJSON(t, "POST", base+"/sendAs/alias@example.com/verify", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
