package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestImapSettings(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	got, err := r.Settings.GetImap(ctx, "me")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	updated, err := r.Settings.UpdateImap(ctx, "me", &gmail.ImapSettings{
		Enabled:         true,
		AutoExpunge:     true,
		ExpungeBehavior: "archive",
		MaxFolderSize:   500,
	})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)

	got, err = r.Settings.GetImap(ctx, "me")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "archive", got.ExpungeBehavior)
	assert.Equal(t, int64(500), got.MaxFolderSize)

	_, err = r.Settings.UpdateImap(ctx, "me", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPopAndLanguageSettings(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Settings.UpdatePop(ctx, "me", &gmail.PopSettings{
		AccessWindow: "allMail",
		Disposition:  "leaveInInbox",
	})
	require.NoError(t, err)
	pop, err := r.Settings.GetPop(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, "allMail", pop.AccessWindow)

	_, err = r.Settings.UpdateLanguage(ctx, "me", &gmail.LanguageSettings{DisplayLanguage: "fr"})
	require.NoError(t, err)
	lang, err := r.Settings.GetLanguage(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang.DisplayLanguage)

	_, err = r.Settings.UpdateLanguage(ctx, "me", &gmail.LanguageSettings{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVacationSettings_TimeRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	start := testNow.UnixMilli()
	end := testNow.AddDate(0, 0, 14).UnixMilli()
	_, err := r.Settings.UpdateVacation(ctx, "me", &gmail.VacationSettings{
		EnableAutoReply: true,
		ResponseSubject: "Out of office",
		StartTime:       start,
		EndTime:         end,
	})
	require.NoError(t, err)

	got, err := r.Settings.GetVacation(ctx, "me")
	require.NoError(t, err)
	assert.True(t, got.EnableAutoReply)
	assert.Equal(t, "Out of office", got.ResponseSubject)
	assert.Equal(t, start, got.StartTime)
	assert.Equal(t, end, got.EndTime)
}

func TestAutoForwarding(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Settings.UpdateAutoForwarding(ctx, "me", &gmail.AutoForwarding{
		Enabled:      true,
		EmailAddress: "backup@example.com",
		Disposition:  "archive",
	})
	require.NoError(t, err)

	got, err := r.Settings.GetAutoForwarding(ctx, "me")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "backup@example.com", got.EmailAddress)
}

func TestSendAsLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Settings.CreateSendAs(ctx, "me", &gmail.SendAs{
		SendAsEmail: "alias@example.com",
		DisplayName: "Alias",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", created.VerificationStatus)
	assert.False(t, created.IsPrimary)

	_, err = r.Settings.CreateSendAs(ctx, "me", &gmail.SendAs{SendAsEmail: "alias@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = r.Settings.CreateSendAs(ctx, "me", &gmail.SendAs{SendAsEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Primary alias sorts first in listings.
	list, err := r.Settings.ListSendAs(ctx, "me")
	require.NoError(t, err)
	require.Len(t, list.SendAs, 2)
	assert.True(t, list.SendAs[0].IsPrimary)
	assert.Equal(t, "alias@example.com", list.SendAs[1].SendAsEmail)

	require.NoError(t, r.Settings.VerifySendAs(ctx, "me", "alias@example.com"))
	got, err := r.Settings.GetSendAs(ctx, "me", "alias@example.com")
	require.NoError(t, err)
	assert.Equal(t, "accepted", got.VerificationStatus)

	// Patch leaves unsupplied fields alone; update replaces them.
	patched, err := r.Settings.PatchSendAs(ctx, "me", "alias@example.com", &gmail.SendAs{
		Signature: "regards",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alias", patched.DisplayName)
	assert.Equal(t, "regards", patched.Signature)

	replaced, err := r.Settings.UpdateSendAs(ctx, "me", "alias@example.com", &gmail.SendAs{
		DisplayName: "New Name",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", replaced.DisplayName)
	assert.Empty(t, replaced.Signature)

	err = r.Settings.DeleteSendAs(ctx, "me", "me@example.com")
	assert.ErrorIs(t, err, ErrInvalidInput, "primary must be protected")

	require.NoError(t, r.Settings.DeleteSendAs(ctx, "me", "alias@example.com"))
	_, err = r.Settings.GetSendAs(ctx, "me", "alias@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendAsDefaultIsExclusive(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Settings.CreateSendAs(ctx, "me", &gmail.SendAs{SendAsEmail: "a@example.com"})
	require.NoError(t, err)
	_, err = r.Settings.CreateSendAs(ctx, "me", &gmail.SendAs{SendAsEmail: "b@example.com"})
	require.NoError(t, err)

	_, err = r.Settings.PatchSendAs(ctx, "me", "a@example.com", &gmail.SendAs{IsDefault: true})
	require.NoError(t, err)
	_, err = r.Settings.PatchSendAs(ctx, "me", "b@example.com", &gmail.SendAs{IsDefault: true})
	require.NoError(t, err)

	list, err := r.Settings.ListSendAs(ctx, "me")
	require.NoError(t, err)
	defaults := 0
	for _, sa := range list.SendAs {
		if sa.IsDefault {
			defaults++
			assert.Equal(t, "b@example.com", sa.SendAsEmail)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestSmimeLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	const alias = "me@example.com"

	first, err := r.Settings.InsertSmime(ctx, "me", alias, &gmail.SmimeInfo{
		IssuerCn: "Example CA",
		Pem:      "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----",
	})
	require.NoError(t, err)
	assert.Equal(t, "smime_1", first.Id)
	assert.True(t, first.IsDefault, "first certificate becomes default")

	second, err := r.Settings.InsertSmime(ctx, "me", alias, &gmail.SmimeInfo{
		Pem: "-----BEGIN CERTIFICATE-----\nBBBB\n-----END CERTIFICATE-----",
	})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	_, err = r.Settings.InsertSmime(ctx, "me", alias, &gmail.SmimeInfo{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := r.Settings.ListSmime(ctx, "me", alias)
	require.NoError(t, err)
	require.Len(t, list.SmimeInfo, 2)
	assert.Equal(t, "smime_1", list.SmimeInfo[0].Id)

	updated, err := r.Settings.UpdateSmime(ctx, "me", alias, second.Id, &gmail.SmimeInfo{
		IssuerCn: "Other CA",
	})
	require.NoError(t, err)
	assert.Equal(t, "Other CA", updated.IssuerCn)
	assert.NotEmpty(t, updated.Pem, "unsupplied fields survive the update")

	require.NoError(t, r.Settings.SetDefaultSmime(ctx, "me", alias, second.Id))
	got, err := r.Settings.GetSmime(ctx, "me", alias, first.Id)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
	got, err = r.Settings.GetSmime(ctx, "me", alias, second.Id)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	require.NoError(t, r.Settings.DeleteSmime(ctx, "me", alias, first.Id))
	_, err = r.Settings.GetSmime(ctx, "me", alias, first.Id)
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.Settings.SetDefaultSmime(ctx, "me", alias, "smime_99")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Settings.ListSmime(ctx, "me", "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
