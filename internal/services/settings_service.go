package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/store"
)

// SettingsServiceImpl implements the per-user settings surface.
type SettingsServiceImpl struct {
	*deps
}

// Vacation start and end times are ISO-8601 UTC strings in the store
// and millisecond epochs on the API surface.

func isoToMillis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func millisToISO(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05Z")
}

func (s *SettingsServiceImpl) settings(userID string) (*store.User, *store.Settings, error) {
	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, nil, err
	}
	return u, u.Settings, nil
}

// GetImap returns the IMAP settings block.
func (s *SettingsServiceImpl) GetImap(ctx context.Context, userID string) (*gmail.ImapSettings, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	i := cfg.IMAP
	return &gmail.ImapSettings{
		Enabled:         i.Enabled,
		AutoExpunge:     i.AutoExpunge,
		ExpungeBehavior: i.ExpungeBehavior,
		MaxFolderSize:   i.MaxFolderSize,
	}, nil
}

// UpdateImap replaces the IMAP settings block.
func (s *SettingsServiceImpl) UpdateImap(ctx context.Context, userID string, in *gmail.ImapSettings) (*gmail.ImapSettings, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	cfg.IMAP = &store.ImapSettings{
		Enabled:         in.Enabled,
		AutoExpunge:     in.AutoExpunge,
		ExpungeBehavior: in.ExpungeBehavior,
		MaxFolderSize:   in.MaxFolderSize,
	}
	return in, nil
}

// GetPop returns the POP settings block.
func (s *SettingsServiceImpl) GetPop(ctx context.Context, userID string) (*gmail.PopSettings, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	return &gmail.PopSettings{
		AccessWindow: cfg.Pop.AccessWindow,
		Disposition:  cfg.Pop.Disposition,
	}, nil
}

// UpdatePop replaces the POP settings block.
func (s *SettingsServiceImpl) UpdatePop(ctx context.Context, userID string, in *gmail.PopSettings) (*gmail.PopSettings, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	cfg.Pop = &store.PopSettings{AccessWindow: in.AccessWindow, Disposition: in.Disposition}
	return in, nil
}

// GetVacation returns the vacation responder settings.
func (s *SettingsServiceImpl) GetVacation(ctx context.Context, userID string) (*gmail.VacationSettings, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	v := cfg.Vacation
	return &gmail.VacationSettings{
		EnableAutoReply:       v.EnableAutoReply,
		ResponseSubject:       v.ResponseSubject,
		ResponseBodyPlainText: v.ResponseBodyPlainText,
		ResponseBodyHtml:      v.ResponseBodyHTML,
		RestrictToContacts:    v.RestrictToContacts,
		RestrictToDomain:      v.RestrictToDomain,
		StartTime:             isoToMillis(v.StartTime),
		EndTime:               isoToMillis(v.EndTime),
	}, nil
}

// UpdateVacation replaces the vacation responder settings.
func (s *SettingsServiceImpl) UpdateVacation(ctx context.Context, userID string, in *gmail.VacationSettings) (*gmail.VacationSettings, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	cfg.Vacation = &store.VacationSettings{
		EnableAutoReply:       in.EnableAutoReply,
		ResponseSubject:       in.ResponseSubject,
		ResponseBodyPlainText: in.ResponseBodyPlainText,
		ResponseBodyHTML:      in.ResponseBodyHtml,
		RestrictToContacts:    in.RestrictToContacts,
		RestrictToDomain:      in.RestrictToDomain,
		StartTime:             millisToISO(in.StartTime),
		EndTime:               millisToISO(in.EndTime),
	}
	return in, nil
}

// GetLanguage returns the display language setting.
func (s *SettingsServiceImpl) GetLanguage(ctx context.Context, userID string) (*gmail.LanguageSettings, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	return &gmail.LanguageSettings{DisplayLanguage: cfg.Language.DisplayLanguage}, nil
}

// UpdateLanguage replaces the display language setting.
func (s *SettingsServiceImpl) UpdateLanguage(ctx context.Context, userID string, in *gmail.LanguageSettings) (*gmail.LanguageSettings, error) {
	if in == nil || in.DisplayLanguage == "" {
		return nil, fmt.Errorf("%w: displayLanguage is required", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	cfg.Language = &store.LanguageSettings{DisplayLanguage: in.DisplayLanguage}
	return in, nil
}

// GetAutoForwarding returns the auto-forwarding settings.
func (s *SettingsServiceImpl) GetAutoForwarding(ctx context.Context, userID string) (*gmail.AutoForwarding, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	a := cfg.AutoForwarding
	return &gmail.AutoForwarding{
		Enabled:      a.Enabled,
		EmailAddress: a.EmailAddress,
		Disposition:  a.Disposition,
	}, nil
}

// UpdateAutoForwarding replaces the auto-forwarding settings.
func (s *SettingsServiceImpl) UpdateAutoForwarding(ctx context.Context, userID string, in *gmail.AutoForwarding) (*gmail.AutoForwarding, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	cfg.AutoForwarding = &store.AutoForwardingSettings{
		Enabled:      in.Enabled,
		EmailAddress: in.EmailAddress,
		Disposition:  in.Disposition,
	}
	return in, nil
}

// Send-as aliases.

func (s *SettingsServiceImpl) sendAs(cfg *store.Settings, email string) (*store.SendAs, error) {
	sa, ok := cfg.SendAs[email]
	if !ok {
		return nil, fmt.Errorf("%w: send-as %s", ErrNotFound, email)
	}
	return sa, nil
}

// ListSendAs returns all aliases, the primary first.
func (s *SettingsServiceImpl) ListSendAs(ctx context.Context, userID string) (*gmail.ListSendAsResponse, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	resp := &gmail.ListSendAsResponse{}
	for _, sa := range cfg.SendAs {
		resp.SendAs = append(resp.SendAs, toGmailSendAs(sa))
	}
	sort.Slice(resp.SendAs, func(i, j int) bool {
		a, b := resp.SendAs[i], resp.SendAs[j]
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		return a.SendAsEmail < b.SendAsEmail
	})
	return resp, nil
}

// GetSendAs returns one alias.
func (s *SettingsServiceImpl) GetSendAs(ctx context.Context, userID, sendAsEmail string) (*gmail.SendAs, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	return toGmailSendAs(sa), nil
}

// CreateSendAs registers a new alias in the pending verification state.
func (s *SettingsServiceImpl) CreateSendAs(ctx context.Context, userID string, in *gmail.SendAs) (*gmail.SendAs, error) {
	if in == nil || !strings.Contains(in.SendAsEmail, "@") {
		return nil, fmt.Errorf("%w: sendAsEmail must be an email address", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.SendAs[in.SendAsEmail]; ok {
		return nil, fmt.Errorf("%w: send-as %s already exists", ErrConflict, in.SendAsEmail)
	}
	sa := &store.SendAs{
		SendAsEmail:        in.SendAsEmail,
		DisplayName:        in.DisplayName,
		ReplyToAddress:     in.ReplyToAddress,
		Signature:          in.Signature,
		TreatAsAlias:       in.TreatAsAlias,
		VerificationStatus: "pending",
		SmimeInfo:          map[string]*store.SmimeInfo{},
	}
	cfg.SendAs[sa.SendAsEmail] = sa
	return toGmailSendAs(sa), nil
}

func applySendAs(sa *store.SendAs, in *gmail.SendAs, partial bool) {
	if !partial || in.DisplayName != "" {
		sa.DisplayName = in.DisplayName
	}
	if !partial || in.ReplyToAddress != "" {
		sa.ReplyToAddress = in.ReplyToAddress
	}
	if !partial || in.Signature != "" {
		sa.Signature = in.Signature
	}
	if !partial {
		sa.TreatAsAlias = in.TreatAsAlias
	}
}

// UpdateSendAs replaces an alias's mutable fields. Marking an alias
// default clears the flag on the others.
func (s *SettingsServiceImpl) UpdateSendAs(ctx context.Context, userID, sendAsEmail string, in *gmail.SendAs) (*gmail.SendAs, error) {
	return s.updateSendAs(userID, sendAsEmail, in, false)
}

// PatchSendAs updates only supplied fields.
func (s *SettingsServiceImpl) PatchSendAs(ctx context.Context, userID, sendAsEmail string, in *gmail.SendAs) (*gmail.SendAs, error) {
	return s.updateSendAs(userID, sendAsEmail, in, true)
}

func (s *SettingsServiceImpl) updateSendAs(userID, sendAsEmail string, in *gmail.SendAs, partial bool) (*gmail.SendAs, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	applySendAs(sa, in, partial)
	if in.IsDefault && !sa.IsDefault {
		for _, other := range cfg.SendAs {
			other.IsDefault = false
		}
		sa.IsDefault = true
	}
	return toGmailSendAs(sa), nil
}

// DeleteSendAs removes a non-primary alias.
func (s *SettingsServiceImpl) DeleteSendAs(ctx context.Context, userID, sendAsEmail string) error {
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return err
	}
	if sa.IsPrimary {
		return fmt.Errorf("%w: cannot delete the primary send-as", ErrInvalidInput)
	}
	delete(cfg.SendAs, sendAsEmail)
	return nil
}

// VerifySendAs marks an alias accepted. The simulator skips the email
// round trip a real verification performs.
func (s *SettingsServiceImpl) VerifySendAs(ctx context.Context, userID, sendAsEmail string) error {
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return err
	}
	sa.VerificationStatus = "accepted"
	return nil
}

// S/MIME certificates under a send-as alias.

// ListSmime returns an alias's certificates sorted by ID.
func (s *SettingsServiceImpl) ListSmime(ctx context.Context, userID, sendAsEmail string) (*gmail.ListSmimeInfoResponse, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	resp := &gmail.ListSmimeInfoResponse{}
	for _, info := range sa.SmimeInfo {
		resp.SmimeInfo = append(resp.SmimeInfo, toGmailSmime(info))
	}
	sort.Slice(resp.SmimeInfo, func(i, j int) bool {
		return resp.SmimeInfo[i].Id < resp.SmimeInfo[j].Id
	})
	return resp, nil
}

func (s *SettingsServiceImpl) smime(sa *store.SendAs, id string) (*store.SmimeInfo, error) {
	info, ok := sa.SmimeInfo[id]
	if !ok {
		return nil, fmt.Errorf("%w: smimeInfo %s", ErrNotFound, id)
	}
	return info, nil
}

// GetSmime returns one certificate.
func (s *SettingsServiceImpl) GetSmime(ctx context.Context, userID, sendAsEmail, id string) (*gmail.SmimeInfo, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	info, err := s.smime(sa, id)
	if err != nil {
		return nil, err
	}
	return toGmailSmime(info), nil
}

// InsertSmime attaches a certificate to an alias. The first inserted
// certificate becomes the default.
func (s *SettingsServiceImpl) InsertSmime(ctx context.Context, userID, sendAsEmail string, in *gmail.SmimeInfo) (*gmail.SmimeInfo, error) {
	if in == nil || in.Pem == "" {
		return nil, fmt.Errorf("%w: pem is required", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	info := &store.SmimeInfo{
		ID:                   fmt.Sprintf("smime_%d", s.store.NextCounter(store.CounterSmime)),
		IssuerCn:             in.IssuerCn,
		ExpirationMillis:     in.Expiration,
		Pem:                  in.Pem,
		EncryptedKeyPassword: in.EncryptedKeyPassword,
		IsDefault:            len(sa.SmimeInfo) == 0,
	}
	sa.SmimeInfo[info.ID] = info
	return toGmailSmime(info), nil
}

// UpdateSmime replaces a certificate's mutable fields in place.
func (s *SettingsServiceImpl) UpdateSmime(ctx context.Context, userID, sendAsEmail, id string, in *gmail.SmimeInfo) (*gmail.SmimeInfo, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return nil, err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return nil, err
	}
	info, err := s.smime(sa, id)
	if err != nil {
		return nil, err
	}
	if in.IssuerCn != "" {
		info.IssuerCn = in.IssuerCn
	}
	if in.Expiration != 0 {
		info.ExpirationMillis = in.Expiration
	}
	if in.Pem != "" {
		info.Pem = in.Pem
	}
	if in.EncryptedKeyPassword != "" {
		info.EncryptedKeyPassword = in.EncryptedKeyPassword
	}
	return toGmailSmime(info), nil
}

// DeleteSmime removes a certificate.
func (s *SettingsServiceImpl) DeleteSmime(ctx context.Context, userID, sendAsEmail, id string) error {
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return err
	}
	if _, err := s.smime(sa, id); err != nil {
		return err
	}
	delete(sa.SmimeInfo, id)
	return nil
}

// SetDefaultSmime marks one certificate default, clearing the others.
func (s *SettingsServiceImpl) SetDefaultSmime(ctx context.Context, userID, sendAsEmail, id string) error {
	s.store.Lock()
	defer s.store.Unlock()
	_, cfg, err := s.settings(userID)
	if err != nil {
		return err
	}
	sa, err := s.sendAs(cfg, sendAsEmail)
	if err != nil {
		return err
	}
	if _, err := s.smime(sa, id); err != nil {
		return err
	}
	for _, info := range sa.SmimeInfo {
		info.IsDefault = info.ID == id
	}
	return nil
}
