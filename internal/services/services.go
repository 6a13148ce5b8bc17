// Package services implements the mailbox operations API as a thin
// orchestration over the store, label manager, MIME pipeline and query
// engine. Every public method resolves the user once at the entry
// point and holds the store lock for the whole operation, so callers
// observe the store atomically.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/labels"
	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

// Indexer receives resource text for keyword search. The SQLite-backed
// implementation lives in internal/db; a nil Indexer disables indexing
// and the engine falls back to direct scans.
type Indexer interface {
	IndexMessage(ctx context.Context, userID, resourceType, resourceID string, m *store.Message) error
	DeleteResource(ctx context.Context, userID, resourceType, resourceID string) error
}

// MessageInput carries the two accepted message shapes: structured
// fields, or a base64url raw MIME blob. Raw wins when both are set.
type MessageInput struct {
	Sender       string
	Recipient    string
	Cc           string
	Bcc          string
	Subject      string
	Body         string
	LabelIDs     []string
	ThreadID     string
	InternalDate string
	Raw          string
	FilePaths    []string
}

// ListOptions are the common list-call parameters.
type ListOptions struct {
	Query            string
	LabelIDs         []string
	IncludeSpamTrash bool
	MaxResults       int64
	PageToken        string
}

// MessageService defines message operations.
type MessageService interface {
	Send(ctx context.Context, userID string, in MessageInput) (*gmail.Message, error)
	Import(ctx context.Context, userID string, in MessageInput) (*gmail.Message, error)
	Insert(ctx context.Context, userID string, in MessageInput, deleted bool) (*gmail.Message, error)
	Get(ctx context.Context, userID, messageID string) (*gmail.Message, error)
	List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListMessagesResponse, error)
	Modify(ctx context.Context, userID, messageID string, addLabelIDs, removeLabelIDs []string) (*gmail.Message, error)
	Trash(ctx context.Context, userID, messageID string) (*gmail.Message, error)
	Untrash(ctx context.Context, userID, messageID string) (*gmail.Message, error)
	Delete(ctx context.Context, userID, messageID string) error
	BatchModify(ctx context.Context, userID string, req *gmail.BatchModifyMessagesRequest) error
	BatchDelete(ctx context.Context, userID string, req *gmail.BatchDeleteMessagesRequest) error
	GetAttachment(ctx context.Context, userID, messageID, attachmentID string) (*gmail.MessagePartBody, error)
}

// DraftService defines draft operations.
type DraftService interface {
	Create(ctx context.Context, userID string, in MessageInput) (*gmail.Draft, error)
	Update(ctx context.Context, userID, draftID string, in MessageInput) (*gmail.Draft, error)
	Get(ctx context.Context, userID, draftID string) (*gmail.Draft, error)
	List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListDraftsResponse, error)
	Delete(ctx context.Context, userID, draftID string) error
	Send(ctx context.Context, userID, draftID string) (*gmail.Message, error)
}

// ThreadService defines thread operations.
type ThreadService interface {
	Get(ctx context.Context, userID, threadID string) (*gmail.Thread, error)
	List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListThreadsResponse, error)
	Modify(ctx context.Context, userID, threadID string, addLabelIDs, removeLabelIDs []string) (*gmail.Thread, error)
	Trash(ctx context.Context, userID, threadID string) (*gmail.Thread, error)
	Untrash(ctx context.Context, userID, threadID string) (*gmail.Thread, error)
	Delete(ctx context.Context, userID, threadID string) error
}

// LabelService defines label CRUD.
type LabelService interface {
	Create(ctx context.Context, userID string, label *gmail.Label) (*gmail.Label, error)
	Update(ctx context.Context, userID, labelID string, label *gmail.Label) (*gmail.Label, error)
	Patch(ctx context.Context, userID, labelID string, label *gmail.Label) (*gmail.Label, error)
	Get(ctx context.Context, userID, labelID string) (*gmail.Label, error)
	List(ctx context.Context, userID string) (*gmail.ListLabelsResponse, error)
	Delete(ctx context.Context, userID, labelID string) error
}

// ProfileService defines profile, watch and history operations.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*gmail.Profile, error)
	Watch(ctx context.Context, userID string, req *gmail.WatchRequest) (*gmail.WatchResponse, error)
	Stop(ctx context.Context, userID string) error
	ListHistory(ctx context.Context, userID string, opts HistoryOptions) (*gmail.ListHistoryResponse, error)
}

// HistoryOptions are the history.list parameters.
type HistoryOptions struct {
	StartHistoryID string
	LabelID        string
	HistoryTypes   []string
	MaxResults     int64
	PageToken      string
}

// SettingsService defines the per-user settings surface, including
// send-as aliases and their S/MIME certificates.
type SettingsService interface {
	GetImap(ctx context.Context, userID string) (*gmail.ImapSettings, error)
	UpdateImap(ctx context.Context, userID string, s *gmail.ImapSettings) (*gmail.ImapSettings, error)
	GetPop(ctx context.Context, userID string) (*gmail.PopSettings, error)
	UpdatePop(ctx context.Context, userID string, s *gmail.PopSettings) (*gmail.PopSettings, error)
	GetVacation(ctx context.Context, userID string) (*gmail.VacationSettings, error)
	UpdateVacation(ctx context.Context, userID string, s *gmail.VacationSettings) (*gmail.VacationSettings, error)
	GetLanguage(ctx context.Context, userID string) (*gmail.LanguageSettings, error)
	UpdateLanguage(ctx context.Context, userID string, s *gmail.LanguageSettings) (*gmail.LanguageSettings, error)
	GetAutoForwarding(ctx context.Context, userID string) (*gmail.AutoForwarding, error)
	UpdateAutoForwarding(ctx context.Context, userID string, s *gmail.AutoForwarding) (*gmail.AutoForwarding, error)

	ListSendAs(ctx context.Context, userID string) (*gmail.ListSendAsResponse, error)
	GetSendAs(ctx context.Context, userID, sendAsEmail string) (*gmail.SendAs, error)
	CreateSendAs(ctx context.Context, userID string, s *gmail.SendAs) (*gmail.SendAs, error)
	UpdateSendAs(ctx context.Context, userID, sendAsEmail string, s *gmail.SendAs) (*gmail.SendAs, error)
	PatchSendAs(ctx context.Context, userID, sendAsEmail string, s *gmail.SendAs) (*gmail.SendAs, error)
	DeleteSendAs(ctx context.Context, userID, sendAsEmail string) error
	VerifySendAs(ctx context.Context, userID, sendAsEmail string) error

	ListSmime(ctx context.Context, userID, sendAsEmail string) (*gmail.ListSmimeInfoResponse, error)
	GetSmime(ctx context.Context, userID, sendAsEmail, id string) (*gmail.SmimeInfo, error)
	InsertSmime(ctx context.Context, userID, sendAsEmail string, s *gmail.SmimeInfo) (*gmail.SmimeInfo, error)
	UpdateSmime(ctx context.Context, userID, sendAsEmail, id string, s *gmail.SmimeInfo) (*gmail.SmimeInfo, error)
	DeleteSmime(ctx context.Context, userID, sendAsEmail, id string) error
	SetDefaultSmime(ctx context.Context, userID, sendAsEmail, id string) error
}

// deps is the shared backing state every service implementation holds.
type deps struct {
	store  *store.Store
	labels *labels.Manager
	engine *search.Engine
	index  Indexer
	log    zerolog.Logger
}

// Registry bundles the service implementations over one store.
type Registry struct {
	Messages MessageService
	Drafts   DraftService
	Threads  ThreadService
	Labels   LabelService
	Profile  ProfileService
	Settings SettingsService

	d *deps
}

// New wires the service registry. index may be nil; the engine then
// evaluates keyword predicates by direct scan.
func New(s *store.Store, engine *search.Engine, index Indexer, logger zerolog.Logger) *Registry {
	d := &deps{
		store:  s,
		labels: labels.NewManager(s),
		engine: engine,
		index:  index,
		log:    logger,
	}
	return &Registry{
		Messages: &MessageServiceImpl{d},
		Drafts:   &DraftServiceImpl{d},
		Threads:  &ThreadServiceImpl{d},
		Labels:   &LabelServiceImpl{d},
		Profile:  &ProfileServiceImpl{d},
		Settings: &SettingsServiceImpl{d},
		d:        d,
	}
}

// Reindex rebuilds the search index from the current store contents,
// walking every user's messages and draft-embedded messages. Run it
// after a snapshot restore: the index on disk knows nothing about the
// restored mail, and an index that is merely empty (not erroring)
// would otherwise hide it from keyword queries.
func (r *Registry) Reindex(ctx context.Context) error {
	if r.d.index == nil {
		return nil
	}
	r.d.store.RLock()
	defer r.d.store.RUnlock()
	for key, u := range r.d.store.Users() {
		for id, m := range u.Messages {
			if err := r.d.index.IndexMessage(ctx, key, search.ResourceMessage, id, m); err != nil {
				return fmt.Errorf("reindex message %s for %s: %w", id, key, err)
			}
		}
		for id, d := range u.Drafts {
			if d.Message == nil {
				continue
			}
			if err := r.d.index.IndexMessage(ctx, key, search.ResourceDraft, id, d.Message); err != nil {
				return fmt.Errorf("reindex draft %s for %s: %w", id, key, err)
			}
		}
	}
	return nil
}

// VerifyCounts runs the count verifier over the whole store, repairing
// stored counts when applyChanges is set.
func (r *Registry) VerifyCounts(applyChanges bool) (*labels.Report, error) {
	r.d.store.Lock()
	defer r.d.store.Unlock()
	return labels.Verify(r.d.store, applyChanges)
}

// resolveUser maps "me", a primary key or an email address to the
// canonical user. Caller must hold the lock.
func (d *deps) resolveUser(userID string) (string, *store.User, error) {
	key, err := d.store.EnsureUser(userID)
	if err != nil {
		return "", nil, ErrUserNotFound
	}
	return key, d.store.User(key), nil
}

// indexMessage pushes a message's text into the search index. Index
// trouble is logged, never surfaced: queries degrade to scans.
func (d *deps) indexMessage(ctx context.Context, userID, resourceType, resourceID string, m *store.Message) {
	if d.index == nil {
		return
	}
	if err := d.index.IndexMessage(ctx, userID, resourceType, resourceID, m); err != nil {
		d.log.Warn().Err(err).Str("resource", resourceID).Msg("failed to index message")
	}
}

func (d *deps) dropIndex(ctx context.Context, userID, resourceType, resourceID string) {
	if d.index == nil {
		return
	}
	if err := d.index.DeleteResource(ctx, userID, resourceType, resourceID); err != nil {
		d.log.Warn().Err(err).Str("resource", resourceID).Msg("failed to drop index rows")
	}
}
