package services

import (
	"context"
	"fmt"
	"strconv"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

// DraftServiceImpl implements DraftService over the shared store.
type DraftServiceImpl struct {
	*deps
}

// Create stores a new draft. The embedded message gets its own message
// ID up front so the draft and the later sent message share identity,
// and carries DRAFT for as long as the draft exists.
func (s *DraftServiceImpl) Create(ctx context.Context, userID string, in MessageInput) (*gmail.Draft, error) {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	m, err := s.buildStoreMessage(in)
	if err != nil {
		return nil, err
	}
	m.ID = s.store.NextID(store.CounterMessage)
	m.AddLabel("DRAFT")
	if m.Sender == "" {
		m.Sender = u.Profile.EmailAddress
	}

	d := &store.Draft{ID: s.store.NextID(store.CounterDraft), Message: m}
	u.Drafts[d.ID] = d
	s.labels.Ensure(u, m.LabelIDs)
	s.labels.Recount(u)
	s.indexMessage(ctx, key, search.ResourceDraft, d.ID, m)
	s.log.Debug().Str("user", key).Str("draft", d.ID).Msg("draft created")
	return toGmailDraft(u, d), nil
}

// Update replaces the draft's embedded message content, keeping both
// the draft ID and the message ID stable.
func (s *DraftServiceImpl) Update(ctx context.Context, userID, draftID string, in MessageInput) (*gmail.Draft, error) {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	d, ok := u.Drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	m, err := s.buildStoreMessage(in)
	if err != nil {
		return nil, err
	}
	m.ID = d.Message.ID
	m.AddLabel("DRAFT")
	if m.Sender == "" {
		m.Sender = u.Profile.EmailAddress
	}
	d.Message = m

	s.labels.Ensure(u, m.LabelIDs)
	s.labels.Recount(u)
	s.store.GCAttachments()
	s.indexMessage(ctx, key, search.ResourceDraft, d.ID, m)
	return toGmailDraft(u, d), nil
}

// Get returns one draft.
func (s *DraftServiceImpl) Get(ctx context.Context, userID, draftID string) (*gmail.Draft, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	d, ok := u.Drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return toGmailDraft(u, d), nil
}

// List evaluates a query over draft-embedded messages and returns one
// page of drafts.
func (s *DraftServiceImpl) List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListDraftsResponse, error) {
	if err := validateListOptions(opts); err != nil {
		return nil, err
	}
	s.store.RLock()
	defer s.store.RUnlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}

	// The evaluator reads draft-embedded messages keyed by draft ID.
	embedded := make(map[string]*store.Message, len(u.Drafts))
	for id, d := range u.Drafts {
		if d.Message != nil {
			embedded[id] = d.Message
		}
	}
	candidates := candidateMessages(embedded, opts)
	result, err := s.engine.Evaluate(ctx, opts.Query, search.Input{
		UserID:     key,
		Resource:   search.ResourceDraft,
		Candidates: candidates,
		All:        embedded,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	ids := search.SortIDs(result, embedded)
	page, next := search.Paginate(ids, opts.MaxResults, opts.PageToken)

	resp := &gmail.ListDraftsResponse{
		NextPageToken:      next,
		ResultSizeEstimate: int64(len(ids)),
	}
	for _, id := range page {
		resp.Drafts = append(resp.Drafts, toGmailDraft(u, u.Drafts[id]))
	}
	return resp, nil
}

// Delete removes a draft without sending it.
func (s *DraftServiceImpl) Delete(ctx context.Context, userID, draftID string) error {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	_, ok := u.Drafts[draftID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	delete(u.Drafts, draftID)
	s.labels.Recount(u)
	s.dropIndex(ctx, key, search.ResourceDraft, draftID)
	s.store.GCAttachments()
	return nil
}

// Send promotes the draft to a regular message in one atomic step: the
// draft disappears, its embedded message materializes with SENT added
// and DRAFT removed.
func (s *DraftServiceImpl) Send(ctx context.Context, userID, draftID string) (*gmail.Message, error) {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	d, ok := u.Drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	m := d.Message
	if m == nil {
		return nil, fmt.Errorf("%w: draft %s has no message", ErrConflict, draftID)
	}
	delete(u.Drafts, draftID)
	s.dropIndex(ctx, key, search.ResourceDraft, draftID)

	m.RemoveLabel("DRAFT")
	m.AddLabel("SENT")
	syncRead(m)
	m.InternalDate = strconv.FormatInt(s.now().UnixMilli(), 10)

	u.Messages[m.ID] = m
	s.attachToThread(u, m, m.ThreadID)
	s.labels.Ensure(u, m.LabelIDs)
	s.labels.Recount(u)
	s.store.AppendHistory(u, &store.HistoryEntry{
		Type:         store.HistoryMessageAdded,
		MessageIDs:   []string{m.ID},
		InternalDate: m.InternalDate,
	})
	s.indexMessage(ctx, key, search.ResourceMessage, m.ID, m)
	s.log.Debug().Str("user", key).Str("draft", draftID).Str("message", m.ID).Msg("draft sent")
	return toGmailMessage(u, m), nil
}
