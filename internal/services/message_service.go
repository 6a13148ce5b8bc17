package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/labels"
	"github.com/mailsim/gmailsim/internal/mimeutil"
	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

// MessageServiceImpl implements MessageService over the shared store.
type MessageServiceImpl struct {
	*deps
}

func (d *deps) now() time.Time {
	if d.engine != nil && d.engine.Now != nil {
		return d.engine.Now()
	}
	return time.Now()
}

// canonicalLabels maps referenced label IDs to their storage form
// (system labels uppercase, user labels verbatim) and drops duplicates
// and empties.
func canonicalLabels(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := labels.Canonical(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// syncRead keeps the isRead flag and the UNREAD label agreeing after
// every label mutation.
func syncRead(m *store.Message) {
	m.IsRead = !m.HasLabel("UNREAD")
}

// buildStoreMessage materializes a store.Message from either input
// shape. Attachments are inserted into the global table and replaced
// by references on the parts. The message has no ID or thread yet.
func (d *deps) buildStoreMessage(in MessageInput) (*store.Message, error) {
	m := &store.Message{
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Cc:        in.Cc,
		Bcc:       in.Bcc,
		Subject:   in.Subject,
		Body:      in.Body,
		LabelIDs:  canonicalLabels(in.LabelIDs),
	}

	if in.Raw != "" {
		parsed, err := mimeutil.ParseRaw(in.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRaw, err)
		}
		m.Raw = in.Raw
		m.Sender = firstNonEmpty(parsed.Sender, in.Sender)
		m.Recipient = firstNonEmpty(parsed.Recipient, in.Recipient)
		m.Cc = firstNonEmpty(parsed.Cc, in.Cc)
		m.Bcc = firstNonEmpty(parsed.Bcc, in.Bcc)
		m.Subject = firstNonEmpty(parsed.Subject, in.Subject)
		m.Body = firstNonEmpty(parsed.Body, in.Body)
		m.Payload = parsed.Payload
		for _, att := range parsed.Attachments {
			d.store.PutAttachment(att)
		}
	} else if len(in.FilePaths) > 0 {
		var files []mimeutil.FileAttachment
		m.Payload = &store.Payload{MimeType: "multipart/mixed"}
		for _, path := range in.FilePaths {
			fa, err := mimeutil.ReadFileAttachment(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			files = append(files, fa)
			att := mimeutil.AttachmentRecord(fa)
			d.store.PutAttachment(att)
			m.Payload.Parts = append(m.Payload.Parts, &store.Part{
				MimeType: att.MimeType,
				Filename: att.Filename,
				Body: store.PartBody{
					AttachmentID: att.AttachmentID,
					Size:         att.FileSize,
				},
			})
		}
		m.Raw = mimeutil.BuildRaw(m.Recipient, m.Subject, m.Body, m.Sender, m.Cc, m.Bcc, files)
	}

	m.Snippet = mimeutil.Snippet(m.Body)
	syncRead(m)
	return m, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// attachToThread places a message in its thread, creating the thread
// when the supplied ID is empty or unknown.
func (d *deps) attachToThread(u *store.User, m *store.Message, threadID string) {
	if threadID != "" {
		if t, ok := u.Threads[threadID]; ok {
			m.ThreadID = t.ID
			t.MessageIDs = append(t.MessageIDs, m.ID)
			labels.SyncThread(u, t)
			return
		}
	}
	t := &store.Thread{ID: d.store.NextID(store.CounterThread)}
	m.ThreadID = t.ID
	t.MessageIDs = []string{m.ID}
	u.Threads[t.ID] = t
	labels.SyncThread(u, t)
}

// detachFromThread removes a message from its thread, deleting the
// thread when it becomes empty.
func detachFromThread(u *store.User, m *store.Message) {
	t, ok := u.Threads[m.ThreadID]
	if !ok {
		return
	}
	members := t.MessageIDs[:0]
	for _, id := range t.MessageIDs {
		if id != m.ID {
			members = append(members, id)
		}
	}
	t.MessageIDs = members
	if len(t.MessageIDs) == 0 {
		delete(u.Threads, t.ID)
		return
	}
	labels.SyncThread(u, t)
}

// persist writes a built message into the user's mailbox, refreshes
// derived state and records history. Caller must hold the lock.
func (d *deps) persist(ctx context.Context, key string, u *store.User, m *store.Message, threadID string) {
	m.ID = d.store.NextID(store.CounterMessage)
	u.Messages[m.ID] = m
	d.attachToThread(u, m, threadID)
	d.labels.Ensure(u, m.LabelIDs)
	d.labels.Recount(u)
	d.store.AppendHistory(u, &store.HistoryEntry{
		Type:         store.HistoryMessageAdded,
		MessageIDs:   []string{m.ID},
		InternalDate: m.InternalDate,
	})
	d.indexMessage(ctx, key, search.ResourceMessage, m.ID, m)
}

// Send stores an outgoing message: internalDate is stamped now and the
// SENT label added.
func (s *MessageServiceImpl) Send(ctx context.Context, userID string, in MessageInput) (*gmail.Message, error) {
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
	m.InternalDate = strconv.FormatInt(s.now().UnixMilli(), 10)
	m.AddLabel("SENT")
	s.persist(ctx, key, u, m, in.ThreadID)
	s.log.Debug().Str("user", key).Str("message", m.ID).Msg("message sent")
	return toGmailMessage(u, m), nil
}

// Import stores a received message preserving the supplied
// internalDate; no SENT label is added.
func (s *MessageServiceImpl) Import(ctx context.Context, userID string, in MessageInput) (*gmail.Message, error) {
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
	m.InternalDate = in.InternalDate
	if m.InternalDate == "" {
		m.InternalDate = strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	s.persist(ctx, key, u, m, in.ThreadID)
	return toGmailMessage(u, m), nil
}

// Insert writes a message directly; deleted routes it to TRASH.
func (s *MessageServiceImpl) Insert(ctx context.Context, userID string, in MessageInput, deleted bool) (*gmail.Message, error) {
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
	m.InternalDate = in.InternalDate
	if m.InternalDate == "" {
		m.InternalDate = strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	if deleted {
		m.AddLabel("TRASH")
	}
	s.persist(ctx, key, u, m, in.ThreadID)
	return toGmailMessage(u, m), nil
}

// Get returns one message.
func (s *MessageServiceImpl) Get(ctx context.Context, userID, messageID string) (*gmail.Message, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	m, ok := u.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	return toGmailMessage(u, m), nil
}

// validateListOptions enforces the list-call pre-conditions: a
// whitespace-only query and a negative maxResults are rejected before
// evaluation; an empty query is fine and means "no predicate".
func validateListOptions(opts ListOptions) error {
	if opts.Query != "" && strings.TrimSpace(opts.Query) == "" {
		return fmt.Errorf("%w: query must not be whitespace only", ErrInvalidInput)
	}
	if opts.MaxResults < 0 {
		return fmt.Errorf("%w: maxResults must be non-negative", ErrInvalidInput)
	}
	return nil
}

// candidateMessages applies the spam/trash and labelIds parameter
// filters that compose with the query result by intersection.
func candidateMessages(all map[string]*store.Message, opts ListOptions) map[string]*store.Message {
	wanted := make(map[string]bool, len(opts.LabelIDs))
	for _, id := range opts.LabelIDs {
		wanted[strings.ToUpper(id)] = true
	}
	out := make(map[string]*store.Message, len(all))
	for id, m := range all {
		if !opts.IncludeSpamTrash && (m.HasLabel("TRASH") || m.HasLabel("SPAM")) {
			continue
		}
		if len(wanted) > 0 {
			hit := false
			for _, l := range m.LabelIDs {
				if wanted[strings.ToUpper(l)] {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		out[id] = m
	}
	return out
}

// List evaluates a query over the mailbox and returns one page of
// matching messages, newest first.
func (s *MessageServiceImpl) List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListMessagesResponse, error) {
	if err := validateListOptions(opts); err != nil {
		return nil, err
	}
	s.store.RLock()
	defer s.store.RUnlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	candidates := candidateMessages(u.Messages, opts)
	result, err := s.engine.Evaluate(ctx, opts.Query, search.Input{
		UserID:     key,
		Resource:   search.ResourceMessage,
		Candidates: candidates,
		All:        u.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	ids := search.SortIDs(result, u.Messages)
	page, next := search.Paginate(ids, opts.MaxResults, opts.PageToken)

	resp := &gmail.ListMessagesResponse{
		NextPageToken:      next,
		ResultSizeEstimate: int64(len(ids)),
	}
	for _, id := range page {
		resp.Messages = append(resp.Messages, toGmailMessage(u, u.Messages[id]))
	}
	return resp, nil
}

// applyLabelChanges performs the set arithmetic of a modify call and
// refreshes every piece of derived state in the same locked step.
func (s *MessageServiceImpl) applyLabelChanges(ctx context.Context, key string, u *store.User, m *store.Message, add, remove []string) {
	add = canonicalLabels(add)
	remove = canonicalLabels(remove)
	s.labels.Ensure(u, add)
	for _, id := range add {
		m.AddLabel(id)
	}
	for _, id := range remove {
		m.RemoveLabel(id)
	}
	syncRead(m)
	if t, ok := u.Threads[m.ThreadID]; ok {
		labels.SyncThread(u, t)
	}
	s.labels.Recount(u)
	if len(add) > 0 {
		s.store.AppendHistory(u, &store.HistoryEntry{
			Type:       store.HistoryLabelAdded,
			MessageIDs: []string{m.ID},
			LabelIDs:   add,
		})
	}
	if len(remove) > 0 {
		s.store.AppendHistory(u, &store.HistoryEntry{
			Type:       store.HistoryLabelRemoved,
			MessageIDs: []string{m.ID},
			LabelIDs:   remove,
		})
	}
	s.indexMessage(ctx, key, search.ResourceMessage, m.ID, m)
}

// Modify adds and removes labels on one message.
func (s *MessageServiceImpl) Modify(ctx context.Context, userID, messageID string, addLabelIDs, removeLabelIDs []string) (*gmail.Message, error) {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	m, ok := u.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	s.applyLabelChanges(ctx, key, u, m, addLabelIDs, removeLabelIDs)
	return toGmailMessage(u, m), nil
}

// Trash adds the TRASH label; already-trashed messages pass through.
func (s *MessageServiceImpl) Trash(ctx context.Context, userID, messageID string) (*gmail.Message, error) {
	return s.Modify(ctx, userID, messageID, []string{"TRASH"}, nil)
}

// Untrash removes the TRASH label; idempotent.
func (s *MessageServiceImpl) Untrash(ctx context.Context, userID, messageID string) (*gmail.Message, error) {
	return s.Modify(ctx, userID, messageID, nil, []string{"TRASH"})
}

// deleteMessage hard-deletes one message: thread detach, history,
// index and attachment GC. Caller must hold the lock.
func (s *MessageServiceImpl) deleteMessage(ctx context.Context, key string, u *store.User, m *store.Message) {
	delete(u.Messages, m.ID)
	detachFromThread(u, m)
	s.labels.Recount(u)
	s.store.AppendHistory(u, &store.HistoryEntry{
		Type:       store.HistoryMessageDeleted,
		MessageIDs: []string{m.ID},
	})
	s.dropIndex(ctx, key, search.ResourceMessage, m.ID)
	s.store.GCAttachments()
}

// Delete permanently removes a message.
func (s *MessageServiceImpl) Delete(ctx context.Context, userID, messageID string) error {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	m, ok := u.Messages[messageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	s.deleteMessage(ctx, key, u, m)
	return nil
}

// BatchModify applies one label change to many messages. Unknown IDs
// are skipped, matching the lenient batch semantics of the real API.
func (s *MessageServiceImpl) BatchModify(ctx context.Context, userID string, req *gmail.BatchModifyMessagesRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	for _, id := range req.Ids {
		if m, ok := u.Messages[id]; ok {
			s.applyLabelChanges(ctx, key, u, m, req.AddLabelIds, req.RemoveLabelIds)
		}
	}
	return nil
}

// BatchDelete hard-deletes many messages, skipping unknown IDs.
func (s *MessageServiceImpl) BatchDelete(ctx context.Context, userID string, req *gmail.BatchDeleteMessagesRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	for _, id := range req.Ids {
		if m, ok := u.Messages[id]; ok {
			s.deleteMessage(ctx, key, u, m)
		}
	}
	return nil
}

// GetAttachment returns attachment data referenced by one of the
// message's parts. The message must actually cite the attachment.
func (s *MessageServiceImpl) GetAttachment(ctx context.Context, userID, messageID, attachmentID string) (*gmail.MessagePartBody, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	m, ok := u.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	referenced := false
	if m.Payload != nil {
		for _, p := range m.Payload.Parts {
			if p.Body.AttachmentID == attachmentID {
				referenced = true
				break
			}
		}
	}
	att := s.store.Attachment(attachmentID)
	if !referenced || att == nil {
		return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, attachmentID)
	}
	return &gmail.MessagePartBody{
		AttachmentId: att.AttachmentID,
		Data:         att.Data,
		Size:         att.FileSize,
	}, nil
}
