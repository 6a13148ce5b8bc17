package services

import (
	"context"
	"fmt"
	"sort"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/search"
)

// ThreadServiceImpl implements ThreadService over the shared store.
// Thread mutations fan out to every member message so label counts and
// history stay attributable to messages.
type ThreadServiceImpl struct {
	*deps
}

// Get returns one thread with its messages, oldest first.
func (s *ThreadServiceImpl) Get(ctx context.Context, userID, threadID string) (*gmail.Thread, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	t, ok := u.Threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	return toGmailThread(u, t, true), nil
}

// List returns threads whose member messages match the query, newest
// activity first.
func (s *ThreadServiceImpl) List(ctx context.Context, userID string, opts ListOptions) (*gmail.ListThreadsResponse, error) {
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

	// A thread matches when any member message does. Order by newest
	// member activity, ties by thread ID descending.
	latest := make(map[string]int64)
	for id := range result {
		m := u.Messages[id]
		if m == nil {
			continue
		}
		when := internalDateInt(m.InternalDate)
		if when > latest[m.ThreadID] || latest[m.ThreadID] == 0 {
			latest[m.ThreadID] = when
		}
	}
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if latest[ids[i]] != latest[ids[j]] {
			return latest[ids[i]] > latest[ids[j]]
		}
		return ids[i] > ids[j]
	})
	page, next := search.Paginate(ids, opts.MaxResults, opts.PageToken)

	resp := &gmail.ListThreadsResponse{
		NextPageToken:      next,
		ResultSizeEstimate: int64(len(ids)),
	}
	for _, id := range page {
		resp.Threads = append(resp.Threads, toGmailThread(u, u.Threads[id], false))
	}
	return resp, nil
}

// Modify applies a label change to every message in the thread.
func (s *ThreadServiceImpl) Modify(ctx context.Context, userID, threadID string, addLabelIDs, removeLabelIDs []string) (*gmail.Thread, error) {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	t, ok := u.Threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	msgs := &MessageServiceImpl{s.deps}
	for _, mid := range t.MessageIDs {
		if m, ok := u.Messages[mid]; ok {
			msgs.applyLabelChanges(ctx, key, u, m, addLabelIDs, removeLabelIDs)
		}
	}
	return toGmailThread(u, t, true), nil
}

// Trash moves every thread member to TRASH; idempotent.
func (s *ThreadServiceImpl) Trash(ctx context.Context, userID, threadID string) (*gmail.Thread, error) {
	return s.Modify(ctx, userID, threadID, []string{"TRASH"}, nil)
}

// Untrash removes TRASH from every thread member; idempotent.
func (s *ThreadServiceImpl) Untrash(ctx context.Context, userID, threadID string) (*gmail.Thread, error) {
	return s.Modify(ctx, userID, threadID, nil, []string{"TRASH"})
}

// Delete hard-deletes the thread and all its messages.
func (s *ThreadServiceImpl) Delete(ctx context.Context, userID, threadID string) error {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	t, ok := u.Threads[threadID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	msgs := &MessageServiceImpl{s.deps}
	for _, mid := range append([]string(nil), t.MessageIDs...) {
		if m, ok := u.Messages[mid]; ok {
			msgs.deleteMessage(ctx, key, u, m)
		}
	}
	// deleteMessage drops the thread with its last member; cover the
	// case of members that no longer resolve.
	delete(u.Threads, threadID)
	s.labels.Recount(u)
	return nil
}
