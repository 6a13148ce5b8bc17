package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/store"
)

// ProfileServiceImpl implements profile, watch and history listing.
type ProfileServiceImpl struct {
	*deps
}

// GetProfile returns the user's summary.
func (s *ProfileServiceImpl) GetProfile(ctx context.Context, userID string) (*gmail.Profile, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	return toGmailProfile(u), nil
}

const watchWindow = 7 * 24 * time.Hour

// Watch registers a push-notification subscription. The simulator
// stores the configuration and never delivers notifications.
func (s *ProfileServiceImpl) Watch(ctx context.Context, userID string, req *gmail.WatchRequest) (*gmail.WatchResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	expiration := s.now().Add(watchWindow).UnixMilli()
	u.Watch = &store.Watch{
		TopicName:         req.TopicName,
		LabelIDs:          append([]string(nil), req.LabelIds...),
		LabelFilterAction: req.LabelFilterAction,
		Expiration:        strconv.FormatInt(expiration, 10),
		HistoryID:         s.store.HistoryID(u),
	}
	return &gmail.WatchResponse{
		HistoryId:  historyIDUint(u.Profile.HistoryID),
		Expiration: expiration,
	}, nil
}

// Stop removes the watch subscription; stopping without one is a no-op.
func (s *ProfileServiceImpl) Stop(ctx context.Context, userID string) error {
	s.store.Lock()
	defer s.store.Unlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	u.Watch = nil
	return nil
}

// ListHistory returns history records after startHistoryId, optionally
// narrowed by label and record type, one page at a time in mutation
// order.
func (s *ProfileServiceImpl) ListHistory(ctx context.Context, userID string, opts HistoryOptions) (*gmail.ListHistoryResponse, error) {
	if opts.MaxResults < 0 {
		return nil, fmt.Errorf("%w: maxResults must be non-negative", ErrInvalidInput)
	}
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}

	var start uint64
	if opts.StartHistoryID != "" {
		start, err = strconv.ParseUint(opts.StartHistoryID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: startHistoryId must be numeric", ErrInvalidInput)
		}
	}
	types := make(map[string]bool, len(opts.HistoryTypes))
	for _, t := range opts.HistoryTypes {
		types[t] = true
	}

	var matched []*store.HistoryEntry
	for _, e := range u.History {
		id, err := strconv.ParseUint(e.ID, 10, 64)
		if err != nil || id <= start {
			continue
		}
		if len(types) > 0 && !types[e.Type] {
			continue
		}
		if opts.LabelID != "" && !historyTouchesLabel(u, e, opts.LabelID) {
			continue
		}
		matched = append(matched, e)
	}

	offset := 0
	if opts.PageToken != "" {
		if n, err := strconv.Atoi(opts.PageToken); err == nil && n > 0 {
			offset = n
		}
	}
	resp := &gmail.ListHistoryResponse{HistoryId: historyIDUint(u.Profile.HistoryID)}
	if offset >= len(matched) {
		return resp, nil
	}
	end := len(matched)
	if opts.MaxResults > 0 && offset+int(opts.MaxResults) < end {
		end = offset + int(opts.MaxResults)
	}
	for _, e := range matched[offset:end] {
		resp.History = append(resp.History, toGmailHistory(u, e))
	}
	if end < len(matched) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

// historyTouchesLabel reports whether a history record concerns the
// given label: label events name it directly, message events count
// when the referenced message carries it.
func historyTouchesLabel(u *store.User, e *store.HistoryEntry, labelID string) bool {
	for _, l := range e.LabelIDs {
		if l == labelID {
			return true
		}
	}
	for _, mid := range e.MessageIDs {
		if m, ok := u.Messages[mid]; ok && m.HasLabel(labelID) {
			return true
		}
	}
	return false
}

func toGmailHistory(u *store.User, e *store.HistoryEntry) *gmail.History {
	out := &gmail.History{Id: historyIDUint(e.ID)}
	stub := func(mid string) *gmail.Message {
		if m, ok := u.Messages[mid]; ok {
			return &gmail.Message{Id: m.ID, ThreadId: m.ThreadID, LabelIds: append([]string(nil), m.LabelIDs...)}
		}
		return &gmail.Message{Id: mid}
	}
	for _, mid := range e.MessageIDs {
		m := stub(mid)
		out.Messages = append(out.Messages, m)
		switch e.Type {
		case store.HistoryMessageAdded:
			out.MessagesAdded = append(out.MessagesAdded, &gmail.HistoryMessageAdded{Message: m})
		case store.HistoryMessageDeleted:
			out.MessagesDeleted = append(out.MessagesDeleted, &gmail.HistoryMessageDeleted{Message: m})
		case store.HistoryLabelAdded:
			out.LabelsAdded = append(out.LabelsAdded, &gmail.HistoryLabelAdded{
				Message:  m,
				LabelIds: append([]string(nil), e.LabelIDs...),
			})
		case store.HistoryLabelRemoved:
			out.LabelsRemoved = append(out.LabelsRemoved, &gmail.HistoryLabelRemoved{
				Message:  m,
				LabelIds: append([]string(nil), e.LabelIDs...),
			})
		}
	}
	return out
}
