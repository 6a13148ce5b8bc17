package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/labels"
	"github.com/mailsim/gmailsim/internal/store"
)

// LabelServiceImpl implements LabelService. User labels are case
// preserving with exact lookup; system labels are a fixed uppercase
// set that cannot be renamed or deleted.
type LabelServiceImpl struct {
	*deps
}

// Create adds a user label. The name must be non-empty and unused.
func (s *LabelServiceImpl) Create(ctx context.Context, userID string, label *gmail.Label) (*gmail.Label, error) {
	if label == nil || strings.TrimSpace(label.Name) == "" {
		return nil, fmt.Errorf("%w: label name is required", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	for _, existing := range u.Labels {
		if existing.Name == label.Name {
			return nil, fmt.Errorf("%w: label name %q already exists", ErrConflict, label.Name)
		}
	}

	l := &store.Label{
		ID:                    fmt.Sprintf("Label_%d", s.store.NextCounter(store.CounterLabel)),
		Name:                  label.Name,
		Type:                  "user",
		LabelListVisibility:   defaultVisibility(label.LabelListVisibility, "labelShow"),
		MessageListVisibility: defaultVisibility(label.MessageListVisibility, "show"),
	}
	if label.Color != nil {
		l.Color = &store.LabelColor{
			TextColor:       label.Color.TextColor,
			BackgroundColor: label.Color.BackgroundColor,
		}
	}
	u.Labels[l.ID] = l
	s.log.Debug().Str("user", key).Str("label", l.ID).Msg("label created")
	return toGmailLabel(l), nil
}

func defaultVisibility(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (s *LabelServiceImpl) mutable(u *store.User, labelID string) (*store.Label, error) {
	l, ok := u.Labels[labelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLabelNotFound, labelID)
	}
	if l.Type == "system" {
		return nil, fmt.Errorf("%w: system label %s cannot be modified", ErrInvalidInput, labelID)
	}
	return l, nil
}

// Update replaces a user label's mutable fields.
func (s *LabelServiceImpl) Update(ctx context.Context, userID, labelID string, label *gmail.Label) (*gmail.Label, error) {
	if label == nil || strings.TrimSpace(label.Name) == "" {
		return nil, fmt.Errorf("%w: label name is required", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	l, err := s.mutable(u, labelID)
	if err != nil {
		return nil, err
	}
	l.Name = label.Name
	l.LabelListVisibility = defaultVisibility(label.LabelListVisibility, "labelShow")
	l.MessageListVisibility = defaultVisibility(label.MessageListVisibility, "show")
	l.Color = nil
	if label.Color != nil {
		l.Color = &store.LabelColor{
			TextColor:       label.Color.TextColor,
			BackgroundColor: label.Color.BackgroundColor,
		}
	}
	return toGmailLabel(l), nil
}

// Patch updates only the fields the caller supplied.
func (s *LabelServiceImpl) Patch(ctx context.Context, userID, labelID string, label *gmail.Label) (*gmail.Label, error) {
	if label == nil {
		return nil, fmt.Errorf("%w: missing request body", ErrInvalidInput)
	}
	s.store.Lock()
	defer s.store.Unlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	l, err := s.mutable(u, labelID)
	if err != nil {
		return nil, err
	}
	if label.Name != "" {
		l.Name = label.Name
	}
	if label.LabelListVisibility != "" {
		l.LabelListVisibility = label.LabelListVisibility
	}
	if label.MessageListVisibility != "" {
		l.MessageListVisibility = label.MessageListVisibility
	}
	if label.Color != nil {
		l.Color = &store.LabelColor{
			TextColor:       label.Color.TextColor,
			BackgroundColor: label.Color.BackgroundColor,
		}
	}
	return toGmailLabel(l), nil
}

// Get returns one label with its current counts.
func (s *LabelServiceImpl) Get(ctx context.Context, userID, labelID string) (*gmail.Label, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	l, ok := u.Labels[labelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLabelNotFound, labelID)
	}
	return toGmailLabel(l), nil
}

// List returns all labels, system labels first, each group sorted by ID.
func (s *LabelServiceImpl) List(ctx context.Context, userID string) (*gmail.ListLabelsResponse, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	_, u, err := s.resolveUser(userID)
	if err != nil {
		return nil, err
	}
	resp := &gmail.ListLabelsResponse{}
	for _, l := range u.Labels {
		resp.Labels = append(resp.Labels, toGmailLabel(l))
	}
	sort.Slice(resp.Labels, func(i, j int) bool {
		a, b := resp.Labels[i], resp.Labels[j]
		if a.Type != b.Type {
			return a.Type == "system"
		}
		return a.Id < b.Id
	})
	return resp, nil
}

// Delete removes a user label and cascades the removal through every
// message and draft that carries it.
func (s *LabelServiceImpl) Delete(ctx context.Context, userID, labelID string) error {
	s.store.Lock()
	defer s.store.Unlock()

	key, u, err := s.resolveUser(userID)
	if err != nil {
		return err
	}
	if _, err := s.mutable(u, labelID); err != nil {
		return err
	}
	delete(u.Labels, labelID)

	var touched []string
	for _, m := range u.Messages {
		if m.HasLabel(labelID) {
			m.RemoveLabel(labelID)
			syncRead(m)
			touched = append(touched, m.ID)
		}
	}
	for _, d := range u.Drafts {
		if d.Message != nil && d.Message.HasLabel(labelID) {
			d.Message.RemoveLabel(labelID)
		}
	}
	for _, t := range u.Threads {
		labels.SyncThread(u, t)
	}
	s.labels.Recount(u)
	if len(touched) > 0 {
		sort.Strings(touched)
		s.store.AppendHistory(u, &store.HistoryEntry{
			Type:       store.HistoryLabelRemoved,
			MessageIDs: touched,
			LabelIDs:   []string{labelID},
		})
	}
	s.log.Debug().Str("user", key).Str("label", labelID).Int("messages", len(touched)).Msg("label deleted")
	return nil
}
