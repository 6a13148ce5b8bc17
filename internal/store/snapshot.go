package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshot is the on-disk shape of a whole-store dump.
type snapshot struct {
	Users       map[string]*User       `json:"users"`
	Counters    map[string]int64       `json:"counters"`
	Attachments map[string]*Attachment `json:"attachments"`
}

// Save writes the whole store as a JSON document. The read lock is held
// while serializing so the snapshot is consistent.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(snapshot{
		Users:       s.users,
		Counters:    s.counters,
		Attachments: s.attachments,
	}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.log.Info().Str("path", path).Msg("snapshot saved")
	return nil
}

// Load replaces the store state with the contents of a snapshot file.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Users == nil {
		snap.Users = make(map[string]*User)
	}
	if snap.Counters == nil {
		snap.Counters = make(map[string]int64)
	}
	if snap.Attachments == nil {
		snap.Attachments = make(map[string]*Attachment)
	}
	// Backfill maps a hand-edited snapshot may omit.
	for id, u := range snap.Users {
		if u.Profile == nil {
			u.Profile = &Profile{EmailAddress: id, HistoryID: "1"}
		}
		if u.Messages == nil {
			u.Messages = make(map[string]*Message)
		}
		if u.Threads == nil {
			u.Threads = make(map[string]*Thread)
		}
		if u.Drafts == nil {
			u.Drafts = make(map[string]*Draft)
		}
		if u.Labels == nil {
			u.Labels = make(map[string]*Label)
		}
		if u.Settings == nil {
			u.Settings = defaultSettings(u.Profile.EmailAddress)
		}
	}
	s.users = snap.Users
	s.attachments = snap.Attachments
	s.counters = snap.Counters
	s.log.Info().Str("path", path).Int("users", len(s.users)).Msg("snapshot loaded")
	return nil
}
