package store

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Counter names used to mint IDs.
const (
	CounterMessage = "message"
	CounterThread  = "thread"
	CounterDraft   = "draft"
	CounterLabel   = "label"
	CounterHistory = "history"
	CounterSmime   = "smime"
)

// SystemLabels is the fixed allow-list of system label IDs, seeded for
// every new user. System labels are never deleted.
var SystemLabels = []string{
	"INBOX", "UNREAD", "IMPORTANT", "SENT", "DRAFT", "TRASH", "SPAM", "STARRED",
	"CATEGORY_PERSONAL", "CATEGORY_SOCIAL", "CATEGORY_PROMOTIONS",
	"CATEGORY_UPDATES", "CATEGORY_FORUMS", "CATEGORY_RESERVATIONS",
	"CATEGORY_PURCHASES",
}

// IsSystemLabel reports whether the (uppercase) ID is a system label.
func IsSystemLabel(id string) bool {
	for _, s := range SystemLabels {
		if s == id {
			return true
		}
	}
	return false
}

// ErrUserNotFound is returned when a user ID or email cannot be resolved.
var ErrUserNotFound = fmt.Errorf("user not found")

// Store is the in-memory mailbox state shared by all services. Users own
// their messages, threads, drafts, labels, settings and history; the
// attachment table and the counters are process-global.
//
// Concurrency: a single RWMutex serializes mutators. Services acquire the
// lock for the whole operation so every public call observes the store
// atomically; the non-locking accessors below assume the caller holds it.
type Store struct {
	mu sync.RWMutex

	users       map[string]*User
	attachments map[string]*Attachment
	counters    map[string]int64

	log zerolog.Logger
}

// New creates a Store seeded with the default "me" user.
func New(logger zerolog.Logger) *Store {
	s := &Store{log: logger}
	s.reset()
	return s
}

// Lock, Unlock, RLock, RUnlock expose operation-level locking so a
// service can keep the store consistent across a multi-step mutation.
func (s *Store) Lock()    { s.mu.Lock() }
func (s *Store) Unlock()  { s.mu.Unlock() }
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// ResetDB drops all state and restores the single "me" user with the
// standard system labels.
func (s *Store) ResetDB() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.log.Info().Msg("store reset to defaults")
}

func (s *Store) reset() {
	s.users = make(map[string]*User)
	s.attachments = make(map[string]*Attachment)
	s.counters = make(map[string]int64)
	s.users["me"] = newUser("me@example.com")
}

func newUser(email string) *User {
	u := &User{
		Profile:  &Profile{EmailAddress: email, HistoryID: "1"},
		Messages: make(map[string]*Message),
		Threads:  make(map[string]*Thread),
		Drafts:   make(map[string]*Draft),
		Labels:   make(map[string]*Label),
		Settings: defaultSettings(email),
		History:  []*HistoryEntry{},
	}
	for _, id := range SystemLabels {
		u.Labels[id] = &Label{
			ID:                    id,
			Name:                  id,
			Type:                  "system",
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}
	}
	return u
}

func defaultSettings(email string) *Settings {
	return &Settings{
		IMAP:           &ImapSettings{Enabled: false, AutoExpunge: true},
		Pop:            &PopSettings{AccessWindow: "disabled", Disposition: "leaveInInbox"},
		Vacation:       &VacationSettings{},
		Language:       &LanguageSettings{DisplayLanguage: "en"},
		AutoForwarding: &AutoForwardingSettings{},
		SendAs: map[string]*SendAs{
			email: {
				SendAsEmail:        email,
				IsPrimary:          true,
				IsDefault:          true,
				VerificationStatus: "accepted",
				SmimeInfo:          map[string]*SmimeInfo{},
			},
		},
	}
}

// EnsureUser resolves an ID, email address or the literal "me" to the
// canonical primary key. It never creates users. Caller must hold the
// lock (read or write).
func (s *Store) EnsureUser(id string) (string, error) {
	if _, ok := s.users[id]; ok {
		return id, nil
	}
	for key, u := range s.users {
		if u.Profile != nil && u.Profile.EmailAddress == id {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUserNotFound, id)
}

// ExistsUser reports whether the primary key or email resolves.
func (s *Store) ExistsUser(id string) bool {
	_, err := s.EnsureUser(id)
	return err == nil
}

// CreateUser registers a new user under the given primary key. The
// profile email defaults to the key when empty.
func (s *Store) CreateUser(id string, profile *Profile) (*User, error) {
	if _, ok := s.users[id]; ok {
		return nil, fmt.Errorf("user %q already exists", id)
	}
	email := id
	if profile != nil && profile.EmailAddress != "" {
		email = profile.EmailAddress
	}
	u := newUser(email)
	if profile != nil && profile.HistoryID != "" {
		u.Profile.HistoryID = profile.HistoryID
	}
	s.users[id] = u
	s.log.Debug().Str("user", id).Str("email", email).Msg("user created")
	return u, nil
}

// User returns the user for a primary key, or nil.
func (s *Store) User(id string) *User {
	return s.users[id]
}

// Users returns the live user map. Caller must hold the lock.
func (s *Store) Users() map[string]*User {
	return s.users
}

// HistoryID returns the user's current history ID, "1" when absent.
func (s *Store) HistoryID(u *User) string {
	if u == nil || u.Profile == nil || u.Profile.HistoryID == "" {
		return "1"
	}
	return u.Profile.HistoryID
}

// AppendHistory mints a history entry ID, appends the entry and advances
// the user's history ID in the same step so ordering matches mutations.
func (s *Store) AppendHistory(u *User, entry *HistoryEntry) {
	n := s.NextCounter(CounterHistory)
	entry.ID = strconv.FormatInt(n, 10)
	u.History = append(u.History, entry)

	cur, err := strconv.ParseInt(s.HistoryID(u), 10, 64)
	if err != nil || n <= cur {
		n = cur + 1
	}
	u.Profile.HistoryID = strconv.FormatInt(n, 10)
}

// NextCounter atomically increments and returns the named counter.
func (s *Store) NextCounter(name string) int64 {
	s.counters[name]++
	return s.counters[name]
}

// NextID mints an ID like "message_42" for the given counter name.
func (s *Store) NextID(name string) string {
	return fmt.Sprintf("%s_%d", name, s.NextCounter(name))
}

// PutAttachment stores an attachment keyed by its content hash. Existing
// entries win: the table is content addressed and immutable.
func (s *Store) PutAttachment(a *Attachment) {
	if _, ok := s.attachments[a.AttachmentID]; ok {
		return
	}
	s.attachments[a.AttachmentID] = a
}

// Attachment returns the attachment for an ID, or nil.
func (s *Store) Attachment(id string) *Attachment {
	return s.attachments[id]
}

// Attachments returns the live attachment table. Caller must hold the lock.
func (s *Store) Attachments() map[string]*Attachment {
	return s.attachments
}

// GCAttachments drops attachments no message or draft references any
// longer. Scan-on-delete keeps the table honest without refcounts.
func (s *Store) GCAttachments() int {
	referenced := make(map[string]bool)
	mark := func(m *Message) {
		if m == nil || m.Payload == nil {
			return
		}
		for _, p := range m.Payload.Parts {
			if p.Body.AttachmentID != "" {
				referenced[p.Body.AttachmentID] = true
			}
		}
	}
	for _, u := range s.users {
		for _, m := range u.Messages {
			mark(m)
		}
		for _, d := range u.Drafts {
			mark(d.Message)
		}
	}
	removed := 0
	for id := range s.attachments {
		if !referenced[id] {
			delete(s.attachments, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("attachment gc")
	}
	return removed
}
