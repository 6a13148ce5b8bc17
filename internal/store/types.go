package store

// Entity types for the in-memory mailbox. JSON tags match the snapshot
// format so a whole Store can round-trip through Save/Load.

// Message is a stored mail message. InternalDate is the epoch in
// milliseconds, kept as a decimal string like the Gmail API does.
type Message struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"threadId"`
	LabelIDs     []string `json:"labelIds"`
	Sender       string   `json:"sender"`
	Recipient    string   `json:"recipient"`
	Cc           string   `json:"cc,omitempty"`
	Bcc          string   `json:"bcc,omitempty"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Snippet      string   `json:"snippet"`
	InternalDate string   `json:"internalDate"`
	IsRead       bool     `json:"isRead"`
	Payload      *Payload `json:"payload,omitempty"`
	Raw          string   `json:"raw,omitempty"`
}

// HasLabel reports whether the message carries the given label ID
// (exact match).
func (m *Message) HasLabel(id string) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

// AddLabel appends a label ID if not already present.
func (m *Message) AddLabel(id string) {
	if !m.HasLabel(id) {
		m.LabelIDs = append(m.LabelIDs, id)
	}
}

// RemoveLabel removes a label ID if present.
func (m *Message) RemoveLabel(id string) {
	out := m.LabelIDs[:0]
	for _, l := range m.LabelIDs {
		if l != id {
			out = append(out, l)
		}
	}
	m.LabelIDs = out
}

// Unread reports whether the message counts as unread. The IsRead flag
// and the UNREAD label are kept in sync on every mutation; either one
// marks the message unread here so count repair stays conservative.
func (m *Message) Unread() bool {
	return !m.IsRead || m.HasLabel("UNREAD")
}

// Payload is the structured MIME tree of a message.
type Payload struct {
	MimeType string  `json:"mimeType"`
	Parts    []*Part `json:"parts,omitempty"`
}

// Part is one MIME part. Attachment parts carry a reference into the
// global attachment table instead of inline data.
type Part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Body     PartBody `json:"body"`
}

// PartBody holds either inline base64 data or an attachment reference.
type PartBody struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Data         string `json:"data,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// Thread groups messages that share a threadId. LabelIDs and Snippet are
// derived from the member messages.
type Thread struct {
	ID         string   `json:"id"`
	MessageIDs []string `json:"messageIds"`
	LabelIDs   []string `json:"labelIds"`
	Snippet    string   `json:"snippet"`
}

// Draft wraps an unsent message. The embedded message carries the DRAFT
// label for as long as the draft exists.
type Draft struct {
	ID      string   `json:"id"`
	Message *Message `json:"message"`
}

// Label is a system or user label with its maintained counts.
type Label struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Type                  string      `json:"type"`
	LabelListVisibility   string      `json:"labelListVisibility"`
	MessageListVisibility string      `json:"messageListVisibility"`
	MessagesTotal         int64       `json:"messagesTotal"`
	MessagesUnread        int64       `json:"messagesUnread"`
	ThreadsTotal          int64       `json:"threadsTotal"`
	ThreadsUnread         int64       `json:"threadsUnread"`
	Color                 *LabelColor `json:"color,omitempty"`
}

// LabelColor mirrors the Gmail label color pair.
type LabelColor struct {
	TextColor       string `json:"textColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// Profile is the per-user summary.
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
	HistoryID     string `json:"historyId"`
}

// HistoryEntry records one mutation for users.history.list.
type HistoryEntry struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	MessageIDs   []string `json:"messageIds,omitempty"`
	LabelIDs     []string `json:"labelIds,omitempty"`
	InternalDate string   `json:"internalDate,omitempty"`
}

// History entry types.
const (
	HistoryMessageAdded   = "messageAdded"
	HistoryMessageDeleted = "messageDeleted"
	HistoryLabelAdded     = "labelAdded"
	HistoryLabelRemoved   = "labelRemoved"
)

// Watch is a registered push-notification subscription. The simulator
// stores but never delivers it.
type Watch struct {
	TopicName         string   `json:"topicName,omitempty"`
	LabelIDs          []string `json:"labelIds,omitempty"`
	LabelFilterAction string   `json:"labelFilterAction,omitempty"`
	Expiration        string   `json:"expiration,omitempty"`
	HistoryID         string   `json:"historyId,omitempty"`
}

// Settings is the nested per-user configuration block.
type Settings struct {
	IMAP           *ImapSettings           `json:"imap"`
	Pop            *PopSettings            `json:"pop"`
	Vacation       *VacationSettings       `json:"vacation"`
	Language       *LanguageSettings       `json:"language"`
	AutoForwarding *AutoForwardingSettings `json:"autoForwarding"`
	SendAs         map[string]*SendAs      `json:"sendAs"`
}

type ImapSettings struct {
	Enabled         bool   `json:"enabled"`
	AutoExpunge     bool   `json:"autoExpunge"`
	ExpungeBehavior string `json:"expungeBehavior,omitempty"`
	MaxFolderSize   int64  `json:"maxFolderSize,omitempty"`
}

type PopSettings struct {
	AccessWindow string `json:"accessWindow,omitempty"`
	Disposition  string `json:"disposition,omitempty"`
}

type VacationSettings struct {
	EnableAutoReply       bool   `json:"enableAutoReply"`
	ResponseSubject       string `json:"responseSubject,omitempty"`
	ResponseBodyPlainText string `json:"responseBodyPlainText,omitempty"`
	ResponseBodyHTML      string `json:"responseBodyHtml,omitempty"`
	RestrictToContacts    bool   `json:"restrictToContacts"`
	RestrictToDomain      bool   `json:"restrictToDomain"`
	StartTime             string `json:"startTime,omitempty"`
	EndTime               string `json:"endTime,omitempty"`
}

type LanguageSettings struct {
	DisplayLanguage string `json:"displayLanguage,omitempty"`
}

type AutoForwardingSettings struct {
	Enabled      bool   `json:"enabled"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Disposition  string `json:"disposition,omitempty"`
}

// SendAs is an alternate sender identity with optional S/MIME certs.
type SendAs struct {
	SendAsEmail        string                `json:"sendAsEmail"`
	DisplayName        string                `json:"displayName,omitempty"`
	ReplyToAddress     string                `json:"replyToAddress,omitempty"`
	Signature          string                `json:"signature,omitempty"`
	IsPrimary          bool                  `json:"isPrimary"`
	IsDefault          bool                  `json:"isDefault"`
	TreatAsAlias       bool                  `json:"treatAsAlias"`
	VerificationStatus string                `json:"verificationStatus,omitempty"`
	SmimeInfo          map[string]*SmimeInfo `json:"smimeInfo,omitempty"`
}

// SmimeInfo is one S/MIME certificate attached to a send-as alias.
type SmimeInfo struct {
	ID                   string `json:"id"`
	IssuerCn             string `json:"issuerCn,omitempty"`
	IsDefault            bool   `json:"isDefault"`
	ExpirationMillis     int64  `json:"expiration,omitempty"`
	Pem                  string `json:"pem,omitempty"`
	EncryptedKeyPassword string `json:"encryptedKeyPassword,omitempty"`
}

// User is one tenant of the simulator.
type User struct {
	Profile  *Profile            `json:"profile"`
	Messages map[string]*Message `json:"messages"`
	Threads  map[string]*Thread  `json:"threads"`
	Drafts   map[string]*Draft   `json:"drafts"`
	Labels   map[string]*Label   `json:"labels"`
	Settings *Settings           `json:"settings"`
	History  []*HistoryEntry     `json:"history"`
	Watch    *Watch              `json:"watch,omitempty"`
}

// Attachment lives in the process-wide content-addressed table. Data is
// base64 encoded; AttachmentID is the content hash.
type Attachment struct {
	AttachmentID string `json:"attachmentId"`
	Data         string `json:"data"`
	FileSize     int64  `json:"fileSize"`
	MimeType     string `json:"mimeType"`
	Filename     string `json:"filename"`
}
