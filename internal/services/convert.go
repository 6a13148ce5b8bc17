package services

import (
	"encoding/base64"
	"sort"
	"strconv"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/store"
)

// Converters from store entities to the Gmail API resource shapes the
// service layer returns.

func historyIDUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 1
	}
	return n
}

func internalDateInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func toGmailMessage(u *store.User, m *store.Message) *gmail.Message {
	out := &gmail.Message{
		Id:           m.ID,
		ThreadId:     m.ThreadID,
		LabelIds:     append([]string(nil), m.LabelIDs...),
		Snippet:      m.Snippet,
		InternalDate: internalDateInt(m.InternalDate),
		HistoryId:    historyIDUint(u.Profile.HistoryID),
		Raw:          m.Raw,
		SizeEstimate: search.MessageSize(m),
		Payload:      toGmailPayload(m),
	}
	return out
}

func toGmailPayload(m *store.Message) *gmail.MessagePart {
	headers := []*gmail.MessagePartHeader{}
	addHeader := func(name, value string) {
		if value != "" {
			headers = append(headers, &gmail.MessagePartHeader{Name: name, Value: value})
		}
	}
	addHeader("From", m.Sender)
	addHeader("To", m.Recipient)
	addHeader("Cc", m.Cc)
	addHeader("Bcc", m.Bcc)
	addHeader("Subject", m.Subject)

	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Headers:  headers,
		Body: &gmail.MessagePartBody{
			Data: base64.URLEncoding.EncodeToString([]byte(m.Body)),
			Size: int64(len(m.Body)),
		},
	}
	if m.Payload == nil {
		return part
	}
	part.MimeType = m.Payload.MimeType
	for _, p := range m.Payload.Parts {
		part.Parts = append(part.Parts, &gmail.MessagePart{
			MimeType: p.MimeType,
			Filename: p.Filename,
			Body: &gmail.MessagePartBody{
				AttachmentId: p.Body.AttachmentID,
				Data:         p.Body.Data,
				Size:         p.Body.Size,
			},
		})
	}
	return part
}

func toGmailDraft(u *store.User, d *store.Draft) *gmail.Draft {
	out := &gmail.Draft{Id: d.ID}
	if d.Message != nil {
		out.Message = toGmailMessage(u, d.Message)
	}
	return out
}

func toGmailThread(u *store.User, t *store.Thread, withMessages bool) *gmail.Thread {
	out := &gmail.Thread{
		Id:        t.ID,
		Snippet:   t.Snippet,
		HistoryId: historyIDUint(u.Profile.HistoryID),
	}
	if !withMessages {
		return out
	}
	ids := append([]string(nil), t.MessageIDs...)
	sort.Slice(ids, func(i, j int) bool {
		a, b := u.Messages[ids[i]], u.Messages[ids[j]]
		var am, bm int64
		if a != nil {
			am = internalDateInt(a.InternalDate)
		}
		if b != nil {
			bm = internalDateInt(b.InternalDate)
		}
		if am != bm {
			return am < bm
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		if m, ok := u.Messages[id]; ok {
			out.Messages = append(out.Messages, toGmailMessage(u, m))
		}
	}
	return out
}

func toGmailLabel(l *store.Label) *gmail.Label {
	out := &gmail.Label{
		Id:                    l.ID,
		Name:                  l.Name,
		Type:                  l.Type,
		LabelListVisibility:   l.LabelListVisibility,
		MessageListVisibility: l.MessageListVisibility,
		MessagesTotal:         l.MessagesTotal,
		MessagesUnread:        l.MessagesUnread,
		ThreadsTotal:          l.ThreadsTotal,
		ThreadsUnread:         l.ThreadsUnread,
	}
	if l.Color != nil {
		out.Color = &gmail.LabelColor{
			TextColor:       l.Color.TextColor,
			BackgroundColor: l.Color.BackgroundColor,
		}
	}
	return out
}

func toGmailProfile(u *store.User) *gmail.Profile {
	return &gmail.Profile{
		EmailAddress:  u.Profile.EmailAddress,
		MessagesTotal: u.Profile.MessagesTotal,
		ThreadsTotal:  u.Profile.ThreadsTotal,
		HistoryId:     historyIDUint(u.Profile.HistoryID),
	}
}

func toGmailSendAs(s *store.SendAs) *gmail.SendAs {
	return &gmail.SendAs{
		SendAsEmail:        s.SendAsEmail,
		DisplayName:        s.DisplayName,
		ReplyToAddress:     s.ReplyToAddress,
		Signature:          s.Signature,
		IsPrimary:          s.IsPrimary,
		IsDefault:          s.IsDefault,
		TreatAsAlias:       s.TreatAsAlias,
		VerificationStatus: s.VerificationStatus,
	}
}

func toGmailSmime(s *store.SmimeInfo) *gmail.SmimeInfo {
	return &gmail.SmimeInfo{
		Id:                   s.ID,
		IssuerCn:             s.IssuerCn,
		IsDefault:            s.IsDefault,
		Expiration:           s.ExpirationMillis,
		Pem:                  s.Pem,
		EncryptedKeyPassword: s.EncryptedKeyPassword,
	}
}
