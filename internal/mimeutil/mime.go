// Package mimeutil assembles and parses raw MIME messages and manages
// the extraction of attachment parts into content-addressed records.
package mimeutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailsim/gmailsim/internal/store"
)

// ErrInvalidRaw marks a raw blob whose base64 envelope cannot be decoded.
var ErrInvalidRaw = errors.New("invalid raw message")

// ParsedMessage is the structured result of decoding a raw MIME blob.
// Header parsing is best effort: missing headers come back as empty
// strings rather than an error.
type ParsedMessage struct {
	Sender      string
	Recipient   string
	Cc          string
	Bcc         string
	Subject     string
	Body        string
	Payload     *store.Payload
	Attachments []*store.Attachment
}

// FileAttachment is one attachment to include when building raw MIME.
type FileAttachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// ReadFileAttachment loads a file from disk, guessing its MIME type
// from the extension.
func ReadFileAttachment(path string) (FileAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileAttachment{}, fmt.Errorf("failed to read attachment %s: %w", path, err)
	}
	name := filepath.Base(path)
	mt := mime.TypeByExtension(filepath.Ext(name))
	if mt == "" {
		mt = "application/octet-stream"
	}
	return FileAttachment{Filename: name, MimeType: mt, Data: data}, nil
}

// AttachmentRecord converts a file attachment into its
// content-addressed store record.
func AttachmentRecord(fa FileAttachment) *store.Attachment {
	return &store.Attachment{
		AttachmentID: contentHash(fa.Data),
		Data:         base64.StdEncoding.EncodeToString(fa.Data),
		FileSize:     int64(len(fa.Data)),
		MimeType:     fa.MimeType,
		Filename:     fa.Filename,
	}
}

// BuildRaw assembles a MIME message from individual fields and returns
// its base64url encoding. With attachments present the result is
// multipart/mixed; otherwise a simple text/plain message.
func BuildRaw(toEmail, subject, body, fromEmail, cc, bcc string, attachments []FileAttachment) string {
	var msg strings.Builder

	writeHeader := func(k, v string) {
		if v != "" {
			msg.WriteString(k)
			msg.WriteString(": ")
			msg.WriteString(v)
			msg.WriteString("\r\n")
		}
	}
	writeHeader("From", fromEmail)
	writeHeader("To", toEmail)
	writeHeader("Cc", cc)
	writeHeader("Bcc", bcc)
	writeHeader("Subject", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(body)
		return base64.URLEncoding.EncodeToString([]byte(msg.String()))
	}

	boundary := "mailsim-" + contentHash([]byte(subject+body+toEmail))
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary))

	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	for _, a := range attachments {
		mt := a.MimeType
		if mt == "" {
			mt = "application/octet-stream"
		}
		msg.WriteString("--" + boundary + "\r\n")
		msg.WriteString(fmt.Sprintf("Content-Type: %s; name=%q\r\n", mt, a.Filename))
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", a.Filename))
		msg.WriteString(base64.StdEncoding.EncodeToString(a.Data))
		msg.WriteString("\r\n")
	}
	msg.WriteString("--" + boundary + "--\r\n")

	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

// ParseRaw decodes a base64url-encoded MIME blob into a ParsedMessage.
// Non-text parts become attachment records addressed by a 16-hex-char
// content hash; the caller inserts them into the attachment table.
// Only the base64 envelope can fail hard (ErrInvalidRaw); everything
// inside is parsed best effort.
func ParseRaw(raw string) (*ParsedMessage, error) {
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRaw, err)
	}

	parsed := &ParsedMessage{}
	msg, err := mail.ReadMessage(strings.NewReader(string(data)))
	if err != nil {
		// No parseable header block: treat the whole payload as body.
		parsed.Body = string(data)
		parsed.Payload = &store.Payload{MimeType: "text/plain"}
		return parsed, nil
	}

	parsed.Sender = msg.Header.Get("From")
	parsed.Recipient = msg.Header.Get("To")
	parsed.Cc = msg.Header.Get("Cc")
	parsed.Bcc = msg.Header.Get("Bcc")
	parsed.Subject = msg.Header.Get("Subject")

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		parsed.Payload = &store.Payload{MimeType: mediaType}
		parseMultipart(msg.Body, params["boundary"], parsed)
		return parsed, nil
	}

	body, _ := io.ReadAll(decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding")))
	parsed.Body = string(body)
	parsed.Payload = &store.Payload{MimeType: mediaType}
	return parsed, nil
}

func parseMultipart(r io.Reader, boundary string, parsed *ParsedMessage) {
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return
		}
		ct := part.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(ct)
		if err != nil {
			mediaType = "application/octet-stream"
		}
		filename := part.FileName()
		content, _ := io.ReadAll(decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding")))

		if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
			parseMultipart(strings.NewReader(string(content)), params["boundary"], parsed)
			continue
		}

		if filename == "" && strings.HasPrefix(mediaType, "text/") {
			if parsed.Body == "" {
				parsed.Body = string(content)
			}
			parsed.Payload.Parts = append(parsed.Payload.Parts, &store.Part{
				MimeType: mediaType,
				Body: store.PartBody{
					Data: base64.URLEncoding.EncodeToString(content),
					Size: int64(len(content)),
				},
			})
			continue
		}

		// Attachment part: content addressed, referenced by ID.
		att := &store.Attachment{
			AttachmentID: contentHash(content),
			Data:         base64.StdEncoding.EncodeToString(content),
			FileSize:     int64(len(content)),
			MimeType:     mediaType,
			Filename:     filename,
		}
		parsed.Attachments = append(parsed.Attachments, att)
		parsed.Payload.Parts = append(parsed.Payload.Parts, &store.Part{
			MimeType: mediaType,
			Filename: filename,
			Body: store.PartBody{
				AttachmentID: att.AttachmentID,
				Size:         att.FileSize,
			},
		})
	}
}

// decodeBase64 tries the url-safe alphabets first, then the standard
// ones, with and without padding. Senders are sloppy about all four.
func decodeBase64(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	encodings := []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding,
		base64.StdEncoding, base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(raw)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// contentHash returns the stable 16-hex-char content address used for
// attachment IDs.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
