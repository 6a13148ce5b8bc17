package search

import (
	"strings"

	"github.com/mailsim/gmailsim/internal/store"
)

// Attachment tags recognized by has:<type>.
var attachmentTypeNames = map[string]bool{
	"youtube": true, "drive": true, "document": true, "spreadsheet": true,
	"presentation": true, "pdf": true, "image": true, "video": true,
	"audio": true,
}

var (
	imageExts       = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".tiff"}
	videoExts       = []string{".mp4", ".avi", ".mov"}
	audioExts       = []string{".mp3", ".wav", ".m4a"}
	spreadsheetExts = []string{".xls", ".xlsx", ".csv"}
	presentationExt = []string{".ppt", ".pptx"}
	documentExts    = []string{".doc", ".docx"}
)

func anySuffix(name string, exts []string) bool {
	for _, e := range exts {
		if strings.HasSuffix(name, e) {
			return true
		}
	}
	return false
}

// attachmentTags walks the message parts and returns the set of
// attachment-type tags that apply.
func attachmentTags(m *store.Message) map[string]bool {
	tags := make(map[string]bool)
	if m.Payload == nil {
		return tags
	}
	for _, p := range m.Payload.Parts {
		mime := strings.ToLower(p.MimeType)
		name := strings.ToLower(p.Filename)

		if strings.Contains(mime, "youtube") || strings.Contains(name, "youtube") {
			tags["youtube"] = true
		}
		spreadsheet := strings.Contains(mime, "spreadsheetml") ||
			strings.Contains(mime, "vnd.google-apps.spreadsheet") ||
			anySuffix(name, spreadsheetExts)
		if spreadsheet {
			tags["spreadsheet"] = true
		}
		presentation := strings.Contains(mime, "presentationml") ||
			strings.Contains(mime, "vnd.google-apps.presentation") ||
			anySuffix(name, presentationExt)
		if presentation {
			tags["presentation"] = true
		}
		if strings.Contains(mime, "wordprocessingml") ||
			strings.Contains(mime, "vnd.google-apps.document") ||
			anySuffix(name, documentExts) ||
			(strings.Contains(mime, "document") && !spreadsheet && !presentation) {
			tags["document"] = true
		}
		if strings.Contains(mime, "drive") || strings.Contains(name, "google") ||
			strings.Contains(mime, "vnd.google-apps.file") {
			tags["drive"] = true
		}
		if strings.Contains(mime, "pdf") || strings.HasSuffix(name, ".pdf") {
			tags["pdf"] = true
		}
		if strings.HasPrefix(mime, "image/") || anySuffix(name, imageExts) {
			tags["image"] = true
		}
		if strings.HasPrefix(mime, "video/") || anySuffix(name, videoExts) {
			tags["video"] = true
		}
		if strings.HasPrefix(mime, "audio/") || anySuffix(name, audioExts) {
			tags["audio"] = true
		}
	}
	return tags
}

// hasAttachment reports whether any part carries a filename, the signal
// Gmail uses for has:attachment.
func hasAttachment(m *store.Message) bool {
	if m.Payload == nil {
		return false
	}
	for _, p := range m.Payload.Parts {
		if p.Filename != "" {
			return true
		}
	}
	return false
}

// Star variants accepted by has:<star>.
var starTypeNames = map[string]bool{
	"star": true, "yellow-star": true, "orange-star": true, "red-star": true,
	"purple-star": true, "blue-star": true, "green-star": true,
	"red-bang": true, "yellow-bang": true, "orange-guillemet": true,
	"green-check": true, "blue-info": true, "purple-question": true,
}
