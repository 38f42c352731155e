package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Header is one RFC 5322 header of a message part.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body holds base64url-encoded part data.
type Body struct {
	Size int    `json:"size"`
	Data string `json:"data,omitempty"`
}

// Part is a MIME part. The top-level payload is a Part too.
type Part struct {
	PartID   string   `json:"partId,omitempty"`
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers,omitempty"`
	Body     Body     `json:"body"`
	Parts    []Part   `json:"parts,omitempty"`
}

// Message is a full-format message.
type Message struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds,omitempty"`
	Snippet  string   `json:"snippet"`
	Payload  Part     `json:"payload"`
}

// Header returns the first top-level header called name (case-insensitive).
func (m *Message) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Subject returns the Subject header.
func (m *Message) Subject() string { return strings.TrimSpace(m.Header("Subject")) }

// SenderEmail returns the bare address of the From header. When the header
// does not parse, the raw value is returned.
func (m *Message) SenderEmail() string {
	from := strings.TrimSpace(m.Header("From"))
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return from
}

// PlainText returns the first text/plain part in depth-first order, or "" if
// there is none.
func (m *Message) PlainText() string {
	if s, ok := findPlain(m.Payload); ok {
		return s
	}
	return ""
}

// Content is PlainText falling back to the snippet, normalized to NFC with
// LF line endings and surrounding space trimmed.
func (m *Message) Content() string {
	s := m.PlainText()
	if strings.TrimSpace(s) == "" {
		s = m.Snippet
	}
	return normalize(s)
}

func findPlain(p Part) (string, bool) {
	if strings.HasPrefix(strings.ToLower(p.MimeType), "text/plain") && p.Body.Data != "" {
		if s, ok := decodeData(p.Body.Data); ok {
			return s, true
		}
	}
	for _, child := range p.Parts {
		if s, ok := findPlain(child); ok {
			return s, true
		}
	}
	return "", false
}

// decodeData accepts padded and unpadded base64url.
func decodeData(data string) (string, bool) {
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b), true
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), true
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(norm.NFC.String(s))
}
