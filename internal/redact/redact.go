// Package redact scrubs secrets and obvious PII from strings before they are
// logged or stored in the audit feed.
package redact

import (
	"regexp"
	"strings"
)

const mask = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone pattern so hex runs inside UUIDs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	// Chat bot secrets look like "<digits>:<35 url-safe chars>" and appear in
	// API paths as /bot<secret>/.
	botTokenRE = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)
	// Credentials carried in query strings.
	queryTokenRE = regexp.MustCompile(`(?i)\b(token|access_token|refresh_token|client_secret)=[^&\s"]+`)
)

// PII replaces UUIDs, e-mail addresses and phone numbers. UUIDs go first so
// the loose phone pattern cannot eat their digit groups.
func PII(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// Secret removes every literal occurrence of secrets from s, plus anything
// shaped like a bot token or a credential query parameter.
func Secret(s string, secrets ...string) string {
	if s == "" {
		return s
	}
	for _, sec := range secrets {
		if sec = strings.TrimSpace(sec); len(sec) >= 4 {
			s = strings.ReplaceAll(s, sec, mask)
		}
	}
	s = botTokenRE.ReplaceAllString(s, mask)
	s = queryTokenRE.ReplaceAllString(s, "${1}="+mask)
	return s
}

// Error is Secret applied to err.Error(). A nil err yields "".
func Error(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return Secret(err.Error(), secrets...)
}
