package services

import (
	"strings"
	"unicode"
)

// Limits bounds user input. Zero values fall back to DefaultLimits.
type Limits struct {
	MinUsernameLength int
	MaxUsernameLength int
	MinPasswordLength int
	MaxPasswordLength int
	MaxMessageLength  int
	// MailboxQuota caps the unread messages a recipient may hold.
	MailboxQuota int
}

var DefaultLimits = Limits{
	MinUsernameLength: 2,
	MaxUsernameLength: 50,
	MinPasswordLength: 2,
	MaxPasswordLength: 72,
	MaxMessageLength:  255,
	MailboxQuota:      5,
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits
	if l.MinUsernameLength > 0 {
		d.MinUsernameLength = l.MinUsernameLength
	}
	if l.MaxUsernameLength > 0 {
		d.MaxUsernameLength = l.MaxUsernameLength
	}
	if l.MinPasswordLength > 0 {
		d.MinPasswordLength = l.MinPasswordLength
	}
	if l.MaxPasswordLength > 0 {
		d.MaxPasswordLength = l.MaxPasswordLength
	}
	if l.MaxMessageLength > 0 {
		d.MaxMessageLength = l.MaxMessageLength
	}
	if l.MailboxQuota > 0 {
		d.MailboxQuota = l.MailboxQuota
	}
	return d
}

// ForbiddenChars are stripped from message bodies and rejected in usernames.
const ForbiddenChars = `"';{}[]`

func isForbidden(r rune) bool {
	return strings.ContainsRune(ForbiddenChars, r) || unicode.IsControl(r)
}

// Sanitize drops forbidden and control characters and trims the result.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if isForbidden(r) {
			return -1
		}
		return r
	}, s))
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
