package assist

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder tokens substituted for personal identifiers.
const (
	TokenName  = "[PATIENT_NAME]"
	TokenEmail = "[EMAIL]"
	TokenID    = "[PATIENT_ID]"
	TokenPhone = "[PHONE]"
	TokenUUID  = "[ID]"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	uuidRe  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)[\s.\-]?)?\d{3,4}[\s.\-]?\d{3,4}(?:[\s.\-]?\d{2,4})?`)
)

// Identifiers are the caller's own details to strip from free text.
type Identifiers struct {
	FullName  string
	Email     string
	PatientID string
}

// Redactor removes personal identifiers from text before it leaves the
// service.
type Redactor struct{}

// Sanitize replaces the caller's identifiers, then any remaining emails,
// UUIDs and phone numbers, with placeholder tokens.
func (Redactor) Sanitize(text string, ids Identifiers) string {
	out := strings.TrimSpace(text)

	if id := strings.TrimSpace(ids.PatientID); id != "" {
		out = replaceFold(out, id, TokenID)
	}
	if email := strings.TrimSpace(ids.Email); email != "" {
		out = replaceFold(out, email, TokenEmail)
	}
	if name := strings.TrimSpace(ids.FullName); name != "" {
		out = replaceFold(out, name, TokenName)
		// Longest parts first so "Ann" does not break "Annabel".
		parts := strings.Fields(name)
		sort.Slice(parts, func(i, j int) bool { return len(parts[i]) > len(parts[j]) })
		for _, p := range parts {
			if len(p) > 2 {
				out = replaceWord(out, p, TokenName)
			}
		}
	}

	out = emailRe.ReplaceAllString(out, TokenEmail)
	out = uuidRe.ReplaceAllString(out, TokenUUID)
	out = phoneRe.ReplaceAllStringFunc(out, func(m string) string {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		// Short runs are doses or dates, not phone numbers.
		if digits < 7 {
			return m
		}
		return TokenPhone
	})
	return out
}

func replaceFold(s, old, repl string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(s, repl)
}

func replaceWord(s, word, repl string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllLiteralString(s, repl)
}
