package sanitizer

import (
	"strings"
	"unicode"

	"stazy/pkg/model"
)

// SanitizeContact normalizes contact details in place of the caller's copy.
// A phone that cannot be normalized is kept trimmed so that validation
// reports it instead of silently dropping it.
func SanitizeContact(c model.ContactDetails, defaultRegion string) model.ContactDetails {
	out := model.ContactDetails{
		FullName: NormalizeName(c.FullName),
		Email:    NormalizeEmail(c.Email),
		Phone:    NormalizePhone(c.Phone, defaultRegion),
	}
	if out.Phone == "" {
		out.Phone = collapseSpaces(c.Phone)
	}
	return out
}

// NormalizeName drops control characters and collapses runs of whitespace,
// so a name pasted from a form with tabs or line breaks is stored on one line.
func NormalizeName(name string) string {
	return collapseSpaces(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
