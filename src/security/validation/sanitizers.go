package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy = bluemonday.StrictPolicy()

// SanitizeText removes all HTML tags and attributes from s.
func SanitizeText(s string) string {
	return strictHTMLPolicy.Sanitize(s)
}

// SanitizeFreeText is applied to every free-text field forwarded to the backend:
// markup and control characters are dropped, leading formula triggers are quoted.
func SanitizeFreeText(s string) string {
	return SanitizeForFormulaInjection(StripUnprintable(SanitizeText(strings.TrimSpace(s))))
}

// SanitizeForFormulaInjection prepends a single quote if the string starts with a
// formula character, so the backend spreadsheet exports treat it as text.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 {
		return s
	}

	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// StripUnprintable removes non-printable characters, keeping tab and newlines.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
