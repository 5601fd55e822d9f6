// Package textnorm provides the pure text normalization helpers shared by
// the section parser and identity extraction. All functions are
// deterministic and side-effect free.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	namePunctRE  = regexp.MustCompile(`[^\p{L}\p{N}\s'\-]`)
	linePrefixRE = regexp.MustCompile(`^[#>\-\*\x{2022}]+\s*`)
	nonDigitRE   = regexp.MustCompile(`\D`)
)

// Whitespace collapses runs of whitespace to single spaces and trims.
func Whitespace(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// Name strips punctuation except hyphen and apostrophe, collapses
// whitespace and title-cases each token. Returns "" if nothing remains.
func Name(value string) string {
	if value == "" {
		return ""
	}
	cleaned := namePunctRE.ReplaceAllString(value, " ")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return ""
	}
	for i, tok := range tokens {
		tokens[i] = capitalize(tok)
	}
	return strings.Join(tokens, " ")
}

// StripLinePrefix removes leading markdown bullet, heading and quote markers
// from a line.
func StripLinePrefix(line string) string {
	return linePrefixRE.ReplaceAllString(strings.TrimSpace(line), "")
}

// Email lowercases, strips a mailto: prefix and trailing punctuation.
// Returns "" when the result does not contain '@'.
func Email(raw string) string {
	if raw == "" {
		return ""
	}
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "mailto:", "")
	value = strings.TrimRight(value, ".,;:)")
	if !strings.Contains(value, "@") {
		return ""
	}
	return value
}

// Phone strips all non-digits. A leading '+' is preserved and requires 8-15
// digits; without it at least 10 digits are required. Returns "" on reject.
func Phone(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")
	digits := nonDigitRE.ReplaceAllString(trimmed, "")
	if hasPlus {
		if len(digits) < 8 || len(digits) > 15 {
			return ""
		}
		return "+" + digits
	}
	if len(digits) < 10 {
		return ""
	}
	return digits
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(token string) string {
	runes := []rune(strings.ToLower(token))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
