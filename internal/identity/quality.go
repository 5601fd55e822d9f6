package identity

import (
	"strings"
	"unicode"

	"github.com/hireloop/resume-intake/internal/textnorm"
)

// nonNameSectionWords are section-ish keywords that disqualify a header line
// from being a person name.
var nonNameSectionWords = []string{
	"experience",
	"education",
	"skills",
	"projects",
	"summary",
	"contact",
	"certifications",
	"profile",
	"about",
	"work",
	"empleo",
	"experiencia",
	"educacion",
	"educación",
	"habilidades",
	"proyectos",
	"contacto",
}

// nonNamePhrases are phrases commonly emitted by resume builders that look
// name-shaped but never are.
var nonNamePhrases = []string{
	"data models",
	"model building",
	"information analysis",
	"top skills",
	"languages",
	"publications",
}

// locationHints are place names that show up as standalone header lines.
var locationHints = []string{
	"argentina",
	"buenos aires",
	"bs as",
	"bs. as.",
	"caba",
}

func containsAny(lowered string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(lowered, needle) {
			return true
		}
	}
	return false
}

// isNameShapedToken reports whether a token looks like part of a name:
// Title-case or all-caps.
func isNameShapedToken(token string) bool {
	runes := []rune(token)
	if len(runes) == 0 {
		return false
	}
	if isUpperString(token) {
		return true
	}
	return unicode.IsUpper(runes[0]) && isLowerString(string(runes[1:]))
}

func isStrictTitleCase(token string) bool {
	runes := []rune(token)
	if len(runes) == 0 {
		return false
	}
	return unicode.IsUpper(runes[0]) && isLowerString(string(runes[1:]))
}

func isUpperString(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isLowerString(s string) bool {
	if s == "" {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// IsValidPersonName applies the structural name checks shared by the rules
// resolver, the model-result gate and the name-quality heuristic: 2-4
// tokens, no digits, no section/location/non-name vocabulary, and at least
// two name-shaped tokens.
func IsValidPersonName(name string) bool {
	cleaned := textnorm.Whitespace(name)
	if cleaned == "" {
		return false
	}
	parts := strings.Split(cleaned, " ")
	if len(parts) < 2 || len(parts) > 4 {
		return false
	}
	lowered := strings.ToLower(cleaned)
	if containsAny(lowered, nonNameSectionWords) ||
		containsAny(lowered, nonNamePhrases) ||
		containsAny(lowered, locationHints) {
		return false
	}
	if strings.ContainsFunc(cleaned, unicode.IsDigit) {
		return false
	}
	nameShaped := 0
	for _, part := range parts {
		if isNameShapedToken(part) {
			nameShaped++
		}
	}
	return nameShaped >= 2
}

// EstimateNameQuality scores how trustworthy a stored name is, used both by
// the reconciler's upgrade rule and by the backfill job to rank duplicate
// candidates. Shape-invalid names score a flat 0.2.
func EstimateNameQuality(name string) float64 {
	if name == "" {
		return 0
	}
	normalized := textnorm.Name(name)
	if normalized == "" {
		return 0
	}
	if !IsValidPersonName(normalized) {
		return 0.2
	}
	score := 0.55
	tokenCount := len(strings.Fields(normalized))
	if tokenCount >= 2 && tokenCount <= 4 {
		score += 0.2
	}
	lowered := strings.ToLower(normalized)
	if containsAny(lowered, locationHints) {
		score -= 0.35
	}
	if containsAny(lowered, nonNamePhrases) {
		score -= 0.35
	}
	return round4(clamp01(score))
}
