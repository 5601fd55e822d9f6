package parser

import (
	"regexp"
	"strings"

	"github.com/hireloop/resume-intake/internal/model"
)

const shortContentWords = 8

var (
	emailPatternRE = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePatternRE = regexp.MustCompile(`\+?\d[\d\s().\-/]{6,}\d`)
)

// recategorizationVocab scores general sections against per-type keyword
// buckets; two or more hits suggest the bucket.
var recategorizationVocab = []struct {
	section  model.SectionType
	keywords []string
}{
	{model.SectionSkills, []string{"python", "sql", "java", "skills", "technologies", "stack"}},
	{model.SectionExperience, []string{"experience", "responsible", "led", "worked", "managed"}},
	{model.SectionContact, []string{"email", "phone", "linkedin", "github"}},
}

// buildDiagnostics computes per-section flags and, for general sections, a
// recategorization suggestion.
func buildDiagnostics(sectionType model.SectionType, rawHeading, content string) model.SectionDiagnostics {
	wordCount := len(strings.Fields(content))
	mappedToGeneral := strings.TrimSpace(rawHeading) != "" && sectionType == model.SectionGeneral

	var flags []string
	if mappedToGeneral {
		flags = append(flags, model.FlagHeadingUnknown)
	}
	if wordCount < shortContentWords {
		flags = append(flags, model.FlagShortContent)
	}
	contactLike := looksLikeContactBlock(content)
	if contactLike {
		flags = append(flags, model.FlagLooksLikeContactBlock)
	}

	return model.SectionDiagnostics{
		Flags:                  flags,
		WordCount:              wordCount,
		HeadingMappedToGeneral: mappedToGeneral,
		Recategorization:       suggestRecategorization(sectionType, content, contactLike),
	}
}

func looksLikeContactBlock(content string) bool {
	lowered := strings.ToLower(content)
	return emailPatternRE.MatchString(lowered) || phonePatternRE.MatchString(content)
}

// suggestRecategorization proposes a better type for general sections:
// contact-like content wins outright, otherwise the first keyword bucket
// with at least two hits.
func suggestRecategorization(sectionType model.SectionType, content string, contactLike bool) *model.Recategorization {
	if sectionType != model.SectionGeneral {
		return nil
	}
	if contactLike {
		return &model.Recategorization{SectionType: model.SectionContact, Confidence: 0.8}
	}

	lowered := strings.ToLower(content)
	for _, bucket := range recategorizationVocab {
		hits := 0
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				hits++
			}
		}
		if hits >= 2 {
			return &model.Recategorization{SectionType: bucket.section, Confidence: 0.65}
		}
	}
	return nil
}
