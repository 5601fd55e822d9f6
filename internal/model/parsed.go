package model

// SectionType is a canonical resume section category.
type SectionType string

const (
	SectionSummary        SectionType = "summary"
	SectionExperience     SectionType = "experience"
	SectionEducation      SectionType = "education"
	SectionSkills         SectionType = "skills"
	SectionProjects       SectionType = "projects"
	SectionCertifications SectionType = "certifications"
	SectionContact        SectionType = "contact"
	SectionGeneral        SectionType = "general"
)

// CanonicalSectionTypes lists the seven classified categories plus general,
// in display order.
var CanonicalSectionTypes = []SectionType{
	SectionSummary,
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionProjects,
	SectionCertifications,
	SectionContact,
	SectionGeneral,
}

// Valid reports whether t is one of the canonical section types.
func (t SectionType) Valid() bool {
	for _, known := range CanonicalSectionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Language is the detected document language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
	LanguageUnknown Language = "unknown"
)

// Diagnostic flags attached to parsed sections.
const (
	FlagHeadingUnknown        = "heading_unknown"
	FlagShortContent          = "short_content"
	FlagLooksLikeContactBlock = "looks_like_contact_block"
)

// Recategorization is a parser suggestion that a general section actually
// belongs to a specific category.
type Recategorization struct {
	SectionType SectionType `json:"section_type"`
	Confidence  float64     `json:"confidence"`
}

// SectionDiagnostics carries the parser's per-section signals.
type SectionDiagnostics struct {
	Flags                  []string          `json:"diagnostic_flags"`
	WordCount              int               `json:"word_count"`
	HeadingMappedToGeneral bool              `json:"heading_mapped_to_general"`
	Recategorization       *Recategorization `json:"recategorization_candidate,omitempty"`
}

// HasFlag reports whether the named diagnostic flag is set.
func (d SectionDiagnostics) HasFlag(flag string) bool {
	for _, f := range d.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SectionItem is one typed content span produced by the parser.
type SectionItem struct {
	RawHeading  string             `json:"raw_heading"`
	Type        SectionType        `json:"normalized_type"`
	Content     string             `json:"content"`
	Confidence  float64            `json:"confidence"`
	Diagnostics SectionDiagnostics `json:"diagnostics"`
}

// ParsedDocument is the ephemeral result of parsing one resume document.
// Every document carries at least one SectionItem; unparseable input degrades
// to a single low-confidence general section rather than an error.
type ParsedDocument struct {
	SourceID      string        `json:"source_id"`
	RawText       string        `json:"raw_text"`
	CleanText     string        `json:"clean_text"`
	Links         []string      `json:"links,omitempty"`
	Sections      []SectionItem `json:"sections"`
	Language      Language      `json:"language"`
	ParserVersion string        `json:"parser_version"`
}
