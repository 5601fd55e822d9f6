package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hireloop/resume-intake/internal/model"
)

// headingAlias maps a normalized heading phrase to a canonical section type.
// Matching is substring-based in declaration order, so more specific phrases
// never need to precede general ones but ordering is still deterministic.
type headingAlias struct {
	phrase  string
	section model.SectionType
}

// headingAliases is the bilingual (English/Spanish) heading lookup table.
// Loaded once at init; never mutated afterwards.
var headingAliases = []headingAlias{
	// summary
	{"summary", model.SectionSummary},
	{"professional summary", model.SectionSummary},
	{"executive summary", model.SectionSummary},
	{"profile", model.SectionSummary},
	{"professional profile", model.SectionSummary},
	{"about", model.SectionSummary},
	{"about me", model.SectionSummary},
	{"sobre mi", model.SectionSummary},
	{"career summary", model.SectionSummary},
	{"objective", model.SectionSummary},
	{"career objective", model.SectionSummary},
	{"personal statement", model.SectionSummary},
	{"overview", model.SectionSummary},

	// experience
	{"experience", model.SectionExperience},
	{"professional experience", model.SectionExperience},
	{"work experience", model.SectionExperience},
	{"employment history", model.SectionExperience},
	{"work history", model.SectionExperience},
	{"career history", model.SectionExperience},
	{"employment", model.SectionExperience},
	{"professional background", model.SectionExperience},
	{"relevant experience", model.SectionExperience},
	{"industry experience", model.SectionExperience},
	{"internship experience", model.SectionExperience},
	{"internships", model.SectionExperience},
	{"positions held", model.SectionExperience},
	{"experiencia", model.SectionExperience},
	{"experiencia profesional", model.SectionExperience},
	{"experiencia laboral", model.SectionExperience},

	// education
	{"education", model.SectionEducation},
	{"academic background", model.SectionEducation},
	{"academic history", model.SectionEducation},
	{"academic experience", model.SectionEducation},
	{"qualifications", model.SectionEducation},
	{"academic qualifications", model.SectionEducation},
	{"degrees", model.SectionEducation},
	{"degree", model.SectionEducation},
	{"studies", model.SectionEducation},
	{"formal education", model.SectionEducation},
	{"courses", model.SectionEducation},
	{"coursework", model.SectionEducation},
	{"relevant coursework", model.SectionEducation},
	{"training", model.SectionEducation},
	{"educacion", model.SectionEducation},
	{"formacion", model.SectionEducation},

	// skills
	{"skills", model.SectionSkills},
	{"technical skills", model.SectionSkills},
	{"core skills", model.SectionSkills},
	{"key skills", model.SectionSkills},
	{"professional skills", model.SectionSkills},
	{"hard skills", model.SectionSkills},
	{"soft skills", model.SectionSkills},
	{"competencies", model.SectionSkills},
	{"core competencies", model.SectionSkills},
	{"expertise", model.SectionSkills},
	{"technical expertise", model.SectionSkills},
	{"technologies", model.SectionSkills},
	{"tech stack", model.SectionSkills},
	{"tools", model.SectionSkills},
	{"informatica", model.SectionSkills},
	{"habilidades", model.SectionSkills},
	{"competencias", model.SectionSkills},
	{"aptitudes", model.SectionSkills},
	{"idiomas", model.SectionSkills},
	{"languages", model.SectionSkills},

	// projects
	{"projects", model.SectionProjects},
	{"personal projects", model.SectionProjects},
	{"academic projects", model.SectionProjects},
	{"professional projects", model.SectionProjects},
	{"selected projects", model.SectionProjects},
	{"key projects", model.SectionProjects},
	{"portfolio", model.SectionProjects},
	{"research projects", model.SectionProjects},
	{"proyectos", model.SectionProjects},
	{"publications", model.SectionProjects},
	{"publicaciones", model.SectionProjects},

	// certifications
	{"certifications", model.SectionCertifications},
	{"certification", model.SectionCertifications},
	{"licenses", model.SectionCertifications},
	{"licenses and certifications", model.SectionCertifications},
	{"professional certifications", model.SectionCertifications},
	{"credentials", model.SectionCertifications},
	{"accreditations", model.SectionCertifications},
	{"certificaciones", model.SectionCertifications},
	{"licencias", model.SectionCertifications},

	// contact
	{"contact", model.SectionContact},
	{"contact information", model.SectionContact},
	{"personal information", model.SectionContact},
	{"personal details", model.SectionContact},
	{"contact details", model.SectionContact},
	{"get in touch", model.SectionContact},
	{"contact me", model.SectionContact},
	{"contacto", model.SectionContact},
	{"informacion de contacto", model.SectionContact},
}

var (
	emphasisRE    = regexp.MustCompile("[*_`~]+")
	nonAlnumRE    = regexp.MustCompile(`[^a-z0-9\s]+`)
	accentFolding = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// mapHeading classifies a raw heading into a canonical section type,
// defaulting to general when no alias matches.
func mapHeading(title string) model.SectionType {
	normalized := normalizeHeading(title)
	for _, alias := range headingAliases {
		if strings.Contains(normalized, alias.phrase) {
			return alias.section
		}
	}
	return model.SectionGeneral
}

// normalizeHeading strips emphasis markers, folds accents, lowercases and
// keeps only alphanumerics so Spanish headings like "Educación" match their
// accent-free aliases.
func normalizeHeading(title string) string {
	noMarkdown := emphasisRE.ReplaceAllString(title, " ")
	folded, _, err := transform.String(accentFolding, noMarkdown)
	if err != nil {
		folded = noMarkdown
	}
	lowered := strings.ToLower(folded)
	return strings.Join(strings.Fields(nonAlnumRE.ReplaceAllString(lowered, " ")), " ")
}
