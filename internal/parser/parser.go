// Package parser converts markdown-like resume text into typed section
// items. Parsing never fails: malformed or headingless input degrades to a
// single low-confidence general section.
package parser

import (
	"regexp"
	"strings"

	"github.com/hireloop/resume-intake/internal/model"
)

// Version identifies the parsing algorithm for forward-compatible
// reprocessing; bump it whenever section segmentation semantics change.
const Version = "markdown.v3"

const fallbackConfidence = 0.3

var headingRE = regexp.MustCompile(`^(#{1,6})\s+(.*)`)

// headingSpan is a heading plus the line range it governs (inclusive).
type headingSpan struct {
	rawHeading string
	section    model.SectionType
	startLine  int
	endLine    int
}

// Parser turns raw markdown into a ParsedDocument.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse segments the given markdown. sourceID must be stable per physical
// file; it becomes the resume dedup key alongside the content hash.
func (p *Parser) Parse(markdown, sourceID string) model.ParsedDocument {
	clean := preclean(markdown)
	lines := strings.Split(clean, "\n")
	spans := absorbGenerals(findHeadingSpans(clean), lines)
	sections := assembleSections(clean, spans)

	return model.ParsedDocument{
		SourceID:      sourceID,
		RawText:       markdown,
		CleanText:     cleanBlocks(clean),
		Links:         extractLinks(clean),
		Sections:      sections,
		Language:      detectLanguage(clean),
		ParserVersion: Version,
	}
}

// findHeadingSpans scans for markdown headings; each opens a span running to
// the line before the next heading, the last to end of document.
func findHeadingSpans(markdown string) []headingSpan {
	lines := strings.Split(markdown, "\n")
	var spans []headingSpan

	for i, line := range lines {
		m := headingRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(spans) > 0 {
			spans[len(spans)-1].endLine = i - 1
		}
		title := strings.TrimSpace(m[2])
		spans = append(spans, headingSpan{
			rawHeading: title,
			section:    mapHeading(title),
			startLine:  i,
		})
	}
	if len(spans) > 0 {
		spans[len(spans)-1].endLine = len(lines) - 1
	}
	return spans
}

// absorbGenerals repairs resumes where a role title was detected as its own
// heading: a non-general span with no body before the next heading absorbs
// the immediately-following general spans. Single left-to-right pass; merged
// spans are not re-scanned.
func absorbGenerals(spans []headingSpan, lines []string) []headingSpan {
	var result []headingSpan
	for i := 0; i < len(spans); {
		current := spans[i]
		if current.section != model.SectionGeneral && joinContentLines(lines, current.startLine+1, current.endLine) == "" {
			j := i + 1
			for j < len(spans) && spans[j].section == model.SectionGeneral {
				current.endLine = spans[j].endLine
				j++
			}
			result = append(result, current)
			i = j
			continue
		}
		result = append(result, current)
		i++
	}
	return result
}

// assembleSections extracts span contents into section items, concatenating
// spans that share a type and falling back to one whole-document general
// section when nothing else produced content.
func assembleSections(markdown string, spans []headingSpan) []model.SectionItem {
	lines := strings.Split(markdown, "\n")

	// Collect per-span content, merging spans of the same type in span order.
	order := make([]model.SectionType, 0, len(spans))
	merged := make(map[model.SectionType]*model.SectionItem)

	for _, span := range spans {
		if span.startLine >= len(lines) {
			continue
		}
		content := joinContentLines(lines, span.startLine+1, span.endLine)
		if content == "" {
			continue
		}
		if item, ok := merged[span.section]; ok {
			item.Content = item.Content + "\n\n" + content
			continue
		}
		order = append(order, span.section)
		merged[span.section] = &model.SectionItem{
			RawHeading: span.rawHeading,
			Type:       span.section,
			Content:    content,
		}
	}

	var items []model.SectionItem
	for _, sectionType := range order {
		item := merged[sectionType]
		item.Confidence = sectionConfidence(item.Type)
		item.Diagnostics = buildDiagnostics(item.Type, item.RawHeading, item.Content)
		items = append(items, *item)
	}

	if len(items) == 0 {
		fallback := strings.TrimSpace(markdown)
		if fallback == "" {
			return nil
		}
		items = append(items, model.SectionItem{
			Type:        model.SectionGeneral,
			Content:     fallback,
			Confidence:  fallbackConfidence,
			Diagnostics: buildDiagnostics(model.SectionGeneral, "", fallback),
		})
	}
	return items
}

func joinContentLines(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	var kept []string
	for i := start; i <= end; i++ {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func sectionConfidence(t model.SectionType) float64 {
	if t == model.SectionGeneral {
		return 0.5
	}
	return 1.0
}

var (
	englishMarkers = []string{"experience", "education", "skills", "university"}
	spanishMarkers = []string{"experiencia", "educación", "habilidades", "universidad"}
)

// detectLanguage counts marker-word hits; ties favor English, no hits at all
// return unknown.
func detectLanguage(text string) model.Language {
	lowered := strings.ToLower(text)

	var english, spanish int
	for _, marker := range englishMarkers {
		if strings.Contains(lowered, marker) {
			english++
		}
	}
	for _, marker := range spanishMarkers {
		if strings.Contains(lowered, marker) {
			spanish++
		}
	}

	switch {
	case english == 0 && spanish == 0:
		return model.LanguageUnknown
	case english >= spanish:
		return model.LanguageEnglish
	default:
		return model.LanguageSpanish
	}
}
