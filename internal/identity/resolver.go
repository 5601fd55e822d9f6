package identity

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/textnorm"
	"github.com/hireloop/resume-intake/pkg/llm"
)

const (
	defaultHeaderLines = 8
	nameRejectScore    = 0.35
)

// Resolution is a resolver's answer: a normalized name (empty when nothing
// credible was found), a confidence in [0,1], and the scored candidate lines
// that informed the decision.
type Resolution struct {
	Name       string
	Confidence float64
	Candidates []model.NameCandidate
	Reason     string
}

// Resolver extracts a person name from resume text.
type Resolver interface {
	ResolveName(ctx context.Context, doc model.ParsedDocument, emails, phones []string) (Resolution, error)
}

// RulesResolver scores the first lines of a document with deterministic
// heuristics. It never fails; an empty Resolution.Name means no line scored
// above the reject threshold.
type RulesResolver struct {
	// MaxLines bounds how many non-blank lines are scored. Zero means the
	// default of 8.
	MaxLines int
}

func (r RulesResolver) ResolveName(_ context.Context, doc model.ParsedDocument, emails, _ []string) (Resolution, error) {
	maxLines := r.MaxLines
	if maxLines <= 0 {
		maxLines = defaultHeaderLines
	}

	lines := headerLines(doc.RawText, maxLines)
	res := Resolution{}
	for idx, line := range lines {
		candidate := normalizeCandidateLine(line)
		score, reasons := scoreNameLine(candidate, idx, emails)
		res.Candidates = append(res.Candidates, model.NameCandidate{
			Line:      line,
			Candidate: candidate,
			Score:     score,
			Reasons:   reasons,
		})
		if score > res.Confidence {
			res.Confidence = score
			res.Name = candidate
		}
	}

	res.Confidence = round4(res.Confidence)
	if res.Confidence < nameRejectScore {
		res.Name = ""
		res.Reason = "no header line scored above reject threshold"
		return res, nil
	}
	res.Name = textnorm.Name(res.Name)
	return res, nil
}

// headerLines returns the first max non-blank lines of the raw text.
func headerLines(raw string, max int) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
		if len(lines) >= max {
			break
		}
	}
	return lines
}

var candidateSeparators = []string{" | ", " — ", " – ", " - "}

// normalizeCandidateLine strips markdown decoration and trailing separator
// clauses ("Jane Doe | Data Engineer" keeps only "Jane Doe").
func normalizeCandidateLine(line string) string {
	cleaned := textnorm.StripLinePrefix(line)
	cleaned = markdownLinkRE.ReplaceAllString(cleaned, "$1")
	// Cut once, at the first separator kind present. "A - B | C" keeps
	// "A - B", not "A".
	for _, sep := range candidateSeparators {
		if i := strings.Index(cleaned, sep); i >= 0 {
			cleaned = cleaned[:i]
			break
		}
	}
	cleaned = strings.Trim(cleaned, " -|,;*_`")
	return textnorm.Whitespace(cleaned)
}

// scoreNameLine scores one normalized header line. Hard rejections return 0
// with a single reason code; otherwise the additive score is clamped to [0,1]
// and every contributing signal is recorded.
func scoreNameLine(candidate string, index int, emails []string) (float64, []string) {
	if candidate == "" {
		return 0, []string{"empty_after_normalization"}
	}
	runeLen := len([]rune(candidate))
	if runeLen < 3 || runeLen > 80 {
		return 0, []string{"length_out_of_range"}
	}
	parts := strings.Split(candidate, " ")
	if len(parts) < 2 || len(parts) > 4 {
		return 0, []string{"token_count_out_of_range"}
	}
	lowered := strings.ToLower(candidate)
	if containsAny(lowered, nonNameSectionWords) {
		return 0, []string{"section_keyword"}
	}
	if containsAny(lowered, nonNamePhrases) {
		return 0, []string{"non_name_phrase"}
	}
	if containsAny(lowered, locationHints) {
		return 0, []string{"location_hint"}
	}
	if ratio(candidate, unicode.IsDigit) > 0.1 {
		return 0, []string{"digit_heavy"}
	}
	if ratio(candidate, isScoringPunct) > 0.1 {
		return 0, []string{"punctuation_heavy"}
	}

	nameShaped := 0
	strictTitle := 0
	for _, part := range parts {
		if isNameShapedToken(part) {
			nameShaped++
		}
		if isStrictTitleCase(part) {
			strictTitle++
		}
	}
	if nameShaped < 2 {
		return 0, []string{"too_few_name_tokens"}
	}

	score := 0.25
	reasons := []string{"name_shaped_tokens"}
	if strictTitle >= 2 {
		score += 0.25
		reasons = append(reasons, "title_case_tokens")
	}
	switch {
	case index <= 1:
		score += 0.20
		reasons = append(reasons, "early_line")
	case index <= 3:
		score += 0.10
		reasons = append(reasons, "near_top_line")
	}
	if bonus := emailAlignmentBonus(parts, emails); bonus > 0 {
		score += bonus
		reasons = append(reasons, "email_name_alignment")
	}
	return clamp01(score), reasons
}

func isScoringPunct(r rune) bool {
	return strings.ContainsRune(",;:/|()[]{}", r)
}

func ratio(s string, pred func(rune) bool) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	hits := 0
	for _, r := range runes {
		if pred(r) {
			hits++
		}
	}
	return float64(hits) / float64(len(runes))
}

// emailAlignmentBonus rewards lines whose first and last tokens appear in an
// extracted email's local part: both names or their concatenation 0.15,
// first-initial plus last name 0.12. A single matching token scores nothing.
func emailAlignmentBonus(parts []string, emails []string) float64 {
	if len(emails) == 0 || len(parts) < 2 {
		return 0
	}
	first := strings.ToLower(parts[0])
	last := strings.ToLower(parts[len(parts)-1])
	if len(first) < 2 || len(last) < 2 {
		return 0
	}
	initialLast := first[:1] + last

	best := 0.0
	for _, email := range emails {
		at := strings.Index(email, "@")
		if at <= 0 {
			continue
		}
		local := strings.ToLower(email[:at])
		switch {
		case strings.Contains(local, first) && strings.Contains(local, last):
			best = max(best, 0.15)
		case strings.Contains(local, first+last) || strings.Contains(local, last+first):
			best = max(best, 0.15)
		case strings.Contains(local, initialLast):
			best = max(best, 0.12)
		}
	}
	return best
}

// ModelResolver escalates name resolution to an external model. The answer
// is still gated by the caller's accept threshold and shape checks.
type ModelResolver struct {
	Client   llm.Client
	MaxLines int
}

func (m ModelResolver) ResolveName(ctx context.Context, doc model.ParsedDocument, emails, phones []string) (Resolution, error) {
	maxLines := m.MaxLines
	if maxLines <= 0 {
		maxLines = 10
	}
	res, err := m.Client.ResolveName(ctx, llm.NameRequest{
		CandidateLines: headerLines(doc.RawText, maxLines),
		Emails:         emails,
		Phones:         phones,
		Language:       doc.Language,
	})
	if err != nil {
		return Resolution{}, eris.Wrap(err, "identity: model name resolution")
	}
	return Resolution{
		Name:       textnorm.Name(res.Name),
		Confidence: round4(clamp01(res.Confidence)),
		Reason:     res.Reason,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
