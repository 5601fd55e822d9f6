package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/resume-intake/internal/model"
)

func TestDeriveKey_SignalPriority(t *testing.T) {
	key, reason := DeriveKey("John Doe", "jdoe@example.com", "+14155550100", "text")
	assert.True(t, strings.HasPrefix(key, "candidate:v2:email:"))
	assert.Equal(t, model.KeyReasonEmailPrimary, reason)

	key, reason = DeriveKey("John Doe", "", "+14155550100", "text")
	assert.True(t, strings.HasPrefix(key, "candidate:v2:phone:"))
	assert.Equal(t, model.KeyReasonPhonePrimary, reason)

	key, reason = DeriveKey("John Doe", "", "", "text")
	assert.True(t, strings.HasPrefix(key, "candidate:v2:name:"))
	assert.Equal(t, model.KeyReasonNamePrimary, reason)

	key, reason = DeriveKey("", "", "", "text")
	assert.True(t, strings.HasPrefix(key, "resume_content:"))
	assert.Equal(t, model.KeyReasonContentFallback, reason)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a, _ := DeriveKey("", "jdoe@example.com", "", "")
	b, _ := DeriveKey("", "jdoe@example.com", "", "")
	assert.Equal(t, a, b)

	c, _ := DeriveKey("", "other@example.com", "", "")
	assert.NotEqual(t, a, c)
}

func TestDeriveKey_NameCaseInsensitive(t *testing.T) {
	a, _ := DeriveKey("John Doe", "", "", "")
	b, _ := DeriveKey("JOHN DOE", "", "", "")
	assert.Equal(t, a, b)
}

func TestDeriveKey_NormalizesSignals(t *testing.T) {
	a, _ := DeriveKey("", "jdoe@example.com", "", "")
	b, _ := DeriveKey("", "mailto:JDoe@Example.COM", "", "")
	assert.Equal(t, a, b, "raw and normalized email derive the same key")

	c, _ := DeriveKey("", "", "+14155550100", "")
	d, _ := DeriveKey("", "", "+1 (415) 555-0100", "")
	assert.Equal(t, c, d, "raw and normalized phone derive the same key")
}

func TestDeriveKey_UnusableSignalFallsThrough(t *testing.T) {
	key, reason := DeriveKey("John Doe", "not-an-email", "", "text")
	assert.True(t, strings.HasPrefix(key, "candidate:v2:name:"))
	assert.Equal(t, model.KeyReasonNamePrimary, reason)

	key, reason = DeriveKey("John Doe", "", "555-0100", "text")
	assert.True(t, strings.HasPrefix(key, "candidate:v2:name:"), "too-short phone is skipped")
	assert.Equal(t, model.KeyReasonNamePrimary, reason)

	key, reason = DeriveKey("***", "", "", "text")
	assert.True(t, strings.HasPrefix(key, "resume_content:"))
	assert.Equal(t, model.KeyReasonContentFallback, reason)
}

func TestContentHash_NormalizesWhitespaceAndCase(t *testing.T) {
	a := ContentHash("John  Doe\n\tEngineer")
	b := ContentHash("john doe engineer")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestExtractEmails(t *testing.T) {
	text := "Contact: mailto:JDoe@Example.COM or jdoe@example.com, also ana.gomez@mail.co."
	emails := ExtractEmails(text)
	assert.Equal(t, []string{"ana.gomez@mail.co", "jdoe@example.com"}, emails)
}

func TestExtractPhones(t *testing.T) {
	text := "Tel: +1 (415) 555-0100 / alt 415.555.0100, year 2024"
	phones := ExtractPhones(text)
	assert.Contains(t, phones, "+14155550100")
	assert.NotContains(t, phones, "2024")
}

func TestExtractPhones_RejectsEmbeddedDigitRuns(t *testing.T) {
	assert.Empty(t, ExtractPhones("order id A4155550100 in the archive"))
	assert.Empty(t, ExtractPhones("see /reports/4155550100x for details"))
	assert.Equal(t, []string{"4155550100"}, ExtractPhones("call 4155550100."))
}

func TestEstimateNameQuality(t *testing.T) {
	assert.Equal(t, 0.0, EstimateNameQuality(""))
	assert.Equal(t, 0.2, EstimateNameQuality("Experience"))
	assert.Equal(t, 0.2, EstimateNameQuality("x y z q w"))
	assert.Equal(t, 0.75, EstimateNameQuality("John Doe"))
	assert.Greater(t, EstimateNameQuality("Maria Fernanda Lopez"), EstimateNameQuality("Buenos Aires"))
}

func TestIsValidPersonName(t *testing.T) {
	assert.True(t, IsValidPersonName("John Doe"))
	assert.True(t, IsValidPersonName("MARIA LOPEZ"))
	assert.False(t, IsValidPersonName("John"))
	assert.False(t, IsValidPersonName("Work Experience"))
	assert.False(t, IsValidPersonName("Buenos Aires"))
	assert.False(t, IsValidPersonName("Agent 007 Bond"))
	assert.False(t, IsValidPersonName("john doe"))
}

func TestRulesResolver_PicksHeaderName(t *testing.T) {
	doc := model.ParsedDocument{
		RawText: "# John Doe\njdoe@example.com\n+1 415 555 0100\n\n# Experience\nTeacher",
	}
	res, err := RulesResolver{}.ResolveName(context.Background(), doc, []string{"jdoe@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", res.Name)
	assert.GreaterOrEqual(t, res.Confidence, 0.6)
	require.NotEmpty(t, res.Candidates)
	assert.Contains(t, res.Candidates[0].Reasons, "title_case_tokens")
	assert.Contains(t, res.Candidates[0].Reasons, "early_line")
}

func TestRulesResolver_RejectsSectionHeadings(t *testing.T) {
	doc := model.ParsedDocument{
		RawText: "# Work Experience\n## Buenos Aires\nTop Skills\n",
	}
	res, err := RulesResolver{}.ResolveName(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Name)
	assert.Less(t, res.Confidence, nameRejectScore)
	for _, cand := range res.Candidates {
		assert.Zero(t, cand.Score, "line %q should hard-reject", cand.Line)
	}
}

func TestRulesResolver_StripsTrailingSeparatorClause(t *testing.T) {
	doc := model.ParsedDocument{RawText: "Jane Roe | Senior Data Engineer\n"}
	res, err := RulesResolver{}.ResolveName(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", res.Name)
}

func TestNormalizeCandidateLine(t *testing.T) {
	assert.Equal(t, "Jane Roe", normalizeCandidateLine("# **Jane Roe** - CABA"))
	assert.Equal(t, "Ana Gomez", normalizeCandidateLine("[Ana Gomez](https://example.com)"))
}

func TestNormalizeCandidateLine_CutsAtFirstSeparatorOnly(t *testing.T) {
	assert.Equal(t, "Jane Roe - PhD", normalizeCandidateLine("Jane Roe - PhD | Data Engineer"))
	assert.Equal(t, "Ana Gomez", normalizeCandidateLine("Ana Gomez — Analyst - Fintech"))
}

func TestEmailAlignmentBonus(t *testing.T) {
	parts := []string{"John", "Doe"}
	assert.Equal(t, 0.15, emailAlignmentBonus(parts, []string{"john.doe@example.com"}))
	assert.Equal(t, 0.15, emailAlignmentBonus(parts, []string{"johndoe@example.com"}))
	assert.Equal(t, 0.12, emailAlignmentBonus(parts, []string{"jdoe@example.com"}))
	assert.Zero(t, emailAlignmentBonus(parts, []string{"unrelated@example.com"}))
	assert.Zero(t, emailAlignmentBonus([]string{"Alice", "Walker"}, []string{"walker@example.com"}),
		"a single matching token is not alignment")
}

func TestRulesResolver_RejectReportsRoundedScore(t *testing.T) {
	doc := model.ParsedDocument{
		RawText: "Top Skills\nPublications\nLanguages\nCertifications\nJOHN DOE",
	}
	res, err := RulesResolver{}.ResolveName(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Name)
	assert.Equal(t, 0.25, res.Confidence, "best rejected score is still reported, rounded")
	assert.NotEmpty(t, res.Reason)
}

func TestExtract_EmailDocument(t *testing.T) {
	doc := model.ParsedDocument{
		SourceID:  "a.pdf",
		RawText:   "# John Doe\njdoe@example.com\n+1 415 555 0100\n\n# Experience\nTeacher",
		CleanText: "John Doe\njdoe@example.com\n+1 415 555 0100",
	}
	extractor := NewExtractor(nil)
	cand := extractor.Extract(context.Background(), doc)

	assert.Equal(t, "John Doe", cand.Name)
	assert.Equal(t, "jdoe@example.com", cand.Email)
	assert.Equal(t, "+14155550100", cand.Phone)
	assert.True(t, strings.HasPrefix(cand.IdentityKey, "candidate:v2:email:"))
	assert.Equal(t, model.KeyReasonEmailPrimary, cand.KeyReason)
	assert.Greater(t, cand.Confidence, 0.9)
	assert.Equal(t, model.EscalationNotAttempted, cand.Signals.NameResolution.FallbackStatus)
	assert.Contains(t, cand.Signals.ConfidenceReasons, "email_present")
}

func TestExtract_ContactSignalsComeFromCleanText(t *testing.T) {
	doc := model.ParsedDocument{
		SourceID:  "d.pdf",
		RawText:   "# John Doe\n| +1 415 | 555 0100 |\n| jdoe@example.com |",
		CleanText: "John Doe\n+1 415 - 555 0100\njdoe@example.com",
	}
	cand := NewExtractor(nil).Extract(context.Background(), doc)

	assert.Equal(t, "jdoe@example.com", cand.Email)
	assert.Equal(t, "+14155550100", cand.Phone, "phone split by table cells is only whole in the clean text")

	bare := model.ParsedDocument{
		SourceID:  "e.pdf",
		RawText:   "# Jane Roe\n+1 415 555 0100",
		CleanText: "Jane Roe",
	}
	cand = NewExtractor(nil).Extract(context.Background(), bare)
	assert.Empty(t, cand.Phone, "raw text is not scanned for contact signals")
}

func TestExtract_NoSignalsFallsBackToContentKey(t *testing.T) {
	doc := model.ParsedDocument{
		SourceID:  "b.pdf",
		RawText:   "experience at a large company\nmany responsibilities",
		CleanText: "experience at a large company many responsibilities",
	}
	cand := NewExtractor(nil).Extract(context.Background(), doc)

	assert.Empty(t, cand.Name)
	assert.Empty(t, cand.Email)
	assert.Empty(t, cand.Phone)
	assert.True(t, strings.HasPrefix(cand.IdentityKey, "resume_content:"))
	assert.Equal(t, model.KeyReasonContentFallback, cand.KeyReason)
	assert.LessOrEqual(t, cand.Confidence, 0.35)
	assert.Contains(t, cand.Signals.ConfidenceReasons, "no_signals_floor")
}

func TestExtract_Deterministic(t *testing.T) {
	doc := model.ParsedDocument{
		RawText:   "# John Doe\njdoe@example.com",
		CleanText: "John Doe jdoe@example.com",
	}
	extractor := NewExtractor(nil)
	first := extractor.Extract(context.Background(), doc)
	second := extractor.Extract(context.Background(), doc)
	assert.Equal(t, first, second)
}

type stubResolver struct {
	res Resolution
	err error
}

func (s stubResolver) ResolveName(context.Context, model.ParsedDocument, []string, []string) (Resolution, error) {
	return s.res, s.err
}

// lowConfidenceDoc has an email (so escalation triggers) but no header line
// that the rules resolver accepts.
func lowConfidenceDoc() model.ParsedDocument {
	return model.ParsedDocument{
		SourceID:  "c.pdf",
		RawText:   "Top Skills\ncontact@example.com\nBuenos Aires",
		CleanText: "Top Skills contact@example.com Buenos Aires",
	}
}

func TestExtract_EscalationAccepted(t *testing.T) {
	ext := NewExtractor(stubResolver{res: Resolution{Name: "Jane Smith", Confidence: 0.9, Reason: "header"}})
	cand := ext.Extract(context.Background(), lowConfidenceDoc())

	assert.Equal(t, "Jane Smith", cand.Name)
	assert.Equal(t, 0.9, cand.Signals.NameConfidence)
	assert.True(t, cand.Signals.ModelFallbackUsed)
	assert.Equal(t, model.EscalationAccepted, cand.Signals.NameResolution.FallbackStatus)
	assert.Equal(t, "model_llm", cand.Signals.NameResolution.FallbackMethod)
}

func TestExtract_EscalationRejectedBelowThreshold(t *testing.T) {
	ext := NewExtractor(stubResolver{res: Resolution{Name: "Jane Smith", Confidence: 0.5}})
	cand := ext.Extract(context.Background(), lowConfidenceDoc())

	assert.Empty(t, cand.Name)
	assert.False(t, cand.Signals.ModelFallbackUsed)
	assert.Equal(t, model.EscalationRejected, cand.Signals.NameResolution.FallbackStatus)
	assert.Equal(t, "below_accept_threshold", cand.Signals.NameResolution.FallbackReason)
}

func TestExtract_EscalationRejectedInvalidShape(t *testing.T) {
	ext := NewExtractor(stubResolver{res: Resolution{Name: "Buenos Aires", Confidence: 0.95}})
	cand := ext.Extract(context.Background(), lowConfidenceDoc())

	assert.Empty(t, cand.Name)
	assert.Equal(t, model.EscalationRejected, cand.Signals.NameResolution.FallbackStatus)
	assert.Equal(t, "invalid_name_shape", cand.Signals.NameResolution.FallbackReason)
}

func TestExtract_EscalationErrorDegradesToRules(t *testing.T) {
	ext := NewExtractor(stubResolver{err: eris.New("api unavailable")})
	cand := ext.Extract(context.Background(), lowConfidenceDoc())

	assert.Empty(t, cand.Name)
	assert.Equal(t, "contact@example.com", cand.Email)
	assert.Equal(t, model.EscalationError, cand.Signals.NameResolution.FallbackStatus)
	assert.True(t, strings.HasPrefix(cand.IdentityKey, "candidate:v2:email:"))
}

func TestExtract_NoEscalationWhenRulesConfident(t *testing.T) {
	doc := model.ParsedDocument{
		RawText:   "# John Doe\njdoe@example.com",
		CleanText: "John Doe",
	}
	ext := NewExtractor(stubResolver{err: eris.New("should not be called")})
	cand := ext.Extract(context.Background(), doc)

	assert.Equal(t, "John Doe", cand.Name)
	assert.Equal(t, model.EscalationNotAttempted, cand.Signals.NameResolution.FallbackStatus)
}

func TestScoreIdentityConfidence(t *testing.T) {
	score, _ := scoreIdentityConfidence("a@b.co", "+14155550100", "John Doe", 0.8)
	assert.Equal(t, 0.97, score)

	score, reasons := scoreIdentityConfidence("", "", "John Doe", 1.0)
	assert.Equal(t, 0.3, score)
	assert.Equal(t, []string{"name_present", "name_confidence"}, reasons)

	score, reasons = scoreIdentityConfidence("", "", "", 0)
	assert.Equal(t, 0.05, score)
	assert.Equal(t, []string{"no_signals_floor"}, reasons)
}
