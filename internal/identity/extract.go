// Package identity turns parsed resume text into identity signals (name,
// emails, phones), a confidence score, and a stable versioned identity key.
package identity

import (
	"context"
	"math"
	"regexp"
	"sort"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/textnorm"
)

const (
	// DefaultTriggerThreshold is the rules confidence below which model
	// escalation is attempted.
	DefaultTriggerThreshold = 0.60
	// DefaultAcceptThreshold is the minimum model confidence for an
	// escalated name to replace the rules result.
	DefaultAcceptThreshold = 0.70
)

var (
	emailRE        = regexp.MustCompile(`(?i)(?:mailto:)?([A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,})`)
	phoneRE        = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
	markdownLinkRE = regexp.MustCompile(`\[([^\[\]]+)\]\([^()]*\)`)
)

// Extractor derives an IdentityCandidate from a parsed document. Rules is
// always consulted; Model is optional and only tried when the rules
// confidence falls below TriggerThreshold and at least one contact signal
// exists.
type Extractor struct {
	Rules            Resolver
	Model            Resolver
	TriggerThreshold float64
	AcceptThreshold  float64
	Logger           *zap.Logger
}

// NewExtractor returns an Extractor with the default rules resolver and
// thresholds. fallback may be nil to disable escalation.
func NewExtractor(fallback Resolver) *Extractor {
	return &Extractor{
		Rules:            RulesResolver{},
		Model:            fallback,
		TriggerThreshold: DefaultTriggerThreshold,
		AcceptThreshold:  DefaultAcceptThreshold,
		Logger:           zap.L(),
	}
}

// Extract resolves contact signals and a name, scores overall identity
// confidence, and derives the identity key. It never fails: model errors
// degrade to the rules result and are recorded in the signals.
func (e *Extractor) Extract(ctx context.Context, doc model.ParsedDocument) model.IdentityCandidate {
	emails := ExtractEmails(doc.CleanText)
	phones := ExtractPhones(doc.CleanText)

	rules := e.Rules
	if rules == nil {
		rules = RulesResolver{}
	}
	ruleRes, _ := rules.ResolveName(ctx, doc, emails, phones)

	resolution := model.NameResolution{
		PrimaryMethod:     "rules",
		PrimaryConfidence: ruleRes.Confidence,
		Candidates:        ruleRes.Candidates,
		FallbackStatus:    model.EscalationNotAttempted,
		TriggerThreshold:  e.triggerThreshold(),
		AcceptThreshold:   e.acceptThreshold(),
	}

	name := ruleRes.Name
	nameConfidence := ruleRes.Confidence
	modelUsed := false

	if e.shouldEscalate(ruleRes.Confidence, emails, phones) {
		resolution.FallbackMethod = "model_llm"
		modelRes, err := e.Model.ResolveName(ctx, doc, emails, phones)
		switch {
		case err != nil:
			resolution.FallbackStatus = model.EscalationError
			resolution.FallbackReason = err.Error()
			e.logger().Warn("model name escalation failed",
				zap.String("source_id", doc.SourceID),
				zap.Error(err))
		case modelRes.Name == "" || !IsValidPersonName(modelRes.Name):
			resolution.FallbackStatus = model.EscalationRejected
			resolution.FallbackReason = "invalid_name_shape"
		case modelRes.Confidence < e.acceptThreshold() || modelRes.Confidence <= ruleRes.Confidence:
			resolution.FallbackStatus = model.EscalationRejected
			resolution.FallbackReason = "below_accept_threshold"
		default:
			resolution.FallbackStatus = model.EscalationAccepted
			resolution.FallbackReason = modelRes.Reason
			name = modelRes.Name
			nameConfidence = modelRes.Confidence
			modelUsed = true
		}
	}

	primaryEmail := ""
	if len(emails) > 0 {
		primaryEmail = emails[0]
	}
	primaryPhone := ""
	if len(phones) > 0 {
		primaryPhone = phones[0]
	}

	confidence, reasons := scoreIdentityConfidence(primaryEmail, primaryPhone, name, nameConfidence)
	key, keyReason := DeriveKey(name, primaryEmail, primaryPhone, doc.CleanText)

	return model.IdentityCandidate{
		Name:        name,
		Email:       primaryEmail,
		Phone:       primaryPhone,
		IdentityKey: key,
		KeyReason:   keyReason,
		Confidence:  confidence,
		Signals: model.IdentitySignals{
			Emails:            emails,
			Phones:            phones,
			NameConfidence:    nameConfidence,
			NameResolution:    resolution,
			ConfidenceReasons: reasons,
			ModelFallbackUsed: modelUsed,
		},
	}
}

func (e *Extractor) shouldEscalate(ruleConfidence float64, emails, phones []string) bool {
	if e.Model == nil {
		return false
	}
	if ruleConfidence >= e.triggerThreshold() {
		return false
	}
	return len(emails) > 0 || len(phones) > 0
}

func (e *Extractor) triggerThreshold() float64 {
	if e.TriggerThreshold > 0 {
		return e.TriggerThreshold
	}
	return DefaultTriggerThreshold
}

func (e *Extractor) acceptThreshold() float64 {
	if e.AcceptThreshold > 0 {
		return e.AcceptThreshold
	}
	return DefaultAcceptThreshold
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.L()
}

// ExtractEmails returns all distinct normalized email addresses found in
// text, sorted ascending.
func ExtractEmails(text string) []string {
	seen := make(map[string]struct{})
	var emails []string
	for _, match := range emailRE.FindAllStringSubmatch(text, -1) {
		normalized := textnorm.Email(match[1])
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		emails = append(emails, normalized)
	}
	sort.Strings(emails)
	return emails
}

// ExtractPhones returns all distinct normalized phone numbers found in text,
// sorted ascending. Digit runs that fail normalization (too short, too long)
// or sit inside a larger word token, like identifiers and URL paths, are
// dropped.
func ExtractPhones(text string) []string {
	seen := make(map[string]struct{})
	var phones []string
	for _, loc := range phoneRE.FindAllStringIndex(text, -1) {
		if hasWordNeighbor(text, loc[0], loc[1]) {
			continue
		}
		normalized := textnorm.Phone(text[loc[0]:loc[1]])
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		phones = append(phones, normalized)
	}
	sort.Strings(phones)
	return phones
}

// hasWordNeighbor reports whether the match at [start,end) directly touches
// a letter, digit or underscore.
func hasWordNeighbor(text string, start, end int) bool {
	if r, size := utf8.DecodeLastRuneInString(text[:start]); size > 0 && isWordRune(r) {
		return true
	}
	if r, size := utf8.DecodeRuneInString(text[end:]); size > 0 && isWordRune(r) {
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// scoreIdentityConfidence combines contact and name signals additively:
// email 0.45, phone 0.25, name presence 0.15 plus 0.15 weighted by name
// confidence. The floor of 0.05 marks documents with no signals at all.
func scoreIdentityConfidence(email, phone, name string, nameConfidence float64) (float64, []string) {
	score := 0.0
	var reasons []string
	if email != "" {
		score += 0.45
		reasons = append(reasons, "email_present")
	}
	if phone != "" {
		score += 0.25
		reasons = append(reasons, "phone_present")
	}
	if name != "" {
		score += 0.15
		reasons = append(reasons, "name_present")
		if nameConfidence > 0 {
			score += 0.15 * clamp01(nameConfidence)
			reasons = append(reasons, "name_confidence")
		}
	}
	if score < 0.05 {
		score = 0.05
		reasons = append(reasons, "no_signals_floor")
	}
	return round4(clamp01(score)), reasons
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
