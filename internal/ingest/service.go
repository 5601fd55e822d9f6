// Package ingest orchestrates the intake of resume documents: load, parse,
// dedup, identity extraction, candidate reconciliation and persistence.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/loader"
	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/parser"
	"github.com/hireloop/resume-intake/internal/reconcile"
	"github.com/hireloop/resume-intake/internal/store"
	"github.com/hireloop/resume-intake/pkg/llm"
)

const (
	// DefaultSectionAcceptThreshold is the minimum model confidence for a
	// section reclassification to override the rule-based type.
	DefaultSectionAcceptThreshold = 0.75
	// DefaultSectionExcerptChars bounds how much section content is sent to
	// the model for classification.
	DefaultSectionExcerptChars = 700
)

// Service ingests documents end to end. LLM may be nil, which disables
// section reclassification (identity escalation is governed separately by
// the Extractor).
type Service struct {
	Store     store.Store
	Loader    loader.Loader
	Parser    *parser.Parser
	Extractor *identity.Extractor
	LLM       llm.Client
	Logger    *zap.Logger

	SectionAcceptThreshold float64
	SectionExcerptChars    int

	reconciler *reconcile.Reconciler
}

// New creates a Service with default thresholds.
func New(st store.Store, ld loader.Loader, extractor *identity.Extractor, client llm.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.L()
	}
	return &Service{
		Store:                  st,
		Loader:                 ld,
		Parser:                 parser.New(),
		Extractor:              extractor,
		LLM:                    client,
		Logger:                 logger,
		SectionAcceptThreshold: DefaultSectionAcceptThreshold,
		SectionExcerptChars:    DefaultSectionExcerptChars,
		reconciler:             reconcile.New(logger),
	}
}

// IngestFile runs one document through the full pipeline. Failures are
// reported in the result rather than returned; every document gets a
// terminal status.
func (s *Service) IngestFile(ctx context.Context, path string) model.IngestResult {
	sourceID := filepath.Base(path)
	result := model.IngestResult{SourceID: sourceID}

	markdown, err := s.Loader.ExtractMarkdown(ctx, path)
	if err != nil {
		return s.failed(result, "load", err)
	}

	doc := s.Parser.Parse(markdown, sourceID)

	existing, err := s.Store.GetResumeBySourceID(ctx, sourceID)
	if err != nil {
		return s.failed(result, "store", err)
	}
	if existing != nil {
		result.Status = model.IngestStatusSkippedResume
		result.CandidateID = existing.CandidateID
		result.ResumeID = existing.ID
		return result
	}

	contentHash := identity.ContentHash(doc.CleanText)
	duplicate, err := s.Store.GetResumeByContentHash(ctx, contentHash)
	if err != nil {
		return s.failed(result, "store", err)
	}
	if duplicate != nil {
		result.Status = model.IngestStatusSkippedContent
		result.CandidateID = duplicate.CandidateID
		result.ResumeID = duplicate.ID
		return result
	}

	ident := s.Extractor.Extract(ctx, doc)
	result.IdentityConfidence = ident.Confidence

	sections, avgConfidence := s.buildSections(ctx, doc)
	result.SectionCount = len(sections)
	result.AvgSectionConfidence = avgConfidence

	err = s.Store.InTx(ctx, func(tx store.Store) error {
		candidate, _, err := s.reconciler.GetOrCreate(ctx, tx, ident, doc.Links)
		if err != nil {
			return err
		}
		result.CandidateID = candidate.ID

		resume, err := tx.CreateResume(ctx, model.Resume{
			CandidateID: candidate.ID,
			SourceID:    sourceID,
			ContentHash: contentHash,
			RawText:     doc.RawText,
			Parsed:      buildSnapshot(doc, ident),
			Language:    doc.Language,
		})
		if err != nil {
			return err
		}
		result.ResumeID = resume.ID

		for i := range sections {
			sections[i].ResumeID = resume.ID
		}
		return tx.CreateSections(ctx, sections)
	})
	if err != nil {
		// A concurrent ingest of the same document between the dedup check
		// and the insert surfaces as a duplicate key on the resume row. Look
		// the winner up to report which dedup axis it landed on.
		if eris.Is(err, store.ErrDuplicateKey) {
			return s.resolveDuplicate(ctx, result, sourceID, contentHash)
		}
		return s.failed(result, "store", err)
	}

	result.Status = model.IngestStatusIngested
	s.Logger.Info("ingested document",
		zap.String("source_id", sourceID),
		zap.Int64("candidate_id", result.CandidateID),
		zap.Int64("resume_id", result.ResumeID),
		zap.Int("sections", result.SectionCount),
		zap.Float64("identity_confidence", result.IdentityConfidence))
	return result
}

// resolveDuplicate classifies a duplicate-key insert loss by re-running the
// dedup lookups against the row the concurrent ingest committed.
func (s *Service) resolveDuplicate(ctx context.Context, result model.IngestResult, sourceID, contentHash string) model.IngestResult {
	winner, err := s.Store.GetResumeBySourceID(ctx, sourceID)
	if err != nil {
		return s.failed(result, "store", err)
	}
	if winner != nil {
		result.Status = model.IngestStatusSkippedResume
		result.CandidateID = winner.CandidateID
		result.ResumeID = winner.ID
		return result
	}

	winner, err = s.Store.GetResumeByContentHash(ctx, contentHash)
	if err != nil {
		return s.failed(result, "store", err)
	}
	if winner != nil {
		result.Status = model.IngestStatusSkippedContent
		result.CandidateID = winner.CandidateID
		result.ResumeID = winner.ID
		return result
	}

	return s.failed(result, "store", eris.New("ingest: duplicate key but no matching resume row"))
}

func (s *Service) failed(result model.IngestResult, errorType string, err error) model.IngestResult {
	result.Status = model.IngestStatusError
	result.ErrorType = errorType
	result.Error = err.Error()
	s.Logger.Warn("ingest failed",
		zap.String("source_id", result.SourceID),
		zap.String("error_type", errorType),
		zap.Error(err))
	return result
}

// buildSections converts parsed section items into persistable rows, routing
// low-confidence sections through the model when one is configured. Returns
// the rows and the average final section confidence.
func (s *Service) buildSections(ctx context.Context, doc model.ParsedDocument) ([]model.ResumeSection, float64) {
	var sections []model.ResumeSection
	var confidenceSum float64

	for _, item := range doc.Sections {
		section := model.ResumeSection{
			Type:    item.Type,
			Content: item.Content,
			Tokens:  len(strings.Fields(item.Content)),
			Metadata: model.SectionMetadata{
				ParserVersion:          doc.ParserVersion,
				SectionConfidence:      item.Confidence,
				DiagnosticFlags:        item.Diagnostics.Flags,
				WordCount:              item.Diagnostics.WordCount,
				HeadingMappedToGeneral: item.Diagnostics.HeadingMappedToGeneral,
				Recategorization:       item.Diagnostics.Recategorization,
				OriginalType:           item.Type,
			},
		}

		if s.shouldRouteSection(item) {
			s.routeSection(ctx, doc, item, &section)
		}

		confidenceSum += section.Metadata.SectionConfidence
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		return nil, 0
	}
	return sections, confidenceSum / float64(len(sections))
}

// Only sections the rules could not type confidently are worth a model
// call.
func (s *Service) shouldRouteSection(item model.SectionItem) bool {
	return s.LLM != nil && item.Confidence < 1.0
}

// routeSection asks the model to classify one section. The routed flag marks
// every model invocation, accepted or not; the rule-derived section
// confidence is kept either way.
func (s *Service) routeSection(ctx context.Context, doc model.ParsedDocument, item model.SectionItem, section *model.ResumeSection) {
	section.Metadata.RoutedToModel = true

	res, err := s.LLM.ClassifySection(ctx, llm.SectionRequest{
		Heading:        item.RawHeading,
		ContentExcerpt: excerpt(item.Content, s.excerptChars()),
		Language:       doc.Language,
	})
	if err != nil {
		s.Logger.Warn("section classification failed",
			zap.String("source_id", doc.SourceID),
			zap.String("section_type", string(item.Type)),
			zap.Error(err))
		return
	}

	section.Metadata.ModelType = res.SectionType
	confidence := res.Confidence
	section.Metadata.ModelConfidence = &confidence

	if res.Confidence >= s.acceptThreshold() && res.SectionType != item.Type {
		section.Type = res.SectionType
	}
}

func (s *Service) acceptThreshold() float64 {
	if s.SectionAcceptThreshold > 0 {
		return s.SectionAcceptThreshold
	}
	return DefaultSectionAcceptThreshold
}

func (s *Service) excerptChars() int {
	if s.SectionExcerptChars > 0 {
		return s.SectionExcerptChars
	}
	return DefaultSectionExcerptChars
}

func excerpt(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

func buildSnapshot(doc model.ParsedDocument, ident model.IdentityCandidate) model.ResumeSnapshot {
	names := make([]model.SectionType, 0, len(doc.Sections))
	for _, item := range doc.Sections {
		names = append(names, item.Type)
	}
	return model.ResumeSnapshot{
		CleanText:     doc.CleanText,
		Links:         doc.Links,
		ParserVersion: doc.ParserVersion,
		SectionNames:  names,
		Identity: model.IdentitySnapshot{
			IdentityKey: ident.IdentityKey,
			KeyReason:   ident.KeyReason,
			Name:        ident.Name,
			Email:       ident.Email,
			Phone:       ident.Phone,
			Confidence:  ident.Confidence,
			Signals:     ident.Signals,
		},
	}
}
