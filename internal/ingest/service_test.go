package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/loader"
	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/store"
	"github.com/hireloop/resume-intake/pkg/llm"
)

const sampleResume = `# John Doe
jdoe@example.com
+1 415 555 0100

# Experience
Taught mathematics at a secondary school for five years.

# Hobbies
Chess, hiking and amateur radio.
`

type fakeLLM struct {
	section    *llm.SectionResult
	sectionErr error
	calls      int
}

func (f *fakeLLM) ResolveName(context.Context, llm.NameRequest) (*llm.NameResult, error) {
	return nil, eris.New("name resolution not expected in this test")
}

func (f *fakeLLM) ClassifySection(context.Context, llm.SectionRequest) (*llm.SectionResult, error) {
	f.calls++
	if f.sectionErr != nil {
		return nil, f.sectionErr
	}
	return f.section, nil
}

func newTestService(t *testing.T, client llm.Client) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	ld, err := loader.New("local", "", "")
	require.NoError(t, err)

	return New(st, ld, identity.NewExtractor(nil), client, zap.NewNop()), st
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFile_EndToEnd(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "jdoe.md", sampleResume)

	result := svc.IngestFile(ctx, path)
	require.Equal(t, model.IngestStatusIngested, result.Status, result.Error)
	assert.Equal(t, "jdoe.md", result.SourceID)
	assert.Positive(t, result.CandidateID)
	assert.Positive(t, result.ResumeID)
	assert.Greater(t, result.IdentityConfidence, 0.9)

	cand, err := st.GetCandidate(ctx, result.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", cand.Name)
	assert.Equal(t, "jdoe@example.com", cand.Email)

	resume, err := st.GetResumeBySourceID(ctx, "jdoe.md")
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, cand.ID, resume.CandidateID)
	assert.Equal(t, model.KeyReasonEmailPrimary, resume.Parsed.Identity.KeyReason)
	assert.Equal(t, model.LanguageEnglish, resume.Language)

	sections, err := st.ListSections(ctx, resume.ID)
	require.NoError(t, err)
	assert.Equal(t, result.SectionCount, len(sections))

	types := make([]model.SectionType, 0, len(sections))
	for _, section := range sections {
		types = append(types, section.Type)
	}
	assert.Contains(t, types, model.SectionExperience)
}

func TestIngestFile_SkipsExistingSourceID(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "jdoe.md", sampleResume)

	first := svc.IngestFile(ctx, path)
	require.Equal(t, model.IngestStatusIngested, first.Status)

	second := svc.IngestFile(ctx, path)
	assert.Equal(t, model.IngestStatusSkippedResume, second.Status)
	assert.Equal(t, first.ResumeID, second.ResumeID)
}

func TestIngestFile_SkipsDuplicateContent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	first := svc.IngestFile(ctx, writeFile(t, dir, "a.md", sampleResume))
	require.Equal(t, model.IngestStatusIngested, first.Status)

	second := svc.IngestFile(ctx, writeFile(t, dir, "b.md", sampleResume))
	assert.Equal(t, model.IngestStatusSkippedContent, second.Status)
	assert.Equal(t, first.CandidateID, second.CandidateID)
}

func TestIngestFile_SameEmailSharesCandidate(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	other := `# John Doe
jdoe@example.com

# Education
Mathematics degree from a state university.
`
	first := svc.IngestFile(ctx, writeFile(t, dir, "a.md", sampleResume))
	second := svc.IngestFile(ctx, writeFile(t, dir, "b.md", other))

	require.Equal(t, model.IngestStatusIngested, first.Status)
	require.Equal(t, model.IngestStatusIngested, second.Status, second.Error)
	assert.Equal(t, first.CandidateID, second.CandidateID)

	resumes, err := st.ListResumesByCandidate(ctx, first.CandidateID)
	require.NoError(t, err)
	assert.Len(t, resumes, 2)
}

func TestIngestFile_LoadFailure(t *testing.T) {
	svc, _ := newTestService(t, nil)

	result := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	assert.Equal(t, model.IngestStatusError, result.Status)
	assert.Equal(t, "load", result.ErrorType)
	assert.NotEmpty(t, result.Error)
}

func TestIngestFile_SectionReclassification(t *testing.T) {
	client := &fakeLLM{section: &llm.SectionResult{
		SectionType: model.SectionSkills,
		Confidence:  0.9,
		Reason:      "lists abilities",
	}}
	svc, st := newTestService(t, client)
	ctx := context.Background()

	result := svc.IngestFile(ctx, writeFile(t, t.TempDir(), "jdoe.md", sampleResume))
	require.Equal(t, model.IngestStatusIngested, result.Status, result.Error)
	assert.Positive(t, client.calls, "general sections routed to the model")

	sections, err := st.ListSections(ctx, result.ResumeID)
	require.NoError(t, err)

	var routed *model.ResumeSection
	for i := range sections {
		if sections[i].Type != sections[i].Metadata.OriginalType {
			routed = &sections[i]
		}
	}
	require.NotNil(t, routed, "expected one reclassified section")
	assert.True(t, routed.Metadata.RoutedToModel)
	assert.Equal(t, model.SectionSkills, routed.Type)
	assert.Equal(t, model.SectionGeneral, routed.Metadata.OriginalType)
	assert.Equal(t, 0.5, routed.Metadata.SectionConfidence, "rule confidence survives reclassification")
	require.NotNil(t, routed.Metadata.ModelConfidence)
	assert.Equal(t, 0.9, *routed.Metadata.ModelConfidence)
}

func TestIngestFile_SectionReclassificationBelowThreshold(t *testing.T) {
	client := &fakeLLM{section: &llm.SectionResult{
		SectionType: model.SectionSkills,
		Confidence:  0.5,
	}}
	svc, st := newTestService(t, client)
	ctx := context.Background()

	result := svc.IngestFile(ctx, writeFile(t, t.TempDir(), "jdoe.md", sampleResume))
	require.Equal(t, model.IngestStatusIngested, result.Status)

	sections, err := st.ListSections(ctx, result.ResumeID)
	require.NoError(t, err)
	for _, section := range sections {
		assert.Equal(t, section.Metadata.OriginalType, section.Type)
		assert.NotEqual(t, model.SectionSkills, section.Type)
		if section.Metadata.OriginalType == model.SectionGeneral {
			assert.True(t, section.Metadata.RoutedToModel, "model invocation is recorded even when rejected")
			require.NotNil(t, section.Metadata.ModelConfidence)
			assert.Equal(t, 0.5, *section.Metadata.ModelConfidence)
		} else {
			assert.False(t, section.Metadata.RoutedToModel)
		}
	}
}

func TestIngestFile_SectionModelErrorKeepsRuleType(t *testing.T) {
	client := &fakeLLM{sectionErr: eris.New("api unavailable")}
	svc, st := newTestService(t, client)
	ctx := context.Background()

	result := svc.IngestFile(ctx, writeFile(t, t.TempDir(), "jdoe.md", sampleResume))
	require.Equal(t, model.IngestStatusIngested, result.Status, result.Error)

	sections, err := st.ListSections(ctx, result.ResumeID)
	require.NoError(t, err)
	for _, section := range sections {
		assert.Equal(t, section.Metadata.OriginalType, section.Type)
		assert.Nil(t, section.Metadata.ModelConfidence)
		if section.Metadata.OriginalType == model.SectionGeneral {
			assert.True(t, section.Metadata.RoutedToModel)
		} else {
			assert.False(t, section.Metadata.RoutedToModel)
		}
	}
}

// contentRaceStore opens a race window: the first content-hash lookup sees
// nothing, the insert then collides with a concurrently committed row, and
// later lookups see that winner.
type contentRaceStore struct {
	store.Store
	winner  *model.Resume
	lookups int
}

func (s *contentRaceStore) GetResumeByContentHash(context.Context, string) (*model.Resume, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, nil
	}
	return s.winner, nil
}

func (s *contentRaceStore) CreateResume(context.Context, model.Resume) (*model.Resume, error) {
	return nil, eris.Wrap(store.ErrDuplicateKey, "store: create resume")
}

func (s *contentRaceStore) InTx(_ context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func TestIngestFile_ConcurrentContentDuplicateReportsWinner(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	first := svc.IngestFile(ctx, writeFile(t, dir, "a.md", sampleResume))
	require.Equal(t, model.IngestStatusIngested, first.Status, first.Error)

	winner, err := st.GetResumeBySourceID(ctx, "a.md")
	require.NoError(t, err)
	require.NotNil(t, winner)

	svc.Store = &contentRaceStore{Store: st, winner: winner}

	result := svc.IngestFile(ctx, writeFile(t, dir, "b.md", sampleResume))
	assert.Equal(t, model.IngestStatusSkippedContent, result.Status)
	assert.Equal(t, winner.CandidateID, result.CandidateID)
	assert.Equal(t, winner.ID, result.ResumeID)
}

func TestIngestDir(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dir := t.TempDir()

	writeFile(t, dir, "a.md", sampleResume)
	writeFile(t, dir, "nested/b.md", "# Jane Roe\njroe@example.com\n\n# Skills\nGo, SQL\n")
	writeFile(t, dir, "ignored.docx", "binary")

	report, err := svc.IngestDir(context.Background(), dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Ingested)
	assert.Zero(t, report.Errors)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "a.md", report.Results[0].SourceID, "results sorted by source id")
}

func TestBatchReport_AddAndSummary(t *testing.T) {
	report := &BatchReport{}
	report.Add(model.IngestResult{Status: model.IngestStatusIngested, SourceID: "a.md"})
	report.Add(model.IngestResult{Status: model.IngestStatusError, SourceID: "b.md", ErrorType: "load", Error: "boom"})
	report.Add(model.IngestResult{Status: model.IngestStatusSkippedContent, SourceID: "c.md"})

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, map[string]int{"load": 1}, report.ErrorTypes)

	summary := report.Summary()
	assert.Contains(t, summary, "processed 3 documents")
	assert.Contains(t, summary, "errors[load]: 1")
	assert.Contains(t, summary, "b.md: boom")
}
