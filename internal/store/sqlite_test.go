package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/resume-intake/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCandidate(key string) model.Candidate {
	return model.Candidate{
		IdentityKey: key,
		Name:        "John Doe",
		Email:       "jdoe@example.com",
		Phone:       "+14155550100",
		Links:       []string{"https://example.com/jdoe"},
	}
}

func testResume(candidateID int64, sourceID, hash string) model.Resume {
	return model.Resume{
		CandidateID: candidateID,
		SourceID:    sourceID,
		ContentHash: hash,
		RawText:     "# John Doe",
		Parsed: model.ResumeSnapshot{
			CleanText:     "John Doe",
			ParserVersion: "markdown.v3",
			SectionNames:  []model.SectionType{model.SectionExperience},
		},
		Language: model.LanguageEnglish,
	}
}

func TestSQLite_Candidate_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	got, err := st.GetCandidate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, []string{"https://example.com/jdoe"}, got.Links)

	byKey, err := st.GetCandidateByIdentityKey(ctx, "candidate:v2:email:abc")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, created.ID, byKey.ID)
}

func TestSQLite_Candidate_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetCandidate(ctx, 999)
	assert.True(t, eris.Is(err, ErrNotFound))

	byKey, err := st.GetCandidateByIdentityKey(ctx, "candidate:v2:email:absent")
	require.NoError(t, err)
	assert.Nil(t, byKey)
}

func TestSQLite_Candidate_DuplicateIdentityKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)

	_, err = st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateKey))
}

func TestSQLite_Candidate_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)

	created.Name = "John A Doe"
	created.Links = append(created.Links, "https://example.com/other")
	require.NoError(t, st.UpdateCandidate(ctx, created))

	got, err := st.GetCandidate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "John A Doe", got.Name)
	assert.Len(t, got.Links, 2)

	missing := *created
	missing.ID = 999
	assert.True(t, eris.Is(st.UpdateCandidate(ctx, &missing), ErrNotFound))
}

func TestSQLite_Candidate_ListAndDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3"} {
		_, err := st.CreateCandidate(ctx, model.Candidate{IdentityKey: key})
		require.NoError(t, err)
	}

	all, err := st.ListCandidates(ctx, CandidateFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := st.ListCandidates(ctx, CandidateFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "k3", page[0].IdentityKey)

	require.NoError(t, st.DeleteCandidate(ctx, all[0].ID))
	assert.True(t, eris.Is(st.DeleteCandidate(ctx, all[0].ID), ErrNotFound))
}

func TestSQLite_Resume_CreateAndLookups(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cand, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)

	created, err := st.CreateResume(ctx, testResume(cand.ID, "a.pdf", "hash-a"))
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	bySource, err := st.GetResumeBySourceID(ctx, "a.pdf")
	require.NoError(t, err)
	require.NotNil(t, bySource)
	assert.Equal(t, "markdown.v3", bySource.Parsed.ParserVersion)
	assert.Equal(t, model.LanguageEnglish, bySource.Language)

	byHash, err := st.GetResumeByContentHash(ctx, "hash-a")
	require.NoError(t, err)
	require.NotNil(t, byHash)
	assert.Equal(t, created.ID, byHash.ID)

	missing, err := st.GetResumeBySourceID(ctx, "absent.pdf")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Resume_UniqueConstraints(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cand, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)

	_, err = st.CreateResume(ctx, testResume(cand.ID, "a.pdf", "hash-a"))
	require.NoError(t, err)

	_, err = st.CreateResume(ctx, testResume(cand.ID, "a.pdf", "hash-b"))
	assert.True(t, eris.Is(err, ErrDuplicateKey), "duplicate source_id")

	_, err = st.CreateResume(ctx, testResume(cand.ID, "b.pdf", "hash-a"))
	assert.True(t, eris.Is(err, ErrDuplicateKey), "duplicate content_hash")
}

func TestSQLite_Resume_CountsByCandidate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.CreateCandidate(ctx, model.Candidate{IdentityKey: "k1"})
	require.NoError(t, err)
	second, err := st.CreateCandidate(ctx, model.Candidate{IdentityKey: "k2"})
	require.NoError(t, err)

	for i, spec := range []struct {
		candID   int64
		sourceID string
		hash     string
	}{
		{first.ID, "a.pdf", "h1"},
		{first.ID, "b.pdf", "h2"},
		{second.ID, "c.pdf", "h3"},
	} {
		_, err := st.CreateResume(ctx, testResume(spec.candID, spec.sourceID, spec.hash))
		require.NoError(t, err, "resume %d", i)
	}

	counts, err := st.ResumeCountsByCandidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{first.ID: 2, second.ID: 1}, counts)
}

func TestSQLite_Sections_CreateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cand, err := st.CreateCandidate(ctx, testCandidate("candidate:v2:email:abc"))
	require.NoError(t, err)
	resume, err := st.CreateResume(ctx, testResume(cand.ID, "a.pdf", "hash-a"))
	require.NoError(t, err)

	sections := []model.ResumeSection{
		{
			ResumeID: resume.ID,
			Type:     model.SectionExperience,
			Content:  "Teacher at a school",
			Tokens:   4,
			Metadata: model.SectionMetadata{
				ParserVersion:     "markdown.v3",
				SectionConfidence: 1.0,
				OriginalType:      model.SectionExperience,
			},
		},
		{
			ResumeID: resume.ID,
			Type:     model.SectionSkills,
			Content:  "Go, SQL",
			Tokens:   2,
			Metadata: model.SectionMetadata{
				ParserVersion:     "markdown.v3",
				SectionConfidence: 0.5,
				OriginalType:      model.SectionGeneral,
				ModelType:         model.SectionSkills,
				RoutedToModel:     true,
			},
		},
	}
	require.NoError(t, st.CreateSections(ctx, sections))

	got, err := st.ListSections(ctx, resume.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SectionExperience, got[0].Type)
	assert.True(t, got[1].Metadata.RoutedToModel)
	assert.Equal(t, model.SectionSkills, got[1].Metadata.ModelType)
}

func TestSQLite_Reassign(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	loser, err := st.CreateCandidate(ctx, model.Candidate{IdentityKey: "k1"})
	require.NoError(t, err)
	winner, err := st.CreateCandidate(ctx, model.Candidate{IdentityKey: "k2"})
	require.NoError(t, err)

	_, err = st.CreateResume(ctx, testResume(loser.ID, "a.pdf", "h1"))
	require.NoError(t, err)
	_, err = st.CreateResume(ctx, testResume(loser.ID, "b.pdf", "h2"))
	require.NoError(t, err)

	moved, err := st.ReassignResumes(ctx, loser.ID, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	remaining, err := st.ListResumesByCandidate(ctx, loser.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	require.NoError(t, st.DeleteCandidate(ctx, loser.ID))
}

func TestSQLite_InTx_CommitAndRollback(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(tx Store) error {
		_, err := tx.CreateCandidate(ctx, model.Candidate{IdentityKey: "committed"})
		return err
	})
	require.NoError(t, err)

	got, err := st.GetCandidateByIdentityKey(ctx, "committed")
	require.NoError(t, err)
	assert.NotNil(t, got)

	err = st.InTx(ctx, func(tx Store) error {
		if _, err := tx.CreateCandidate(ctx, model.Candidate{IdentityKey: "discarded"}); err != nil {
			return err
		}
		return eris.New("boom")
	})
	require.Error(t, err)

	gone, err := st.GetCandidateByIdentityKey(ctx, "discarded")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLite_InTx_ErrRollbackIsSilent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(tx Store) error {
		if _, err := tx.CreateCandidate(ctx, model.Candidate{IdentityKey: "dry-run"}); err != nil {
			return err
		}
		return ErrRollback
	})
	require.NoError(t, err)

	gone, err := st.GetCandidateByIdentityKey(ctx, "dry-run")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLite_InTx_Nested(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(outer Store) error {
		return outer.InTx(ctx, func(inner Store) error {
			_, err := inner.CreateCandidate(ctx, model.Candidate{IdentityKey: "nested"})
			return err
		})
	})
	require.NoError(t, err)

	got, err := st.GetCandidateByIdentityKey(ctx, "nested")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
