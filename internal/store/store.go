// Package store persists candidates, resumes and sections behind a single
// interface with SQLite and PostgreSQL implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hireloop/resume-intake/internal/model"
)

var (
	// ErrNotFound marks lookups and updates that matched no row.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicateKey marks inserts rejected by a unique constraint. The
	// reconciler relies on it to detect identity-key races.
	ErrDuplicateKey = eris.New("store: duplicate key")
	// ErrRollback, returned from an InTx callback, rolls the transaction
	// back without surfacing an error. Dry-run batch jobs use it to
	// preview mutations.
	ErrRollback = eris.New("store: rollback requested")
)

// CandidateFilter specifies criteria for listing candidates.
type CandidateFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake pipeline.
// Lookup-style getters (by identity key, source id, content hash) return
// (nil, nil) when nothing matches; getters by primary key return
// ErrNotFound.
type Store interface {
	// Candidates
	CreateCandidate(ctx context.Context, cand model.Candidate) (*model.Candidate, error)
	GetCandidate(ctx context.Context, id int64) (*model.Candidate, error)
	GetCandidateByIdentityKey(ctx context.Context, key string) (*model.Candidate, error)
	UpdateCandidate(ctx context.Context, cand *model.Candidate) error
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)
	DeleteCandidate(ctx context.Context, id int64) error

	// Resumes
	CreateResume(ctx context.Context, resume model.Resume) (*model.Resume, error)
	GetResumeBySourceID(ctx context.Context, sourceID string) (*model.Resume, error)
	GetResumeByContentHash(ctx context.Context, hash string) (*model.Resume, error)
	ListResumesByCandidate(ctx context.Context, candidateID int64) ([]model.Resume, error)
	ResumeCountsByCandidate(ctx context.Context) (map[int64]int, error)

	// Sections
	CreateSections(ctx context.Context, sections []model.ResumeSection) error
	ListSections(ctx context.Context, resumeID int64) ([]model.ResumeSection, error)

	// Merge support: repoint foreign references from one candidate to
	// another, returning the number of moved rows.
	ReassignResumes(ctx context.Context, fromID, toID int64) (int64, error)
	ReassignEmbeddings(ctx context.Context, fromID, toID int64) (int64, error)
	ReassignMatches(ctx context.Context, fromID, toID int64) (int64, error)

	// InTx runs fn against a transactional view of the store. fn returning
	// an error rolls back; ErrRollback rolls back silently. Nested calls
	// reuse the open transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
