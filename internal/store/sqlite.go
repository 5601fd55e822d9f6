package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hireloop/resume-intake/internal/model"
)

// sqliteQuerier is the query surface common to *sql.DB and *sql.Tx.
type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  sqliteQuerier
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	identity_key TEXT UNIQUE,
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	links        TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resumes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id INTEGER NOT NULL REFERENCES candidates(id),
	source_id    TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL UNIQUE,
	raw_text     TEXT NOT NULL,
	parsed_json  TEXT NOT NULL,
	language     TEXT NOT NULL DEFAULT 'unknown',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resume_sections (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	resume_id    INTEGER NOT NULL REFERENCES resumes(id) ON DELETE CASCADE,
	section_type TEXT NOT NULL,
	content      TEXT NOT NULL,
	tokens       INTEGER NOT NULL DEFAULT 0,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS job_postings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS embeddings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id INTEGER NOT NULL REFERENCES candidates(id),
	kind         TEXT NOT NULL DEFAULT 'resume',
	vector       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id   INTEGER NOT NULL REFERENCES candidates(id),
	job_posting_id INTEGER NOT NULL REFERENCES job_postings(id),
	score          REAL NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_resumes_candidate_id ON resumes(candidate_id);
CREATE INDEX IF NOT EXISTS idx_resume_sections_resume_id ON resume_sections(resume_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_candidate_id ON embeddings(candidate_id);
CREATE INDEX IF NOT EXISTS idx_matches_candidate_id ON matches(candidate_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction. A nested call reuses the open
// transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}

	txStore := &SQLiteStore{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return eris.Wrapf(err, "sqlite: rollback also failed: %v", rbErr)
		}
		if eris.Is(err, ErrRollback) {
			return nil
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) CreateCandidate(ctx context.Context, cand model.Candidate) (*model.Candidate, error) {
	now := time.Now().UTC()
	linksJSON, err := json.Marshal(emptyIfNil(cand.Links))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal links")
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO candidates (identity_key, name, email, phone, links, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(cand.IdentityKey), cand.Name, cand.Email, cand.Phone, string(linksJSON), now,
	)
	if err != nil {
		return nil, wrapSQLiteErr(err, "sqlite: insert candidate")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: candidate insert id")
	}

	cand.ID = id
	cand.CreatedAt = now
	return &cand, nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	cand, err := scanCandidate(s.q.QueryRowContext(ctx,
		`SELECT id, identity_key, name, email, phone, links, created_at FROM candidates WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %d", id)
	}
	return cand, nil
}

func (s *SQLiteStore) GetCandidateByIdentityKey(ctx context.Context, key string) (*model.Candidate, error) {
	return scanCandidate(s.q.QueryRowContext(ctx,
		`SELECT id, identity_key, name, email, phone, links, created_at FROM candidates WHERE identity_key = ?`, key))
}

func (s *SQLiteStore) UpdateCandidate(ctx context.Context, cand *model.Candidate) error {
	linksJSON, err := json.Marshal(emptyIfNil(cand.Links))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal links")
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE candidates SET identity_key = ?, name = ?, email = ?, phone = ?, links = ? WHERE id = ?`,
		nullIfEmpty(cand.IdentityKey), cand.Name, cand.Email, cand.Phone, string(linksJSON), cand.ID,
	)
	if err != nil {
		return wrapSQLiteErr(err, "sqlite: update candidate")
	}
	return checkRowsAffected(res, "candidate", cand.ID)
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, identity_key, name, email, phone, links, created_at FROM candidates ORDER BY id`
	var args []any

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		cand, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *cand)
	}
	return candidates, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) DeleteCandidate(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete candidate %d", id)
	}
	return checkRowsAffected(res, "candidate", id)
}

func (s *SQLiteStore) CreateResume(ctx context.Context, resume model.Resume) (*model.Resume, error) {
	now := time.Now().UTC()
	parsedJSON, err := json.Marshal(resume.Parsed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal parsed snapshot")
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO resumes (candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		resume.CandidateID, resume.SourceID, resume.ContentHash, resume.RawText,
		string(parsedJSON), string(resume.Language), now,
	)
	if err != nil {
		return nil, wrapSQLiteErr(err, "sqlite: insert resume")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resume insert id")
	}

	resume.ID = id
	resume.CreatedAt = now
	return &resume, nil
}

func (s *SQLiteStore) GetResumeBySourceID(ctx context.Context, sourceID string) (*model.Resume, error) {
	return scanResume(s.q.QueryRowContext(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE source_id = ?`, sourceID))
}

func (s *SQLiteStore) GetResumeByContentHash(ctx context.Context, hash string) (*model.Resume, error) {
	return scanResume(s.q.QueryRowContext(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE content_hash = ?`, hash))
}

func (s *SQLiteStore) ListResumesByCandidate(ctx context.Context, candidateID int64) ([]model.Resume, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE candidate_id = ? ORDER BY id`, candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resumes")
	}
	defer rows.Close()

	var resumes []model.Resume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, *r)
	}
	return resumes, eris.Wrap(rows.Err(), "sqlite: list resumes iterate")
}

func (s *SQLiteStore) ResumeCountsByCandidate(ctx context.Context) (map[int64]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT candidate_id, COUNT(*) FROM resumes GROUP BY candidate_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resume counts")
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var candidateID int64
		var n int
		if err := rows.Scan(&candidateID, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resume count")
		}
		counts[candidateID] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: resume counts iterate")
}

func (s *SQLiteStore) CreateSections(ctx context.Context, sections []model.ResumeSection) error {
	now := time.Now().UTC()
	for _, section := range sections {
		metadataJSON, err := json.Marshal(section.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal section metadata")
		}
		_, err = s.q.ExecContext(ctx,
			`INSERT INTO resume_sections (resume_id, section_type, content, tokens, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			section.ResumeID, string(section.Type), section.Content, section.Tokens,
			string(metadataJSON), now,
		)
		if err != nil {
			return wrapSQLiteErr(err, "sqlite: insert section")
		}
	}
	return nil
}

func (s *SQLiteStore) ListSections(ctx context.Context, resumeID int64) ([]model.ResumeSection, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, resume_id, section_type, content, tokens, metadata, created_at
		 FROM resume_sections WHERE resume_id = ? ORDER BY id`, resumeID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sections")
	}
	defer rows.Close()

	var sections []model.ResumeSection
	for rows.Next() {
		var section model.ResumeSection
		var sectionType, metadataJSON string
		if err := rows.Scan(&section.ID, &section.ResumeID, &sectionType, &section.Content,
			&section.Tokens, &metadataJSON, &section.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan section")
		}
		section.Type = model.SectionType(sectionType)
		if err := json.Unmarshal([]byte(metadataJSON), &section.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal section metadata")
		}
		sections = append(sections, section)
	}
	return sections, eris.Wrap(rows.Err(), "sqlite: list sections iterate")
}

func (s *SQLiteStore) ReassignResumes(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "resumes", fromID, toID)
}

func (s *SQLiteStore) ReassignEmbeddings(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "embeddings", fromID, toID)
}

func (s *SQLiteStore) ReassignMatches(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "matches", fromID, toID)
}

// reassign is only ever called with table names from this package.
func (s *SQLiteStore) reassign(ctx context.Context, table string, fromID, toID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE `+table+` SET candidate_id = ? WHERE candidate_id = ?`, toID, fromID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reassign %s %d -> %d", table, fromID, toID)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func wrapSQLiteErr(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrap(ErrDuplicateKey, msg)
	}
	return eris.Wrap(err, msg)
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func emptyIfNil(links []string) []string {
	if links == nil {
		return []string{}
	}
	return links
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCandidate(row scannable) (*model.Candidate, error) {
	var cand model.Candidate
	var identityKey sql.NullString
	var linksJSON string

	err := row.Scan(&cand.ID, &identityKey, &cand.Name, &cand.Email, &cand.Phone, &linksJSON, &cand.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan candidate")
	}

	cand.IdentityKey = identityKey.String
	if err := json.Unmarshal([]byte(linksJSON), &cand.Links); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal links")
	}
	return &cand, nil
}

func scanResume(row scannable) (*model.Resume, error) {
	var r model.Resume
	var parsedJSON, language string

	err := row.Scan(&r.ID, &r.CandidateID, &r.SourceID, &r.ContentHash, &r.RawText,
		&parsedJSON, &language, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan resume")
	}

	r.Language = model.Language(language)
	if err := json.Unmarshal([]byte(parsedJSON), &r.Parsed); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal parsed snapshot")
	}
	return &r, nil
}
