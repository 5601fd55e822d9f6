package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hireloop/resume-intake/internal/db"
	"github.com/hireloop/resume-intake/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       db.Querier
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, q: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool creates a PostgresStore around an existing pool,
// primarily for tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	identity_key TEXT UNIQUE,
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	links        JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resumes (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	candidate_id BIGINT NOT NULL REFERENCES candidates(id),
	source_id    TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL UNIQUE,
	raw_text     TEXT NOT NULL,
	parsed_json  JSONB NOT NULL,
	language     TEXT NOT NULL DEFAULT 'unknown',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resume_sections (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	resume_id    BIGINT NOT NULL REFERENCES resumes(id) ON DELETE CASCADE,
	section_type TEXT NOT NULL,
	content      TEXT NOT NULL,
	tokens       INTEGER NOT NULL DEFAULT 0,
	metadata     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_postings (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS embeddings (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	candidate_id BIGINT NOT NULL REFERENCES candidates(id),
	kind         TEXT NOT NULL DEFAULT 'resume',
	vector       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	candidate_id   BIGINT NOT NULL REFERENCES candidates(id),
	job_posting_id BIGINT NOT NULL REFERENCES job_postings(id),
	score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_resumes_candidate_id ON resumes(candidate_id);
CREATE INDEX IF NOT EXISTS idx_resume_sections_resume_id ON resume_sections(resume_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_candidate_id ON embeddings(candidate_id);
CREATE INDEX IF NOT EXISTS idx_matches_candidate_id ON matches(candidate_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.q.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.q.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx runs fn inside a transaction. A nested call reuses the open
// transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}

	txStore := &PostgresStore{q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return eris.Wrapf(err, "postgres: rollback also failed: %v", rbErr)
		}
		if eris.Is(err, ErrRollback) {
			return nil
		}
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) CreateCandidate(ctx context.Context, cand model.Candidate) (*model.Candidate, error) {
	now := time.Now().UTC()
	linksJSON, err := json.Marshal(emptyIfNil(cand.Links))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal links")
	}

	err = s.q.QueryRow(ctx,
		`INSERT INTO candidates (identity_key, name, email, phone, links, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		nullIfEmpty(cand.IdentityKey), cand.Name, cand.Email, cand.Phone, linksJSON, now,
	).Scan(&cand.ID)
	if err != nil {
		return nil, wrapPostgresErr(err, "postgres: insert candidate")
	}

	cand.CreatedAt = now
	return &cand, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	cand, err := scanCandidatePgx(s.q.QueryRow(ctx,
		`SELECT id, identity_key, name, email, phone, links, created_at FROM candidates WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %d", id)
	}
	return cand, nil
}

func (s *PostgresStore) GetCandidateByIdentityKey(ctx context.Context, key string) (*model.Candidate, error) {
	return scanCandidatePgx(s.q.QueryRow(ctx,
		`SELECT id, identity_key, name, email, phone, links, created_at FROM candidates WHERE identity_key = $1`, key))
}

func (s *PostgresStore) UpdateCandidate(ctx context.Context, cand *model.Candidate) error {
	linksJSON, err := json.Marshal(emptyIfNil(cand.Links))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal links")
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE candidates SET identity_key = $1, name = $2, email = $3, phone = $4, links = $5 WHERE id = $6`,
		nullIfEmpty(cand.IdentityKey), cand.Name, cand.Email, cand.Phone, linksJSON, cand.ID,
	)
	if err != nil {
		return wrapPostgresErr(err, "postgres: update candidate")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "candidate %d", cand.ID)
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, identity_key, name, email, phone, links, created_at FROM candidates ORDER BY id`
	var args []any

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += ` LIMIT $1`

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $2`
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		cand, err := scanCandidatePgx(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *cand)
	}
	return candidates, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

func (s *PostgresStore) DeleteCandidate(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete candidate %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "candidate %d", id)
	}
	return nil
}

func (s *PostgresStore) CreateResume(ctx context.Context, resume model.Resume) (*model.Resume, error) {
	now := time.Now().UTC()
	parsedJSON, err := json.Marshal(resume.Parsed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal parsed snapshot")
	}

	err = s.q.QueryRow(ctx,
		`INSERT INTO resumes (candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		resume.CandidateID, resume.SourceID, resume.ContentHash, resume.RawText,
		parsedJSON, string(resume.Language), now,
	).Scan(&resume.ID)
	if err != nil {
		return nil, wrapPostgresErr(err, "postgres: insert resume")
	}

	resume.CreatedAt = now
	return &resume, nil
}

func (s *PostgresStore) GetResumeBySourceID(ctx context.Context, sourceID string) (*model.Resume, error) {
	return scanResumePgx(s.q.QueryRow(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE source_id = $1`, sourceID))
}

func (s *PostgresStore) GetResumeByContentHash(ctx context.Context, hash string) (*model.Resume, error) {
	return scanResumePgx(s.q.QueryRow(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE content_hash = $1`, hash))
}

func (s *PostgresStore) ListResumesByCandidate(ctx context.Context, candidateID int64) ([]model.Resume, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, candidate_id, source_id, content_hash, raw_text, parsed_json, language, created_at
		 FROM resumes WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resumes")
	}
	defer rows.Close()

	var resumes []model.Resume
	for rows.Next() {
		r, err := scanResumePgx(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, *r)
	}
	return resumes, eris.Wrap(rows.Err(), "postgres: list resumes iterate")
}

func (s *PostgresStore) ResumeCountsByCandidate(ctx context.Context) (map[int64]int, error) {
	rows, err := s.q.Query(ctx,
		`SELECT candidate_id, COUNT(*) FROM resumes GROUP BY candidate_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: resume counts")
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var candidateID int64
		var n int
		if err := rows.Scan(&candidateID, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resume count")
		}
		counts[candidateID] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: resume counts iterate")
}

var sectionCopyColumns = []string{"resume_id", "section_type", "content", "tokens", "metadata", "created_at"}

// CreateSections bulk-inserts sections with COPY.
func (s *PostgresStore) CreateSections(ctx context.Context, sections []model.ResumeSection) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(sections))
	for _, section := range sections {
		metadataJSON, err := json.Marshal(section.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal section metadata")
		}
		rows = append(rows, []any{
			section.ResumeID, string(section.Type), section.Content, section.Tokens,
			metadataJSON, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.q, "resume_sections", sectionCopyColumns, rows)
	return eris.Wrap(err, "postgres: insert sections")
}

func (s *PostgresStore) ListSections(ctx context.Context, resumeID int64) ([]model.ResumeSection, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, resume_id, section_type, content, tokens, metadata, created_at
		 FROM resume_sections WHERE resume_id = $1 ORDER BY id`, resumeID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sections")
	}
	defer rows.Close()

	var sections []model.ResumeSection
	for rows.Next() {
		var section model.ResumeSection
		var sectionType string
		var metadataJSON []byte
		if err := rows.Scan(&section.ID, &section.ResumeID, &sectionType, &section.Content,
			&section.Tokens, &metadataJSON, &section.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan section")
		}
		section.Type = model.SectionType(sectionType)
		if err := json.Unmarshal(metadataJSON, &section.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal section metadata")
		}
		sections = append(sections, section)
	}
	return sections, eris.Wrap(rows.Err(), "postgres: list sections iterate")
}

func (s *PostgresStore) ReassignResumes(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "resumes", fromID, toID)
}

func (s *PostgresStore) ReassignEmbeddings(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "embeddings", fromID, toID)
}

func (s *PostgresStore) ReassignMatches(ctx context.Context, fromID, toID int64) (int64, error) {
	return s.reassign(ctx, "matches", fromID, toID)
}

// reassign is only ever called with table names from this package.
func (s *PostgresStore) reassign(ctx context.Context, table string, fromID, toID int64) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE `+table+` SET candidate_id = $1 WHERE candidate_id = $2`, toID, fromID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: reassign %s %d -> %d", table, fromID, toID)
	}
	return tag.RowsAffected(), nil
}

// helpers

func wrapPostgresErr(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return eris.Wrap(ErrDuplicateKey, msg)
	}
	return eris.Wrap(err, msg)
}

func scanCandidatePgx(row pgx.Row) (*model.Candidate, error) {
	var cand model.Candidate
	var identityKey *string
	var linksJSON []byte

	err := row.Scan(&cand.ID, &identityKey, &cand.Name, &cand.Email, &cand.Phone, &linksJSON, &cand.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan candidate")
	}

	if identityKey != nil {
		cand.IdentityKey = *identityKey
	}
	if err := json.Unmarshal(linksJSON, &cand.Links); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal links")
	}
	return &cand, nil
}

func scanResumePgx(row pgx.Row) (*model.Resume, error) {
	var r model.Resume
	var parsedJSON []byte
	var language string

	err := row.Scan(&r.ID, &r.CandidateID, &r.SourceID, &r.ContentHash, &r.RawText,
		&parsedJSON, &language, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan resume")
	}

	r.Language = model.Language(language)
	if err := json.Unmarshal(parsedJSON, &r.Parsed); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal parsed snapshot")
	}
	return &r, nil
}
