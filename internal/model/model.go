package model

import "time"

// Candidate is the persistent deduplicated person record. The reconciler
// exclusively owns mutation; the backfill job may delete losing duplicates
// after migrating their foreign references.
type Candidate struct {
	ID          int64     `json:"id"`
	IdentityKey string    `json:"identity_key,omitempty"` // empty only pre-migration
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Links       []string  `json:"links,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentitySnapshot is the identity decision frozen onto a resume row at
// ingestion time, for audit independent of later candidate merges.
type IdentitySnapshot struct {
	IdentityKey string          `json:"identity_key"`
	KeyReason   KeyReason       `json:"identity_key_reason"`
	Name        string          `json:"name,omitempty"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Confidence  float64         `json:"confidence"`
	Signals     IdentitySignals `json:"signals"`
}

// ResumeSnapshot is the parsed_json payload stored with each resume.
type ResumeSnapshot struct {
	CleanText     string           `json:"clean_text"`
	Links         []string         `json:"links,omitempty"`
	ParserVersion string           `json:"parser_version"`
	SectionNames  []SectionType    `json:"section_names"`
	Identity      IdentitySnapshot `json:"identity"`
}

// Resume is one ingested document, owned by exactly one candidate.
// SourceID and ContentHash are both unique; each is a dedup guard.
type Resume struct {
	ID          int64          `json:"id"`
	CandidateID int64          `json:"candidate_id"`
	SourceID    string         `json:"source_id"`
	ContentHash string         `json:"content_hash"`
	RawText     string         `json:"raw_text"`
	Parsed      ResumeSnapshot `json:"parsed"`
	Language    Language       `json:"language"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SectionMetadata is the audit payload stored with each persisted section:
// the rule-based decision, the model decision when the section was routed,
// and which one won.
type SectionMetadata struct {
	ParserVersion          string            `json:"parser_version"`
	SectionConfidence      float64           `json:"section_confidence"`
	DiagnosticFlags        []string          `json:"diagnostic_flags,omitempty"`
	WordCount              int               `json:"word_count"`
	HeadingMappedToGeneral bool              `json:"heading_mapped_to_general"`
	Recategorization       *Recategorization `json:"recategorization_candidate,omitempty"`
	OriginalType           SectionType       `json:"original_section_type"`
	ModelType              SectionType       `json:"model_section_type,omitempty"`
	ModelConfidence        *float64          `json:"model_section_confidence,omitempty"`
	RoutedToModel          bool              `json:"section_routed_by_model"`
}

// ResumeSection is one persisted typed span of a resume.
type ResumeSection struct {
	ID        int64           `json:"id"`
	ResumeID  int64           `json:"resume_id"`
	Type      SectionType     `json:"section_type"`
	Content   string          `json:"content"`
	Tokens    int             `json:"tokens"`
	Metadata  SectionMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// IngestStatus is the terminal status of one document's ingestion.
type IngestStatus string

const (
	IngestStatusIngested       IngestStatus = "ingested"
	IngestStatusSkippedResume  IngestStatus = "skipped_existing_resume"
	IngestStatusSkippedContent IngestStatus = "skipped_existing_content"
	IngestStatusError          IngestStatus = "error"
)

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	Status               IngestStatus `json:"status"`
	SourceID             string       `json:"source_id"`
	CandidateID          int64        `json:"candidate_id,omitempty"`
	ResumeID             int64        `json:"resume_id,omitempty"`
	SectionCount         int          `json:"section_count"`
	IdentityConfidence   float64      `json:"identity_confidence,omitempty"`
	AvgSectionConfidence float64      `json:"avg_section_confidence,omitempty"`
	ErrorType            string       `json:"error_type,omitempty"`
	Error                string       `json:"error,omitempty"`
}
