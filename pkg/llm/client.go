// Package llm provides the external model capability used to escalate
// low-confidence name resolution and section classification. Callers treat
// it as a black box: given a request, return a validated structured result
// or fail.
package llm

import (
	"context"

	"github.com/hireloop/resume-intake/internal/model"
)

// NameRequest asks the model to pick a person name out of resume header
// lines, with contact signals as context.
type NameRequest struct {
	CandidateLines []string
	Emails         []string
	Phones         []string
	Language       model.Language
}

// NameResult is the structured answer to a NameRequest. An empty Name means
// the model declined to answer.
type NameResult struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// SectionRequest asks the model to classify one resume section.
type SectionRequest struct {
	Heading        string
	ContentExcerpt string
	Language       model.Language
}

// SectionResult is the structured answer to a SectionRequest.
type SectionResult struct {
	SectionType model.SectionType `json:"section_type"`
	Confidence  float64           `json:"confidence"`
	Reason      string            `json:"reason"`
}

// Client defines the model operations consumed by ingestion.
type Client interface {
	ResolveName(ctx context.Context, req NameRequest) (*NameResult, error)
	ClassifySection(ctx context.Context, req SectionRequest) (*SectionResult, error)
}
