package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hireloop/resume-intake/internal/model"
)

// BatchReport aggregates the outcomes of one ingestion run.
type BatchReport struct {
	Total          int                  `json:"total"`
	Ingested       int                  `json:"ingested"`
	SkippedResume  int                  `json:"skipped_existing_resume"`
	SkippedContent int                  `json:"skipped_existing_content"`
	Errors         int                  `json:"errors"`
	ErrorTypes     map[string]int       `json:"error_types,omitempty"`
	Results        []model.IngestResult `json:"results"`
}

// Add folds one document result into the report.
func (r *BatchReport) Add(result model.IngestResult) {
	r.Total++
	r.Results = append(r.Results, result)

	switch result.Status {
	case model.IngestStatusIngested:
		r.Ingested++
	case model.IngestStatusSkippedResume:
		r.SkippedResume++
	case model.IngestStatusSkippedContent:
		r.SkippedContent++
	case model.IngestStatusError:
		r.Errors++
		if r.ErrorTypes == nil {
			r.ErrorTypes = make(map[string]int)
		}
		r.ErrorTypes[result.ErrorType]++
	}
}

// Sort orders results by source id for stable output regardless of worker
// completion order.
func (r *BatchReport) Sort() {
	sort.Slice(r.Results, func(i, j int) bool {
		return r.Results[i].SourceID < r.Results[j].SourceID
	})
}

// Summary renders a one-screen human-readable account of the run.
func (r *BatchReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "processed %d documents: %d ingested, %d skipped (resume), %d skipped (content), %d errors\n",
		r.Total, r.Ingested, r.SkippedResume, r.SkippedContent, r.Errors)

	if len(r.ErrorTypes) > 0 {
		types := make([]string, 0, len(r.ErrorTypes))
		for errorType := range r.ErrorTypes {
			types = append(types, errorType)
		}
		sort.Strings(types)
		for _, errorType := range types {
			fmt.Fprintf(&sb, "  errors[%s]: %d\n", errorType, r.ErrorTypes[errorType])
		}
	}
	for _, result := range r.Results {
		if result.Status == model.IngestStatusError {
			fmt.Fprintf(&sb, "  %s: %s\n", result.SourceID, result.Error)
		}
	}
	return sb.String()
}
