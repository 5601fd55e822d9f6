package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeError marks a response that arrived over the wire but could not be
// decoded into a valid structured result. Decode failures are assumed to be
// sampling variance and are retried; transport failures are not.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("llm: decode response: %s", e.Reason)
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// decodeJSON extracts the first JSON object from model output text and
// unmarshals it into out. Models occasionally wrap the object in prose or
// code fences.
func decodeJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return &DecodeError{Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return &DecodeError{Reason: err.Error()}
	}
	return nil
}

// validateName checks the schema constraints of a decoded NameResult.
func validateName(res *NameResult) error {
	if res.Confidence < 0 || res.Confidence > 1 {
		return &DecodeError{Reason: fmt.Sprintf("name confidence %v out of range", res.Confidence)}
	}
	return nil
}

// validateSection checks the schema constraints of a decoded SectionResult.
func validateSection(res *SectionResult) error {
	if !res.SectionType.Valid() {
		return &DecodeError{Reason: fmt.Sprintf("unknown section type %q", res.SectionType)}
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		return &DecodeError{Reason: fmt.Sprintf("section confidence %v out of range", res.Confidence)}
	}
	return nil
}
