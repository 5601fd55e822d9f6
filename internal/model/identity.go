package model

// KeyReason records which signal branch produced an identity key.
type KeyReason string

const (
	KeyReasonEmailPrimary    KeyReason = "email_primary"
	KeyReasonPhonePrimary    KeyReason = "phone_primary"
	KeyReasonNamePrimary     KeyReason = "name_primary"
	KeyReasonContentFallback KeyReason = "content_fallback"
)

// EscalationStatus reports the outcome of the model name-resolution fallback.
// Callers can tell "never tried" from "tried and rejected" from "the
// capability itself failed".
type EscalationStatus string

const (
	EscalationNotAttempted EscalationStatus = "not_attempted"
	EscalationAccepted     EscalationStatus = "accepted"
	EscalationRejected     EscalationStatus = "rejected"
	EscalationError        EscalationStatus = "error"
)

// NameCandidate is one scored header line from the rules-based name resolver.
type NameCandidate struct {
	Line      string   `json:"line"`
	Candidate string   `json:"candidate"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reason_codes"`
}

// NameResolution is the diagnostic trail of name resolution, including the
// fallback decision when escalation ran.
type NameResolution struct {
	PrimaryMethod     string           `json:"primary_method"`
	PrimaryConfidence float64          `json:"primary_confidence"`
	Candidates        []NameCandidate  `json:"candidates,omitempty"`
	FallbackMethod    string           `json:"fallback_method,omitempty"`
	FallbackStatus    EscalationStatus `json:"fallback_status"`
	FallbackReason    string           `json:"fallback_reason,omitempty"`
	TriggerThreshold  float64          `json:"trigger_threshold"`
	AcceptThreshold   float64          `json:"accept_threshold"`
}

// IdentitySignals carries every signal observed while extracting identity.
type IdentitySignals struct {
	Emails            []string       `json:"emails,omitempty"`
	Phones            []string       `json:"phones,omitempty"`
	NameConfidence    float64        `json:"name_confidence"`
	NameResolution    NameResolution `json:"name_resolution"`
	ConfidenceReasons []string       `json:"confidence_reason_codes,omitempty"`
	ModelFallbackUsed bool           `json:"model_fallback_used"`
}

// IdentityCandidate is the per-document identity produced by extraction.
// Empty Name/Email/Phone mean the signal was not found. Confidence measures
// trust in the identity; the key determines which candidate bucket the
// resume joins. A low-confidence identity still gets a deterministic key.
type IdentityCandidate struct {
	Name        string          `json:"name,omitempty"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	IdentityKey string          `json:"identity_key"`
	KeyReason   KeyReason       `json:"identity_key_reason"`
	Confidence  float64         `json:"confidence"`
	Signals     IdentitySignals `json:"signals"`
}
