package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/textnorm"
)

// KeyVersion is the current identity key schema version. Bumping it forces a
// backfill of stored candidates.
const KeyVersion = "v2"

const keyHashLen = 24

// DeriveKey builds the stable identity key for a candidate from its
// strongest available signal: email, then phone, then name. Every signal is
// normalized here, so raw and normalized forms of the same value always
// derive the same key; a signal that normalizes to nothing falls through to
// the next one. With no contact signal at all the key falls back to a
// content hash of the cleaned resume text, which dedupes re-ingested files
// without ever merging distinct people.
func DeriveKey(name, email, phone, cleanText string) (string, model.KeyReason) {
	if normalized := textnorm.Email(email); normalized != "" {
		return candidateKey("email", normalized), model.KeyReasonEmailPrimary
	}
	if normalized := textnorm.Phone(phone); normalized != "" {
		return candidateKey("phone", normalized), model.KeyReasonPhonePrimary
	}
	if normalized := textnorm.Name(name); normalized != "" {
		return candidateKey("name", strings.ToLower(normalized)), model.KeyReasonNamePrimary
	}
	return fmt.Sprintf("resume_content:%s", shortHash(normalizeForHash(cleanText))), model.KeyReasonContentFallback
}

func candidateKey(signal, value string) string {
	return fmt.Sprintf("candidate:%s:%s:%s", KeyVersion, signal, shortHash(value))
}

// ContentHash returns the full sha256 hex digest of the whitespace-collapsed,
// lowercased text, used for exact-duplicate detection across files.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(normalizeForHash(text)))
	return hex.EncodeToString(sum[:])
}

func normalizeForHash(text string) string {
	return strings.ToLower(textnorm.Whitespace(text))
}

func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:keyHashLen]
}
