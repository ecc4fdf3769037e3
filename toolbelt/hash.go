package toolbelt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashResult is the outcome of a content-hash comparison.
type HashResult struct {
	NewHash      string `json:"newHash"`
	StoredHash   string `json:"storedHash"`
	HasChanged   bool   `json:"hasChanged"`
	IsFirstCheck bool   `json:"isFirstCheck"`
}

// CompareContentHash digests the content with SHA-256 and compares it to the
// stored hash, case-insensitively. An empty stored hash marks a first check,
// which is never reported as a change.
func CompareContentHash(content, storedHash string) HashResult {
	sum := sha256.Sum256([]byte(content))
	newHash := hex.EncodeToString(sum[:])

	result := HashResult{
		NewHash:    newHash,
		StoredHash: storedHash,
	}

	if storedHash == "" {
		result.IsFirstCheck = true
		return result
	}

	result.HasChanged = !strings.EqualFold(newHash, storedHash)
	return result
}
