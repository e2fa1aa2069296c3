package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash computes a deterministic content hash over the snapshot's canonical
// JSON, truncated to 16 hex characters, for client/server reconciliation.
// Not a security primitive. encoding/json sorts map keys on marshal, which
// gives canonical ordering without a dedicated serializer.
func (s Snapshot) Hash() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16], nil
}

// CanonicalJSON returns the sorted-keys JSON serialization used for both
// hashing and golden-file replay comparisons.
func (s Snapshot) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}
