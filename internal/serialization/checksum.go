package serialization

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumKey is the metadata key holding the data section checksum.
const ChecksumKey = "lowbit.sha256"

// ComputeChecksum computes the hex SHA-256 of the data section.
func ComputeChecksum(chunks ...[]byte) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateChecksum compares the computed checksum against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(data []byte, stored string) error {
	if computed := ComputeChecksum(data); computed != stored {
		return &ValidationError{
			Err:     ErrChecksumMismatch,
			Details: "stored " + stored + ", computed " + computed,
		}
	}
	return nil
}
