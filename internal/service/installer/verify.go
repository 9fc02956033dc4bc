package installer

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
)

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// Verify compares the digest of data with the expected hex digest, ignoring case.
// An empty or placeholder expectation never matches.
func Verify(data []byte, expected string) error {
	actual := Checksum(data)

	normalized := manifest.NormalizeChecksum(expected)
	if manifest.IsPlaceholderChecksum(normalized) || actual != normalized {
		return &artifact.ChecksumError{Expected: expected, Actual: actual}
	}

	return nil
}
