package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ChecksumLength is the length of a hex-encoded SHA-256 digest.
const ChecksumLength = 64

var (
	errChecksumEmpty       = errors.New("checksum is empty")
	errChecksumPlaceholder = errors.New("checksum is a placeholder")
	errChecksumFormat      = errors.New("checksum is not a hex-encoded SHA-256 digest")
)

// placeholderMarkers are substrings that only show up in unfilled templates.
//
//nolint:gochecknoglobals // Read-only lookup table.
var placeholderMarkers = []string{
	"REPLACE",
	"PLACEHOLDER",
	"CHANGEME",
	"CHANGE_ME",
	"TODO",
	"TBD",
	"FIXME",
	"XXX",
	"SHA256",
	"<",
}

// NormalizeChecksum lower-cases and trims a hex digest and strips an optional
// "sha256:" prefix.
func NormalizeChecksum(checksum string) string {
	checksum = strings.TrimSpace(checksum)
	if prefix, rest, found := strings.Cut(checksum, ":"); found && strings.EqualFold(prefix, "sha256") {
		checksum = rest
	}

	return strings.ToLower(strings.TrimSpace(checksum))
}

// ValidateChecksum rejects empty, placeholder and malformed digests.
func ValidateChecksum(checksum string) error {
	trimmed := strings.TrimSpace(checksum)
	if trimmed == "" {
		return errChecksumEmpty
	}

	if IsPlaceholderChecksum(trimmed) {
		return fmt.Errorf("%w: %q", errChecksumPlaceholder, trimmed)
	}

	normalized := NormalizeChecksum(trimmed)
	if len(normalized) != ChecksumLength {
		return fmt.Errorf("%w: %q has %d characters", errChecksumFormat, trimmed, len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("%w: %q", errChecksumFormat, trimmed)
	}

	return nil
}

// IsPlaceholderChecksum reports sentinel values that stand in for a real digest,
// including a digest made of a single repeated character (all zeros and the like).
func IsPlaceholderChecksum(checksum string) bool {
	normalized := NormalizeChecksum(checksum)
	if normalized == "" {
		return true
	}

	upper := strings.ToUpper(normalized)

	for _, marker := range placeholderMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}

	return len(normalized) == ChecksumLength && strings.Count(normalized, normalized[:1]) == ChecksumLength
}
