package artifact

import (
	"path/filepath"
	"strings"
)

// Compression names supported for release assets. The checksum always covers
// the bytes as downloaded; decompression happens after verification.
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionXZ   = "xz"
)

// Spec describes one downloadable artifact for a single platform and version.
type Spec struct {
	// Platform is the os/arch pair the artifact was built for.
	Platform PlatformDescriptor
	// URL is where the artifact is downloaded from.
	URL string
	// ExpectedChecksum is the hex-encoded SHA-256 digest of the downloaded bytes.
	ExpectedChecksum string
	// Version is the release version the artifact belongs to.
	Version string
	// Compression is the encoding of the downloaded bytes, empty for a raw binary.
	Compression string
}

// Target describes where a resolved artifact must end up.
type Target struct {
	// DestinationPath is the directory that receives the executable.
	DestinationPath string
	// ExecutableName is the file name without platform suffix, e.g. "zere".
	ExecutableName string
	// Platform decides the executable suffix. Zero value means no suffix.
	Platform PlatformDescriptor
}

// FileName returns the executable file name including the platform suffix.
func (t Target) FileName() string {
	suffix := t.Platform.ExecutableSuffix()
	if suffix != "" && strings.HasSuffix(strings.ToLower(t.ExecutableName), suffix) {
		return t.ExecutableName
	}

	return t.ExecutableName + suffix
}

// Path returns the full destination path of the executable.
func (t Target) Path() string {
	return filepath.Join(t.DestinationPath, t.FileName())
}
