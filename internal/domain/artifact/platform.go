package artifact

import (
	"fmt"
	"strings"
)

// Well-known operating systems and architectures. Other GOOS/GOARCH values
// are accepted as long as a manifest lists them.
const (
	OSDarwin  = "darwin"
	OSLinux   = "linux"
	OSWindows = "windows"

	ArchAMD64 = "amd64"
	ArchARM64 = "arm64"
)

// platformSeparator joins os and arch in a platform key ("darwin/arm64").
const platformSeparator = "/"

// PlatformDescriptor identifies a target environment. It is a comparable value
// and is used directly as a lookup key.
type PlatformDescriptor struct {
	// OS is the normalized operating system name (GOOS style).
	OS string
	// Arch is the normalized CPU architecture name (GOARCH style).
	Arch string
}

// NewPlatform returns a descriptor with lower-cased, trimmed fields.
func NewPlatform(os, arch string) PlatformDescriptor {
	return PlatformDescriptor{
		OS:   strings.ToLower(strings.TrimSpace(os)),
		Arch: strings.ToLower(strings.TrimSpace(arch)),
	}
}

// ParsePlatform parses a "<os>/<arch>" key. A dash is accepted as separator
// too, matching release asset names like "darwin-arm64".
func ParsePlatform(key string) (PlatformDescriptor, error) {
	key = strings.TrimSpace(key)

	osName, arch, found := strings.Cut(key, platformSeparator)
	if !found {
		osName, arch, found = strings.Cut(key, "-")
	}

	if !found || osName == "" || arch == "" {
		return PlatformDescriptor{}, fmt.Errorf("%w: malformed platform %q", ErrUnsupportedPlatform, key)
	}

	return NewPlatform(osName, arch), nil
}

// Key returns the "<os>/<arch>" form of the descriptor.
func (p PlatformDescriptor) Key() string {
	return p.OS + platformSeparator + p.Arch
}

// String implements fmt.Stringer.
func (p PlatformDescriptor) String() string {
	return p.Key()
}

// IsZero reports whether neither field is set.
func (p PlatformDescriptor) IsZero() bool {
	return p.OS == "" && p.Arch == ""
}

// ExecutableSuffix returns ".exe" for windows targets and "" otherwise.
func (p PlatformDescriptor) ExecutableSuffix() string {
	if p.OS == OSWindows {
		return ".exe"
	}

	return ""
}
