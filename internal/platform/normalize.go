package platform

import (
	"strings"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// osAliases maps alternative spellings to GOOS names.
//
//nolint:gochecknoglobals // Read-only lookup table.
var osAliases = map[string]string{
	"macos": artifact.OSDarwin,
	"osx":   artifact.OSDarwin,
	"mac":   artifact.OSDarwin,
	"win":   artifact.OSWindows,
	"win32": artifact.OSWindows,
	"win64": artifact.OSWindows,
}

// archAliases maps uname -m and vendor spellings to GOARCH names.
//
//nolint:gochecknoglobals // Read-only lookup table.
var archAliases = map[string]string{
	"x86_64":  artifact.ArchAMD64,
	"x64":     artifact.ArchAMD64,
	"x86-64":  artifact.ArchAMD64,
	"aarch64": artifact.ArchARM64,
	"armv8":   artifact.ArchARM64,
	"armv8l":  artifact.ArchARM64,
	"i386":    "386",
	"i686":    "386",
	"x86":     "386",
	"armv7l":  "arm",
	"armv7":   "arm",
	"armv6l":  "arm",
}

// NormalizeOS converts an operating system name to GOOS spelling.
func NormalizeOS(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := osAliases[name]; ok {
		return canonical
	}

	return name
}

// NormalizeArch converts an architecture name to GOARCH spelling.
func NormalizeArch(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := archAliases[name]; ok {
		return canonical
	}

	return name
}

// Normalize returns a descriptor with both fields in GOOS/GOARCH spelling.
func Normalize(p artifact.PlatformDescriptor) artifact.PlatformDescriptor {
	return artifact.PlatformDescriptor{
		OS:   NormalizeOS(p.OS),
		Arch: NormalizeArch(p.Arch),
	}
}

// Parse parses "<os>/<arch>" (or "<os>-<arch>") and normalizes aliases.
func Parse(key string) (artifact.PlatformDescriptor, error) {
	p, err := artifact.ParsePlatform(key)
	if err != nil {
		return artifact.PlatformDescriptor{}, err
	}

	return Normalize(p), nil
}
