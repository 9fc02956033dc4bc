package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/platform"
)

// LatestVersion selects the highest semantic version in the manifest.
const LatestVersion = "latest"

var (
	errNoVersions        = errors.New("manifest lists no versions")
	errEmptyVersion      = errors.New("version has no entries")
	errBadVersionKey     = errors.New("version key is empty")
	errMissingPlatform   = errors.New("entry must set os and arch")
	errDuplicatePlatform = errors.New("duplicate platform")
	errBadURL            = errors.New("entry URL must be absolute http(s)")
	errBadCompression    = errors.New("unsupported compression")
	errNoSemverVersions  = errors.New("manifest has no semantic versions")
)

// Manifest is the release document: versions mapped to per-platform entries.
type Manifest struct {
	// Name is the product the manifest describes, e.g. "zere".
	Name string `json:"name" toml:"name" yaml:"name"`
	// Versions maps a version string to its platform entries.
	Versions map[string][]Entry `json:"versions" toml:"versions" yaml:"versions"`
}

// Entry is a single downloadable artifact inside a version.
type Entry struct {
	OS          string `json:"os"                    toml:"os"                    yaml:"os"`
	Arch        string `json:"arch"                  toml:"arch"                  yaml:"arch"`
	URL         string `json:"url"                   toml:"url"                   yaml:"url"`
	Checksum    string `json:"checksum"              toml:"checksum"              yaml:"checksum"`
	Compression string `json:"compression,omitempty" toml:"compression,omitempty" yaml:"compression,omitempty"`
}

// Platform returns the descriptor of the entry.
func (e Entry) Platform() artifact.PlatformDescriptor {
	return artifact.NewPlatform(e.OS, e.Arch)
}

// Spec converts the entry into an artifact spec for the given version.
func (e Entry) Spec(version string) artifact.Spec {
	return artifact.Spec{
		Platform:         e.Platform(),
		URL:              strings.TrimSpace(e.URL),
		ExpectedChecksum: NormalizeChecksum(e.Checksum),
		Version:          version,
		Compression:      strings.ToLower(strings.TrimSpace(e.Compression)),
	}
}

// Validate checks every entry of every version. All problems are reported at
// once and the result wraps artifact.ErrInvalidManifest.
func (m *Manifest) Validate() error {
	if m == nil || len(m.Versions) == 0 {
		return fmt.Errorf("%w: %w", artifact.ErrInvalidManifest, errNoVersions)
	}

	var problems []error

	for _, version := range m.sortedKeys() {
		if strings.TrimSpace(version) == "" {
			problems = append(problems, errBadVersionKey)

			continue
		}

		entries := m.Versions[version]
		if len(entries) == 0 {
			problems = append(problems, fmt.Errorf("version %s: %w", version, errEmptyVersion))

			continue
		}

		seen := make(map[artifact.PlatformDescriptor]struct{}, len(entries))

		for i, entry := range entries {
			if err := validateEntry(entry); err != nil {
				problems = append(problems, fmt.Errorf("version %s, entry %d: %w", version, i, err))

				continue
			}

			p := entry.Platform()
			if _, ok := seen[p]; ok {
				problems = append(problems, fmt.Errorf("version %s: %w %s", version, errDuplicatePlatform, p))

				continue
			}

			seen[p] = struct{}{}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", artifact.ErrInvalidManifest, errors.Join(problems...))
	}

	return nil
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.OS) == "" || strings.TrimSpace(entry.Arch) == "" {
		return errMissingPlatform
	}

	if err := ValidateChecksum(entry.Checksum); err != nil {
		return fmt.Errorf("%s: %w", entry.Platform(), err)
	}

	parsed, err := url.Parse(strings.TrimSpace(entry.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s: %w: %q", entry.Platform(), errBadURL, entry.URL)
	}

	switch strings.ToLower(strings.TrimSpace(entry.Compression)) {
	case artifact.CompressionNone, artifact.CompressionGzip, artifact.CompressionZstd, artifact.CompressionXZ:
	default:
		return fmt.Errorf("%s: %w %q", entry.Platform(), errBadCompression, entry.Compression)
	}

	return nil
}

// Resolve looks up the artifact for an exact (version, platform) pair.
// "latest" or an empty version picks the highest semantic version.
// A leading "v" is tolerated on either side of the comparison.
func (m *Manifest) Resolve(version string, p artifact.PlatformDescriptor) (artifact.Spec, error) {
	key, err := m.lookupVersion(version)
	if err != nil {
		return artifact.Spec{}, err
	}

	for _, entry := range m.Versions[key] {
		if entry.Platform() == p {
			return entry.Spec(key), nil
		}
	}

	return artifact.Spec{}, fmt.Errorf("%w: no %s artifact for version %s (available: %s)",
		artifact.ErrUnsupportedPlatform, p, key, strings.Join(m.PlatformKeys(key), ", "))
}

// SortedVersions returns version keys from lowest to highest. Semantic versions come
// first in semver order, other keys follow in lexical order.
func (m *Manifest) SortedVersions() []string {
	keys := m.sortedKeys()

	slices.SortStableFunc(keys, func(a, b string) int {
		va, vb := canonical(a), canonical(b)

		switch {
		case va != "" && vb != "":
			return semver.Compare(va, vb)
		case va != "":
			return -1
		case vb != "":
			return 1
		default:
			return strings.Compare(a, b)
		}
	})

	return keys
}

// Latest returns the highest semantic version key.
func (m *Manifest) Latest() (string, error) {
	var latest string

	for version := range m.Versions {
		v := canonical(version)
		if v == "" {
			continue
		}

		if latest == "" || semver.Compare(v, canonical(latest)) > 0 {
			latest = version
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w: %w", artifact.ErrUnknownVersion, errNoSemverVersions)
	}

	return latest, nil
}

// PlatformKeys lists the "<os>/<arch>" keys available for a version, sorted.
func (m *Manifest) PlatformKeys(version string) []string {
	entries := m.Versions[version]
	keys := make([]string, 0, len(entries))

	for _, entry := range entries {
		keys = append(keys, entry.Platform().Key())
	}

	slices.Sort(keys)

	return keys
}

// Put replaces all entries of a version.
func (m *Manifest) Put(version string, entries []Entry) {
	if m.Versions == nil {
		m.Versions = make(map[string][]Entry, 1)
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return strings.Compare(a.Platform().Key(), b.Platform().Key())
	})

	m.Versions[version] = sorted
}

// Normalize rewrites os and arch aliases ("x86_64", "macos") of every entry
// into GOOS/GOARCH spelling, so lookups can stay exact.
func (m *Manifest) Normalize() {
	for version, entries := range m.Versions {
		for i := range entries {
			p := platform.Normalize(entries[i].Platform())
			entries[i].OS, entries[i].Arch = p.OS, p.Arch
		}

		m.Versions[version] = entries
	}
}

func (m *Manifest) lookupVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, LatestVersion) {
		return m.Latest()
	}

	if _, ok := m.Versions[version]; ok {
		return version, nil
	}

	// "v0.1.0" and "0.1.0" name the same release.
	wanted := canonical(version)
	if wanted != "" {
		for key := range m.Versions {
			if canonical(key) == wanted {
				return key, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s (available: %s)",
		artifact.ErrUnknownVersion, version, strings.Join(m.SortedVersions(), ", "))
}

func (m *Manifest) sortedKeys() []string {
	keys := make([]string, 0, len(m.Versions))
	for version := range m.Versions {
		keys = append(keys, version)
	}

	slices.Sort(keys)

	return keys
}

// canonical returns the semver form of a version ("v1.2.3") or "" when the
// string is not a semantic version.
func canonical(version string) string {
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	if !semver.IsValid(version) {
		return ""
	}

	return semver.Canonical(version)
}
