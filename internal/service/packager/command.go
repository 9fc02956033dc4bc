package packager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/mod/semver"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
	"github.com/oshokin/zere-installer/internal/platform"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
	"github.com/oshokin/zere-installer/internal/service/installer"
)

const (
	// DefaultManifestPath is where the manifest is written unless told otherwise.
	DefaultManifestPath = "zere-manifest.yaml"
	// versionPlaceholder in the base URL is replaced with the release version.
	versionPlaceholder = "{version}"
)

var (
	errVersionRequired   = errors.New("version is required")
	errBadBaseURL        = errors.New("base URL must be an absolute http(s) URL")
	errNoArtifacts       = errors.New("no release binaries found")
	errDuplicateArtifact = errors.New("more than one binary for platform")
)

// compressionBySuffix maps release file suffixes to manifest compression names.
//
//nolint:gochecknoglobals // Read-only lookup table.
var compressionBySuffix = map[string]string{
	".gz":  artifact.CompressionGzip,
	".zst": artifact.CompressionZstd,
	".xz":  artifact.CompressionXZ,
}

// Options contains inputs for the packager entry point.
type Options struct {
	// Directory holds the release binaries.
	Directory string
	// Version is the release version the binaries belong to.
	Version string
	// BaseURL is the download location of the binaries; "{version}" is expanded.
	BaseURL string
	// ManifestPath is the manifest to create or update.
	ManifestPath string
	// Name is the binary name prefix, "zere" by default.
	Name string
}

// packager builds manifest entries from release binaries.
type packager struct {
	opts    *Options
	baseURL string
	pattern *regexp.Regexp
}

// Run scans the release directory and writes the version into the manifest.
// Entries of other versions already present in the manifest are kept.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return err
	}

	if err = pkg.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Packager failed", "error", err)
		return err
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

func newPackager(opts *Options) (*packager, error) {
	normalized := *opts

	normalized.Version = strings.TrimSpace(normalized.Version)
	if normalized.Version == "" {
		return nil, errVersionRequired
	}

	if normalized.Name == "" {
		normalized.Name = config.DefaultExecutableName
	}

	if normalized.ManifestPath == "" {
		normalized.ManifestPath = DefaultManifestPath
	}

	if normalized.Directory == "" {
		normalized.Directory = "."
	}

	baseURL := strings.TrimRight(strings.ReplaceAll(normalized.BaseURL, versionPlaceholder, normalized.Version), "/")

	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", errBadBaseURL, normalized.BaseURL)
	}

	// <name>-<os>-<arch>[.exe][.gz|.zst|.xz]
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(normalized.Name) +
		`-([A-Za-z0-9]+)-([A-Za-z0-9_]+)(\.exe)?(\.gz|\.zst|\.xz)?$`)

	return &packager{opts: &normalized, baseURL: baseURL, pattern: pattern}, nil
}

func (p *packager) run(ctx context.Context) error {
	if !semver.IsValid("v" + strings.TrimPrefix(p.opts.Version, "v")) {
		logger.WarnKV(ctx, "Version is not a semantic version, \"latest\" will never select it",
			"version", p.opts.Version)
	}

	entries, err := p.collectEntries(ctx)
	if err != nil {
		return err
	}

	m, err := p.loadManifest(ctx)
	if err != nil {
		return err
	}

	if _, replaced := m.Versions[p.opts.Version]; replaced {
		logger.InfoKV(ctx, "Replacing existing version", "version", p.opts.Version)
	}

	m.Name = p.opts.Name
	m.Put(p.opts.Version, entries)

	if err = manifest.Save(p.opts.ManifestPath, m); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest saved",
		"path", p.opts.ManifestPath,
		"version", p.opts.Version,
		"platforms", len(entries))

	p.printNextSteps(ctx, entries)

	return nil
}

// collectEntries hashes every release binary in the directory.
func (p *packager) collectEntries(ctx context.Context) ([]manifest.Entry, error) {
	files, err := os.ReadDir(p.opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("read release directory: %w", err)
	}

	var (
		entries = make([]manifest.Entry, 0, len(files))
		seen    = make(map[artifact.PlatformDescriptor]string, len(files))
	)

	for _, file := range files {
		if !file.Type().IsRegular() {
			continue
		}

		match := p.pattern.FindStringSubmatch(file.Name())
		if match == nil {
			logger.DebugKV(ctx, "Skipping file", "file", file.Name())
			continue
		}

		target := platform.Normalize(artifact.NewPlatform(match[1], match[2]))
		if previous, ok := seen[target]; ok {
			return nil, fmt.Errorf("%w %s: %s and %s", errDuplicateArtifact, target, previous, file.Name())
		}

		seen[target] = file.Name()

		data, err := os.ReadFile(filepath.Join(p.opts.Directory, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name(), err)
		}

		entry := manifest.Entry{
			OS:          target.OS,
			Arch:        target.Arch,
			URL:         p.baseURL + "/" + url.PathEscape(file.Name()),
			Checksum:    installer.Checksum(data),
			Compression: compressionBySuffix[match[4]],
		}

		logger.InfoKV(ctx, "Added binary",
			"file", file.Name(),
			"platform", target,
			"size", humanize.Bytes(uint64(len(data))),
			"sha256", entry.Checksum)

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w in %s matching %s-<os>-<arch>", errNoArtifacts, p.opts.Directory, p.opts.Name)
	}

	return entries, nil
}

// loadManifest reads the manifest to update or starts an empty one.
func (p *packager) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	if _, err := os.Stat(p.opts.ManifestPath); errors.Is(err, os.ErrNotExist) {
		logger.InfoKV(ctx, "Creating new manifest", "path", p.opts.ManifestPath)
		return new(manifest.Manifest), nil
	}

	repo, err := manifest.NewRepository(p.opts.ManifestPath)
	if err != nil {
		return nil, err
	}

	m, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing manifest: %w", err)
	}

	return m, nil
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context, entries []manifest.Entry) {
	var builder strings.Builder

	builder.WriteString("Upload the following files so that they are served from ")
	builder.WriteString(p.baseURL)
	builder.WriteString(":\n")

	for _, entry := range entries {
		builder.WriteString("  ")
		builder.WriteString(entry.URL[len(p.baseURL)+1:])
		builder.WriteString("\n")
	}

	builder.WriteString("Then publish ")
	builder.WriteString(p.opts.ManifestPath)
	builder.WriteString(" and install with: zere-installer --manifest <url of ")
	builder.WriteString(filepath.Base(p.opts.ManifestPath))
	builder.WriteString("> --version ")
	builder.WriteString(p.opts.Version)

	logger.Info(ctx, builder.String())
}
