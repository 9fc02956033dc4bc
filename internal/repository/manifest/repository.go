package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/logger"
)

// FilePermissions is the mode of saved manifests, which are public documents.
const FilePermissions os.FileMode = 0o644

var (
	errEmptySource     = errors.New("manifest source is empty")
	errFetcherRequired = errors.New("remote manifest requires a fetcher")
)

// Repository loads a validated manifest.
type Repository interface {
	Load(ctx context.Context) (*Manifest, error)
}

// Fetcher downloads a remote document.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Option configures a repository.
type Option func(*settings)

type settings struct {
	fetcher   Fetcher
	format    Format
	verifier  *Verifier
	signature string
}

// WithFetcher sets the downloader for remote manifests and signatures.
func WithFetcher(fetcher Fetcher) Option {
	return func(s *settings) {
		s.fetcher = fetcher
	}
}

// WithFormat forces a format instead of detecting it.
func WithFormat(format Format) Option {
	return func(s *settings) {
		s.format = format
	}
}

// WithSignature requires a valid detached signature. An empty source means
// the manifest source with SignatureSuffix appended.
func WithSignature(verifier *Verifier, source string) Option {
	return func(s *settings) {
		s.verifier = verifier
		s.signature = source
	}
}

// FileRepository loads a manifest from the local filesystem.
type FileRepository struct {
	path string
	settings
}

// HTTPRepository downloads a manifest from an HTTP(S) URL.
type HTTPRepository struct {
	url string
	settings
}

// NewRepository returns an HTTPRepository for URLs and a FileRepository otherwise.
func NewRepository(source string, options ...Option) (Repository, error) {
	if source == "" {
		return nil, errEmptySource
	}

	var s settings
	for _, option := range options {
		option(&s)
	}

	if s.verifier != nil && s.signature == "" {
		s.signature = source + SignatureSuffix
	}

	if s.fetcher == nil && (config.IsRemote(source) || config.IsRemote(s.signature)) {
		return nil, errFetcherRequired
	}

	if config.IsRemote(source) {
		return &HTTPRepository{url: source, settings: s}, nil
	}

	return &FileRepository{path: filepath.Clean(source), settings: s}, nil
}

// Load reads, verifies and decodes the manifest file.
func (r *FileRepository) Load(ctx context.Context) (*Manifest, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return r.decode(ctx, r.path, data)
}

// Load downloads, verifies and decodes the manifest.
func (r *HTTPRepository) Load(ctx context.Context) (*Manifest, error) {
	data, err := r.fetcher.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	return r.decode(ctx, r.url, data)
}

func (s *settings) decode(ctx context.Context, source string, data []byte) (*Manifest, error) {
	ctx = logger.WithKV(ctx, "manifest", source)

	if s.verifier != nil {
		signature, err := s.read(ctx, s.signature)
		if err != nil {
			return nil, fmt.Errorf("read manifest signature: %w", err)
		}

		if err := s.verifier.Verify(data, signature); err != nil {
			return nil, err
		}

		logger.DebugKV(ctx, "Manifest signature verified", "signature", s.signature)
	}

	format := s.format
	if format == "" {
		format, _ = FormatFromPath(source)
	}

	m, err := Decode(data, format)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Manifest loaded",
		"size", humanize.Bytes(uint64(len(data))),
		"versions", len(m.Versions))

	return m, nil
}

func (s *settings) read(ctx context.Context, source string) ([]byte, error) {
	if config.IsRemote(source) {
		return s.fetcher.Get(ctx, source)
	}

	return os.ReadFile(filepath.Clean(source))
}

// Save validates a manifest and writes it in the format implied by the file
// extension, YAML when the extension is unknown.
func Save(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}

	format, ok := FormatFromPath(path)
	if !ok {
		format = FormatYAML
	}

	data, err := Encode(m, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Clean(path), data, FilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
