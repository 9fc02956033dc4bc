package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/zere-installer/internal/logger"
)

// Config holds the installer settings. Command-line flags override these values.
type Config struct {
	// Manifest is a file path or HTTP(S) URL of the release manifest.
	Manifest string `yaml:"manifest"`
	// Signature is an optional path or URL of the manifest's detached armored signature.
	// When empty and PublicKey is set, "<manifest>.asc" is used.
	Signature string `yaml:"signature,omitempty"`
	// PublicKey is an optional path to an armored OpenPGP public key. When set,
	// the manifest must carry a valid signature from it.
	PublicKey string `yaml:"public_key,omitempty"`
	// Destination is the directory the executable is installed into.
	Destination string `yaml:"destination"`
	// ExecutableName is the installed file name without platform suffix.
	ExecutableName string `yaml:"executable"`
	// Version is the release to install, "latest" picks the highest one in the manifest.
	Version string `yaml:"version"`
	// Timeout bounds a single download attempt.
	Timeout time.Duration `yaml:"timeout"`
	// Retries is how many times a failed download is retried.
	Retries int `yaml:"retries"`
	// SelfCheckTimeout bounds the post-install smoke test.
	SelfCheckTimeout time.Duration `yaml:"self_check_timeout"`
	// SelfCheckMarker must appear in the output of `<executable> --version`.
	// Defaults to ExecutableName.
	SelfCheckMarker string `yaml:"self_check_marker,omitempty"`
	// MaxArtifactSize caps the number of bytes read from the artifact host.
	MaxArtifactSize int64 `yaml:"max_artifact_size"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "zere-installer.yaml"

	// DefaultManifest is where released manifests are published.
	DefaultManifest = "https://github.com/umitkavala/zeredata-cli/releases/latest/download/zere-manifest.yaml"

	// DefaultExecutableName is the installed binary name.
	DefaultExecutableName = "zere"

	// LatestVersion selects the highest version present in the manifest.
	LatestVersion = "latest"

	// DefaultTimeout is the default duration of one download attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the default number of download retries.
	DefaultRetries = 3

	// MaxRetries caps Retries so a typo cannot turn into an endless loop.
	MaxRetries = 10

	// DefaultSelfCheckTimeout is the default duration of the smoke test.
	DefaultSelfCheckTimeout = 10 * time.Second

	// DefaultMaxArtifactSize is 512 MiB.
	DefaultMaxArtifactSize int64 = 512 << 20

	// DefaultLogLevel is used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// configDirName is the per-user directory searched for the settings file.
	configDirName = "zere"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadRetries is returned for a negative or excessive retry count.
	errBadRetries = errors.New("retries out of range")
	// errBadLogLevel is returned for an unknown log level.
	errBadLogLevel = errors.New("unknown log level")
	// errExecutableName is returned when the executable name contains a path.
	errExecutableName = errors.New("executable name must be a bare file name")
)

// Default returns settings with every default applied.
func Default() *Config {
	cfg := &Config{Retries: DefaultRetries}

	// Validate only fills defaults for an empty config.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// With an empty path the default file is searched in the working directory and
// then in the user config directory; if none exists the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		found, ok := lookupDefaultFile()
		if !ok {
			return Default(), nil
		}

		path = found
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Validate fills the rest; zero retries is a valid explicit value.
	cfg := &Config{Retries: DefaultRetries}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes Settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills defaults for unset fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.Manifest = strings.TrimSpace(settings.Manifest)
	if settings.Manifest == "" {
		settings.Manifest = DefaultManifest
	}

	if IsRemote(settings.Manifest) {
		if _, err := url.ParseRequestURI(settings.Manifest); err != nil {
			return fmt.Errorf("invalid manifest URI: %w", err)
		}
	}

	if settings.Destination == "" {
		settings.Destination = DefaultDestination()
	}

	if settings.ExecutableName == "" {
		settings.ExecutableName = DefaultExecutableName
	}

	if strings.ContainsAny(settings.ExecutableName, `/\`) {
		return fmt.Errorf("%w: %q", errExecutableName, settings.ExecutableName)
	}

	if settings.Version == "" {
		settings.Version = LatestVersion
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.Retries < 0 || settings.Retries > MaxRetries {
		return fmt.Errorf("%w: %d (allowed 0..%d)", errBadRetries, settings.Retries, MaxRetries)
	}

	if settings.SelfCheckTimeout <= 0 {
		settings.SelfCheckTimeout = DefaultSelfCheckTimeout
	}

	if settings.SelfCheckMarker == "" {
		settings.SelfCheckMarker = settings.ExecutableName
	}

	if settings.MaxArtifactSize <= 0 {
		settings.MaxArtifactSize = DefaultMaxArtifactSize
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errBadLogLevel, settings.LogLevel)
	}

	return nil
}

// IsRemote reports whether a manifest or signature source is an HTTP(S) URL.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// DefaultDestination returns the per-user binary directory:
// ~/.local/bin on unix-like systems and %LOCALAPPDATA%\zere\bin on windows.
func DefaultDestination() string {
	if runtime.GOOS == "windows" {
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, configDirName, "bin")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "bin")
	}

	return filepath.Join(home, ".local", "bin")
}

// lookupDefaultFile returns the first existing default settings file.
func lookupDefaultFile() (string, bool) {
	candidates := []string{DefaultConfigFilename}

	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, configDirName, DefaultConfigFilename))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	return "", false
}
