package artifact

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the installer. Callers match them with errors.Is;
// typed errors below unwrap to the matching kind.
var (
	// ErrUnsupportedPlatform means the manifest has no entry for the os/arch pair.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrUnknownVersion means the requested version is absent from the manifest.
	ErrUnknownVersion = errors.New("unknown version")
	// ErrNetwork means the artifact host could not be reached.
	ErrNetwork = errors.New("network error")
	// ErrHTTP means the artifact host answered with a non-2xx status.
	ErrHTTP = errors.New("http error")
	// ErrChecksumMismatch means the downloaded bytes do not match the expected digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInstall means the verified bytes could not be placed at the destination.
	ErrInstall = errors.New("install error")
	// ErrSelfCheckFailed means the installed binary did not pass the smoke test.
	ErrSelfCheckFailed = errors.New("self-check failed")
	// ErrInvalidManifest means the manifest failed validation before any artifact download.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// HTTPError carries the status returned by the artifact host.
type HTTPError struct {
	// URL is the requested address.
	URL string
	// StatusCode is the HTTP status code.
	StatusCode int
	// Status is the status line text, e.g. "404 Not Found".
	Status string
}

// Error implements error.
func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}

	return fmt.Sprintf("%s: %s, %s", ErrHTTP, e.URL, status)
}

// Unwrap makes errors.Is(err, ErrHTTP) succeed.
func (e *HTTPError) Unwrap() error {
	return ErrHTTP
}

// ChecksumError describes a digest mismatch.
type ChecksumError struct {
	// Expected is the digest from the manifest.
	Expected string
	// Actual is the digest of the downloaded bytes.
	Actual string
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrChecksumMismatch, e.Expected, e.Actual)
}

// Unwrap makes errors.Is(err, ErrChecksumMismatch) succeed.
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// InstallError wraps the filesystem cause of a failed install
// (permission denied, disk full, cross-device rename).
type InstallError struct {
	// Path is the file the installer was writing or renaming.
	Path string
	// Cause is the underlying filesystem error.
	Cause error
}

// Error implements error.
func (e *InstallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInstall, e.Path, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *InstallError) Unwrap() []error {
	return []error{ErrInstall, e.Cause}
}

// StageError names the stage an install run failed in.
type StageError struct {
	// Stage is where the run stopped.
	Stage Stage
	// Err is the failure reason.
	Err error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the failure reason.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Exit codes, one per error kind, so scripts can tell failures apart.
const (
	ExitOK                  = 0
	ExitGeneric             = 1
	ExitUnsupportedPlatform = 2
	ExitUnknownVersion      = 3
	ExitNetwork             = 4
	ExitHTTP                = 5
	ExitChecksumMismatch    = 6
	ExitInstall             = 7
	ExitSelfCheckFailed     = 8
	ExitInvalidManifest     = 9
)

// kindExitCodes keeps the order in which kinds are matched.
//
//nolint:gochecknoglobals // Read-only lookup table.
var kindExitCodes = []struct {
	kind error
	code int
}{
	{ErrInvalidManifest, ExitInvalidManifest},
	{ErrUnsupportedPlatform, ExitUnsupportedPlatform},
	{ErrUnknownVersion, ExitUnknownVersion},
	{ErrChecksumMismatch, ExitChecksumMismatch},
	{ErrHTTP, ExitHTTP},
	{ErrNetwork, ExitNetwork},
	{ErrInstall, ExitInstall},
	{ErrSelfCheckFailed, ExitSelfCheckFailed},
}

// Kind returns the error kind err belongs to, or nil if it is none of them.
func Kind(err error) error {
	if err == nil {
		return nil
	}

	for _, entry := range kindExitCodes {
		if errors.Is(err, entry.kind) {
			return entry.kind
		}
	}

	return nil
}

// ExitCode maps an error to the process exit code for its kind.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	for _, entry := range kindExitCodes {
		if errors.Is(err, entry.kind) {
			return entry.code
		}
	}

	return ExitGeneric
}
