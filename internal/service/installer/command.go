package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
	"github.com/oshokin/zere-installer/internal/platform"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
)

var (
	errManifestNotSet = errors.New("manifest repository is not set")
	errFetcherNotSet  = errors.New("artifact fetcher is not set")
	errDetectorNotSet = errors.New("platform detector is not set")
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Manifest provides the release manifest.
	Manifest manifest.Repository
	// Fetcher downloads the artifact.
	Fetcher manifest.Fetcher
	// Detector finds the host platform unless both overrides are set.
	Detector platform.Detector
	// Version to install, "latest" or empty for the highest semantic version.
	Version string
	// OS and Arch override the detected platform.
	OS   string
	Arch string
	// Destination is the directory receiving the executable.
	Destination string
	// ExecutableName is the file name without the platform suffix.
	ExecutableName string
	// SkipSelfCheck disables running the installed binary.
	SkipSelfCheck bool
	// SelfCheckTimeout bounds the smoke test.
	SelfCheckTimeout time.Duration
	// SelfCheckMarker must appear in the smoke test output.
	SelfCheckMarker string
	// MaxArtifactSize caps the decompressed artifact size.
	MaxArtifactSize int64
}

// Result describes a finished invocation.
type Result struct {
	// Spec is the resolved artifact.
	Spec artifact.Spec
	// Target is where the artifact was installed.
	Target artifact.Target
	// Stage is StageDone on success and StageFailed otherwise.
	Stage artifact.Stage
	// Duration is the wall time of the whole invocation.
	Duration time.Duration
	// Bytes is the downloaded size.
	Bytes int64
}

// runner holds the state of a single install invocation.
type runner struct {
	opts   *Options
	stage  artifact.Stage
	spec   artifact.Spec
	target artifact.Target
	data   []byte
}

// Run executes the full install sequence and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "installer")
	ctx = logger.WithKV(ctx, "invocation", uuid.NewString())

	started := time.Now()

	r, err := newRunner(opts)
	if err != nil {
		return &Result{Stage: artifact.StageFailed}, err
	}

	err = r.run(ctx)

	result := &Result{
		Spec:     r.spec,
		Target:   r.target,
		Stage:    r.stage,
		Duration: time.Since(started),
		Bytes:    int64(len(r.data)),
	}

	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return result, err
	}

	logger.InfoKV(ctx, "Install completed",
		"path", r.target.Path(),
		"version", r.spec.Version,
		"platform", r.spec.Platform,
		"size", humanize.Bytes(uint64(result.Bytes)),
		"duration", result.Duration.Round(time.Millisecond))

	return result, nil
}

// Resolve looks up the artifact that Run would install. Unlike Run it leaves
// the destination directory untouched.
func Resolve(ctx context.Context, opts *Options) (artifact.Spec, error) {
	ctx = logger.WithName(ctx, "installer")

	r, err := newRunner(opts)
	if err != nil {
		return artifact.Spec{}, err
	}

	if err = r.lookup(ctx); err != nil {
		err = &artifact.StageError{Stage: artifact.StageResolving, Err: err}
		logger.ErrorKV(ctx, "Resolve failed", "error", err)

		return artifact.Spec{}, err
	}

	return r.spec, nil
}

func newRunner(opts *Options) (*runner, error) {
	switch {
	case opts == nil || opts.Manifest == nil:
		return nil, errManifestNotSet
	case opts.Fetcher == nil:
		return nil, errFetcherNotSet
	case opts.Detector == nil && (opts.OS == "" || opts.Arch == ""):
		return nil, errDetectorNotSet
	}

	normalized := *opts

	if normalized.Destination == "" {
		normalized.Destination = config.DefaultDestination()
	}

	if normalized.ExecutableName == "" {
		normalized.ExecutableName = config.DefaultExecutableName
	}

	if normalized.SelfCheckTimeout <= 0 {
		normalized.SelfCheckTimeout = config.DefaultSelfCheckTimeout
	}

	if normalized.SelfCheckMarker == "" {
		normalized.SelfCheckMarker = normalized.ExecutableName
	}

	if normalized.MaxArtifactSize <= 0 {
		normalized.MaxArtifactSize = config.DefaultMaxArtifactSize
	}

	return &runner{opts: &normalized, stage: artifact.StageResolving}, nil
}

// run walks the stages in order. A failed stage stops the sequence and
// leaves the runner in StageFailed.
func (r *runner) run(ctx context.Context) error {
	steps := map[artifact.Stage]func(context.Context) error{
		artifact.StageResolving:    r.resolve,
		artifact.StageFetching:     r.fetch,
		artifact.StageVerifying:    r.verify,
		artifact.StageInstalling:   r.install,
		artifact.StageSelfChecking: r.selfCheck,
	}

	for !r.stage.IsTerminal() {
		stageCtx := logger.WithKV(ctx, "stage", r.stage.String())
		logger.DebugKV(stageCtx, "Stage started")

		if err := steps[r.stage](stageCtx); err != nil {
			failed := r.stage
			r.stage = artifact.StageFailed

			return &artifact.StageError{Stage: failed, Err: err}
		}

		r.stage = r.stage.Next()
	}

	return nil
}

// resolve looks up the artifact and checks that the destination is writable
// before any download.
func (r *runner) resolve(ctx context.Context) error {
	if err := r.lookup(ctx); err != nil {
		return err
	}

	return Preflight(ctx, r.target)
}

// lookup loads the manifest, picks the platform and finds the artifact.
func (r *runner) lookup(ctx context.Context) error {
	target, err := platform.Resolve(ctx, r.opts.Detector, r.opts.OS, r.opts.Arch)
	if err != nil {
		return err
	}

	m, err := r.opts.Manifest.Load(ctx)
	if err != nil {
		return err
	}

	spec, err := m.Resolve(r.opts.Version, target)
	if err != nil {
		return err
	}

	r.spec = spec
	r.target = artifact.Target{
		DestinationPath: r.opts.Destination,
		ExecutableName:  r.opts.ExecutableName,
		Platform:        target,
	}

	logger.InfoKV(ctx, "Resolved artifact",
		"version", spec.Version,
		"platform", spec.Platform,
		"url", spec.URL)

	return nil
}

func (r *runner) fetch(ctx context.Context) error {
	data, err := r.opts.Fetcher.Get(ctx, r.spec.URL)
	if err != nil {
		return fmt.Errorf("download %s: %w", r.spec.URL, err)
	}

	r.data = data

	return nil
}

func (r *runner) verify(ctx context.Context) error {
	if err := Verify(r.data, r.spec.ExpectedChecksum); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Checksum verified", "sha256", r.spec.ExpectedChecksum)

	return nil
}

// install decompresses the verified bytes when needed and places them at the target.
func (r *runner) install(ctx context.Context) error {
	data, err := Decompress(r.data, r.spec.Compression, r.opts.MaxArtifactSize)
	if err != nil {
		return &artifact.InstallError{Path: r.target.Path(), Cause: err}
	}

	return Install(ctx, data, r.target)
}

func (r *runner) selfCheck(ctx context.Context) error {
	if r.opts.SkipSelfCheck {
		logger.Info(ctx, "Self-check skipped")
		return nil
	}

	return SelfCheck(ctx, r.target.Path(), r.opts.SelfCheckMarker, r.opts.SelfCheckTimeout)
}
