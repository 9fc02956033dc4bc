package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
)

// Detector returns the platform of the running host.
type Detector interface {
	Detect(ctx context.Context) (artifact.PlatformDescriptor, error)
}

// RealDetector implements Detector using runtime and gopsutil.
type RealDetector struct {
	// translated reports whether the process runs under Rosetta. Swappable in tests.
	translated func() (bool, error)
	// kernelArch is swappable in tests.
	kernelArch func() (string, error)
	// goos and goarch default to the runtime values.
	goos, goarch string
}

// NewDetector creates a detector for the running host.
func NewDetector() *RealDetector {
	return &RealDetector{
		translated: processTranslated,
		kernelArch: host.KernelArch,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

// Detect returns the normalized os/arch pair of the host.
// An amd64 build translated by Rosetta resolves to darwin/arm64. Everywhere
// else GOARCH decides: a 64-bit kernel may run a 32-bit userland, so the
// kernel architecture is only logged.
func (d *RealDetector) Detect(ctx context.Context) (artifact.PlatformDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return artifact.PlatformDescriptor{}, fmt.Errorf("platform detection cancelled: %w", err)
	}

	descriptor := artifact.PlatformDescriptor{
		OS:   NormalizeOS(d.goos),
		Arch: NormalizeArch(d.goarch),
	}

	switch descriptor.OS {
	case artifact.OSDarwin:
		if descriptor.Arch == artifact.ArchAMD64 {
			translated, err := d.translated()

			switch {
			case err != nil:
				logger.DebugKV(ctx, "Rosetta translation state unavailable, using GOARCH",
					"goarch", d.goarch, "error", err)
			case translated:
				logger.InfoKV(ctx, "Running under Rosetta, selecting the native build",
					"goarch", d.goarch, "arch", artifact.ArchARM64)

				descriptor.Arch = artifact.ArchARM64
			}
		}
	case artifact.OSLinux:
		if kernelArch, err := d.kernelArch(); err == nil && NormalizeArch(kernelArch) != descriptor.Arch {
			logger.InfoKV(ctx, "Kernel architecture differs from installer build, keeping GOARCH",
				"kernel", kernelArch, "goarch", d.goarch)
		}

		logDistribution(ctx)
	}

	return descriptor, nil
}

// logDistribution records the Linux distribution for diagnostics only.
func logDistribution(ctx context.Context) {
	platformID, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Distribution detection failed", "error", err)
		return
	}

	logger.DebugKV(ctx, "Detected distribution",
		"platform", platformID, "family", family, "version", version)
}

// Resolve applies optional os/arch overrides on top of the detected platform.
// Empty overrides keep the detected value.
func Resolve(
	ctx context.Context,
	detector Detector,
	osOverride, archOverride string,
) (artifact.PlatformDescriptor, error) {
	if osOverride != "" && archOverride != "" {
		return Normalize(artifact.NewPlatform(osOverride, archOverride)), nil
	}

	detected, err := detector.Detect(ctx)
	if err != nil {
		return artifact.PlatformDescriptor{}, err
	}

	if osOverride != "" {
		detected.OS = NormalizeOS(osOverride)
	}

	if archOverride != "" {
		detected.Arch = NormalizeArch(archOverride)
	}

	return detected, nil
}
