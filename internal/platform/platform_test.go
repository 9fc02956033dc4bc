package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// fixedDetector always returns the same platform.
type fixedDetector struct {
	platform artifact.PlatformDescriptor
}

func (f fixedDetector) Detect(context.Context) (artifact.PlatformDescriptor, error) {
	return f.platform, nil
}

// TestNormalize covers uname, vendor and GOARCH spellings.
func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"x86_64":  "amd64",
		"AMD64":   "amd64",
		"aarch64": "arm64",
		"arm64":   "arm64",
		"i686":    "386",
		"armv7l":  "arm",
		"riscv64": "riscv64",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeArch(in), in)
	}

	require.Equal(t, "darwin", NormalizeOS("macOS"))
	require.Equal(t, "windows", NormalizeOS("win64"))
	require.Equal(t, "linux", NormalizeOS(" Linux "))
}

// TestParse normalizes aliases inside platform keys.
func TestParse(t *testing.T) {
	t.Parallel()

	p, err := Parse("macos/aarch64")
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("darwin", "arm64"), p)

	_, err = Parse("nonsense")
	require.ErrorIs(t, err, artifact.ErrUnsupportedPlatform)
}

// TestDetect_Rosetta selects the native build for an amd64 binary translated on Apple Silicon.
func TestDetect_Rosetta(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { return true, nil },
		kernelArch: func() (string, error) { return "x86_64", nil },
		goos:       "darwin",
		goarch:     "amd64",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("darwin", "arm64"), p)
}

// TestDetect_NativeIntelMac keeps amd64 when the process is not translated.
func TestDetect_NativeIntelMac(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { return false, nil },
		kernelArch: func() (string, error) { return "x86_64", nil },
		goos:       "darwin",
		goarch:     "amd64",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("darwin", "amd64"), p)
}

// TestDetect_TranslationUnknown keeps GOARCH when the sysctl cannot be read.
func TestDetect_TranslationUnknown(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { return false, errors.New("sysctl unavailable") },
		kernelArch: func() (string, error) { return "arm64", nil },
		goos:       "darwin",
		goarch:     "amd64",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("darwin", "amd64"), p)
}

// TestDetect_LinuxKeepsUserland installs the armhf build on a 64-bit kernel with a 32-bit userland.
func TestDetect_LinuxKeepsUserland(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { panic("must not be called") },
		kernelArch: func() (string, error) { return "aarch64", nil },
		goos:       "linux",
		goarch:     "arm",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("linux", "arm"), p)
}

// TestDetect_LinuxKernelUnavailable falls back to GOARCH silently.
func TestDetect_LinuxKernelUnavailable(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { panic("must not be called") },
		kernelArch: func() (string, error) { return "", errors.New("uname unavailable") },
		goos:       "linux",
		goarch:     "amd64",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("linux", "amd64"), p)
}

// TestDetect_WindowsIgnoresKernel never consults the kernel on windows.
func TestDetect_WindowsIgnoresKernel(t *testing.T) {
	t.Parallel()

	d := &RealDetector{
		translated: func() (bool, error) { panic("must not be called") },
		kernelArch: func() (string, error) { panic("must not be called") },
		goos:       "windows",
		goarch:     "amd64",
	}

	p, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("windows", "amd64"), p)
}

// TestDetect_Cancelled returns the context error.
func TestDetect_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector().Detect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// TestResolve_Overrides applies full and partial overrides.
func TestResolve_Overrides(t *testing.T) {
	t.Parallel()

	detector := fixedDetector{platform: artifact.NewPlatform("linux", "amd64")}

	p, err := Resolve(context.Background(), detector, "macos", "aarch64")
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("darwin", "arm64"), p)

	p, err = Resolve(context.Background(), detector, "", "arm64")
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("linux", "arm64"), p)

	p, err = Resolve(context.Background(), detector, "", "")
	require.NoError(t, err)
	require.Equal(t, artifact.NewPlatform("linux", "amd64"), p)
}
