package installer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
	"github.com/oshokin/zere-installer/internal/service/common"
)

// fakeBinary prints a version line like the real zere binary.
const fakeBinary = "#!/bin/sh\necho \"zere 0.1.0 (test build)\"\n"

// fixedDetector reports a fixed platform.
type fixedDetector artifact.PlatformDescriptor

func (d fixedDetector) Detect(context.Context) (artifact.PlatformDescriptor, error) {
	return artifact.PlatformDescriptor(d), nil
}

// staticRepository returns a prepared manifest.
type staticRepository struct {
	manifest *manifest.Manifest
	err      error
}

func (r staticRepository) Load(context.Context) (*manifest.Manifest, error) {
	return r.manifest, r.err
}

// artifactServer serves release files and counts requests.
type artifactServer struct {
	*httptest.Server
	requests atomic.Int32
}

// newArtifactServer serves files by path and 404s everything else.
func newArtifactServer(t *testing.T, files map[string][]byte) *artifactServer {
	t.Helper()

	server := new(artifactServer)
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.requests.Add(1)

		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return server
}

// newFetcher retries once without a noticeable backoff.
func newFetcher() *common.Client {
	return common.NewClient(
		common.WithRetries(1),
		common.WithBackoff(time.Millisecond, time.Millisecond),
		common.WithCallTimeout(5*time.Second))
}

// singleEntryManifest lists one artifact for version 0.1.0.
func singleEntryManifest(p artifact.PlatformDescriptor, url, checksum, compression string) *manifest.Manifest {
	m := new(manifest.Manifest)
	m.Name = "zere"
	m.Put("0.1.0", []manifest.Entry{{
		OS:          p.OS,
		Arch:        p.Arch,
		URL:         url,
		Checksum:    checksum,
		Compression: compression,
	}})

	return m
}

// hostPlatform is the platform the tests run on.
func hostPlatform() artifact.PlatformDescriptor {
	return artifact.NewPlatform(runtime.GOOS, runtime.GOARCH)
}

// skipOnWindows skips tests that execute shell scripts.
func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == artifact.OSWindows {
		t.Skip("shell script binaries need a unix host")
	}
}

// tempFiles lists temporary install files left in dir.
func tempFiles(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".*"+tempSuffix))
	require.NoError(t, err)

	return matches
}
