package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/platform"
	"github.com/oshokin/zere-installer/internal/service/common"
	"github.com/oshokin/zere-installer/internal/service/packager"
)

// releaseScript behaves like the zere binary for the self-check.
const releaseScript = "#!/bin/sh\necho \"zere 0.1.0\"\n"

// release is a packaged release served over HTTP.
type release struct {
	server       *httptest.Server
	manifestPath string
	manifestURL  string
	host         artifact.PlatformDescriptor
}

// publishRelease writes a host binary, packages it and serves the directory.
func publishRelease(t *testing.T, manifestName string, wrap func(http.Handler) http.Handler) *release {
	t.Helper()

	if runtime.GOOS == artifact.OSWindows {
		t.Skip("release binaries are shell scripts")
	}

	host, err := platform.NewDetector().Detect(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	binary := filepath.Join(dir, "zere-"+host.OS+"-"+host.Arch)
	require.NoError(t, os.WriteFile(binary, []byte(releaseScript), 0o600))

	var handler http.Handler = http.FileServer(http.Dir(dir))
	if wrap != nil {
		handler = wrap(handler)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	manifestPath := filepath.Join(dir, manifestName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, packager.Run(ctx, &packager.Options{
		Directory:    dir,
		Version:      "0.1.0",
		BaseURL:      server.URL,
		ManifestPath: manifestPath,
	}))

	return &release{
		server:       server,
		manifestPath: manifestPath,
		manifestURL:  server.URL + "/" + manifestName,
		host:         host,
	}
}

func newClient() *common.Client {
	return common.NewClient(
		common.WithRetries(3),
		common.WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		common.WithCallTimeout(5*time.Second))
}
