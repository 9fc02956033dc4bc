package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// writeScript stores a shell script standing in for the installed binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "zere")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), ExecutableMode))

	return path
}

// TestSelfCheck accepts the marker and rejects wrong output, failures, timeouts and missing files.
func TestSelfCheck(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx := context.Background()

	path := writeScript(t, `echo "zere $1"`)
	require.NoError(t, SelfCheck(ctx, path, "zere --version", time.Second*5))

	path = writeScript(t, `echo "something else"`)
	require.ErrorIs(t, SelfCheck(ctx, path, "zere", 5*time.Second), artifact.ErrSelfCheckFailed)

	path = writeScript(t, `echo "zere broken" >&2; exit 3`)
	err := SelfCheck(ctx, path, "zere", 5*time.Second)
	require.ErrorIs(t, err, artifact.ErrSelfCheckFailed)
	require.Contains(t, err.Error(), "zere broken")

	path = writeScript(t, `exec sleep 5`)
	err = SelfCheck(ctx, path, "zere", 100*time.Millisecond)
	require.ErrorIs(t, err, artifact.ErrSelfCheckFailed)
	require.Contains(t, err.Error(), "timed out")

	err = SelfCheck(ctx, filepath.Join(t.TempDir(), "missing"), "zere", time.Second)
	require.ErrorIs(t, err, artifact.ErrSelfCheckFailed)
	require.Equal(t, artifact.ExitSelfCheckFailed, artifact.ExitCode(err))
}

// TestSelfCheck_Cancelled reports an interrupted check as cancelled, not timed out.
func TestSelfCheck_Cancelled(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	path := writeScript(t, `exec sleep 5`)

	err := SelfCheck(ctx, path, "zere", 10*time.Second)
	require.ErrorIs(t, err, artifact.ErrSelfCheckFailed)
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "cancelled")
	require.NotContains(t, err.Error(), "timed out")
}
