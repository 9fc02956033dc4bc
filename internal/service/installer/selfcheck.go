package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
)

const (
	// versionFlag is passed to the installed binary during the smoke test.
	versionFlag = "--version"
	// maxReportedOutput limits how much of the output ends up in an error.
	maxReportedOutput = 200
	// waitDelay bounds waiting for output after the process is killed.
	waitDelay = time.Second
)

// SelfCheck runs "<path> --version" and requires marker in the combined output.
func SelfCheck(ctx context.Context, path, marker string, timeout time.Duration) error {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, path, versionFlag)
	// Children that keep the output pipe open must not outlive the timeout.
	cmd.WaitDelay = waitDelay

	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s %s cancelled: %w", artifact.ErrSelfCheckFailed, path, versionFlag, ctx.Err())
	}

	if cmdCtx.Err() != nil {
		return fmt.Errorf("%w: %s %s timed out after %s", artifact.ErrSelfCheckFailed, path, versionFlag, timeout)
	}

	if err != nil {
		return fmt.Errorf("%w: %s %s: %w (output: %q)",
			artifact.ErrSelfCheckFailed, path, versionFlag, err, truncate(text))
	}

	if !strings.Contains(text, marker) {
		return fmt.Errorf("%w: marker %q not found in output %q",
			artifact.ErrSelfCheckFailed, marker, truncate(text))
	}

	logger.InfoKV(ctx, "Self-check passed", "output", truncate(text))

	return nil
}

func truncate(text string) string {
	if len(text) <= maxReportedOutput {
		return text
	}

	return text[:maxReportedOutput] + "..."
}
