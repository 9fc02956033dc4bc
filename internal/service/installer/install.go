package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
)

const (
	// ExecutableMode is the mode of the installed binary.
	ExecutableMode os.FileMode = 0o755
	// DirectoryMode is used when the destination directory is created.
	DirectoryMode os.FileMode = 0o755
	// tempMode is the mode of the temporary file until it is complete.
	tempMode os.FileMode = 0o600
	// tempSuffix ends every temporary file name.
	tempSuffix = ".tmp"
	// oldSuffix marks a previous binary moved aside when it cannot be replaced in place.
	oldSuffix = ".old"
	// staleTempAge is the age after which leftovers from crashed runs are removed.
	staleTempAge = time.Hour
)

// errNotRegularFile is returned when something other than a previous binary
// occupies the destination path.
var errNotRegularFile = errors.New("destination exists and is not a regular file")

// fileInstaller carries the hooks that tests replace.
type fileInstaller struct {
	// now is the clock used to age temporary files.
	now func() time.Time
	// processes lists running processes.
	processes func() ([]ps.Process, error)
	// beforeRename runs after the temporary file is complete and before it
	// is moved into place.
	beforeRename func(tempPath string) error
	// goos selects the windows move-aside fallback.
	goos string
}

//nolint:gochecknoglobals // Production hooks.
var defaultInstaller = &fileInstaller{
	now:          time.Now,
	processes:    ps.Processes,
	beforeRename: func(string) error { return nil },
	goos:         runtime.GOOS,
}

// Preflight creates the destination directory and checks that a file can be
// created in it.
func Preflight(ctx context.Context, target artifact.Target) error {
	if err := os.MkdirAll(target.DestinationPath, DirectoryMode); err != nil {
		return &artifact.InstallError{Path: target.DestinationPath, Cause: err}
	}

	options := goupdate.Options{
		TargetPath: target.Path(),
		TargetMode: ExecutableMode,
	}

	if err := options.CheckPermissions(); err != nil {
		return &artifact.InstallError{Path: target.DestinationPath, Cause: err}
	}

	logger.DebugKV(ctx, "Destination is writable", "directory", target.DestinationPath)

	return nil
}

// Install writes data to target atomically: a uniquely named temporary file in
// the destination directory is synced, made executable and renamed over the
// destination. The temporary file never outlives a failed call.
func Install(ctx context.Context, data []byte, target artifact.Target) error {
	return defaultInstaller.install(ctx, data, target)
}

func (i *fileInstaller) install(ctx context.Context, data []byte, target artifact.Target) error {
	destination := target.Path()

	if err := ctx.Err(); err != nil {
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	if err := os.MkdirAll(target.DestinationPath, DirectoryMode); err != nil {
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	if err := checkReplaceable(destination); err != nil {
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	i.removeStaleTemps(ctx, target)
	i.warnIfRunning(ctx, target)

	tempPath := TempPath(target)

	if err := writeTemp(tempPath, data); err != nil {
		_ = os.Remove(tempPath)
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	if err := i.beforeRename(tempPath); err != nil {
		_ = os.Remove(tempPath)
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	if err := ctx.Err(); err != nil {
		_ = os.Remove(tempPath)
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	if err := i.replace(tempPath, destination); err != nil {
		_ = os.Remove(tempPath)
		return &artifact.InstallError{Path: destination, Cause: err}
	}

	logger.InfoKV(ctx, "Binary installed", "path", destination)

	return nil
}

// TempPath returns a per-invocation temporary path next to the destination:
// ".<exe>.<pid>.<uuid>.tmp".
func TempPath(target artifact.Target) string {
	name := strings.Join([]string{
		"." + target.FileName(),
		strconv.Itoa(os.Getpid()),
		uuid.NewString(),
	}, ".") + tempSuffix

	return filepath.Join(target.DestinationPath, name)
}

func writeTemp(path string, data []byte) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, tempMode)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write temporary file: %w", err)
	}

	if err = file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync temporary file: %w", err)
	}

	if err = file.Chmod(ExecutableMode); err != nil {
		_ = file.Close()
		return fmt.Errorf("chmod temporary file: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}

	return nil
}

// checkReplaceable allows a missing destination or a regular file.
func checkReplaceable(destination string) error {
	info, err := os.Lstat(destination)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("inspect destination: %w", err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: %s", errNotRegularFile, info.Mode().Type())
	}

	return nil
}

// replace renames source over destination. Windows refuses to replace a
// running executable, so there the old binary is moved aside first and
// restored if the second rename fails too.
func (i *fileInstaller) replace(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}

	if i.goos != artifact.OSWindows {
		return fmt.Errorf("rename into place: %w", err)
	}

	if checkErr := checkReplaceable(destination); checkErr != nil {
		return fmt.Errorf("rename into place: %w", errors.Join(err, checkErr))
	}

	if _, statErr := os.Lstat(destination); statErr != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	old := destination + oldSuffix
	_ = os.Remove(old)

	if moveErr := os.Rename(destination, old); moveErr != nil {
		return fmt.Errorf("rename into place: %w", errors.Join(err, moveErr))
	}

	if err = os.Rename(source, destination); err != nil {
		_ = os.Rename(old, destination)
		return fmt.Errorf("rename into place: %w", err)
	}

	// Still busy while the old process runs; the next run removes it.
	_ = os.Remove(old)

	return nil
}

// removeStaleTemps deletes temporary files of crashed runs for the same executable.
func (i *fileInstaller) removeStaleTemps(ctx context.Context, target artifact.Target) {
	pattern := filepath.Join(target.DestinationPath, "."+target.FileName()+".*"+tempSuffix)

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() || i.now().Sub(info.ModTime()) < staleTempAge {
			continue
		}

		if err = os.Remove(match); err != nil {
			logger.WarnKV(ctx, "Unable to remove stale temporary file", "path", match, "error", err)
			continue
		}

		logger.InfoKV(ctx, "Removed stale temporary file", "path", match)
	}

	old := target.Path() + oldSuffix
	if _, err = os.Stat(old); err == nil {
		_ = os.Remove(old)
	}
}

// warnIfRunning logs a warning when a process runs the executable being replaced.
func (i *fileInstaller) warnIfRunning(ctx context.Context, target artifact.Target) {
	processes, err := i.processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	self := os.Getpid()
	name := target.FileName()

	for _, process := range processes {
		if process.Pid() == self || !strings.EqualFold(process.Executable(), name) {
			continue
		}

		logger.WarnKV(ctx, "The executable is running, the new binary takes effect on next start",
			"pid", process.Pid(), "executable", name)
	}
}
