//go:build darwin

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processTranslated reads sysctl.proc_translated, which is 1 under Rosetta.
// Intel Macs do not have the key at all.
func processTranslated() (bool, error) {
	value, err := unix.SysctlUint32("sysctl.proc_translated")
	if errors.Is(err, unix.ENOENT) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return value == 1, nil
}
