// Package packager builds the release manifest consumed by zere-installer.
//
// It scans a directory for binaries named <name>-<os>-<arch>, optionally with
// ".exe" and a ".gz", ".zst" or ".xz" suffix, computes their SHA-256 digests
// and writes one manifest version pointing at the upload location. Other
// versions of an existing manifest are preserved.
package packager
