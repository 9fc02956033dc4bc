// Package installer resolves, downloads, verifies and installs the zere
// binary for one platform.
//
// A single invocation walks the stages
// Resolving → Fetching → Verifying → Installing → SelfChecking → Done
// and stops at the first failure with an *artifact.StageError naming the
// stage. Only the download is retried; every other failure is terminal.
// The destination file is replaced by an atomic rename of a uniquely named
// temporary file, so concurrent installers and interrupted runs never leave a
// truncated binary behind.
package installer
