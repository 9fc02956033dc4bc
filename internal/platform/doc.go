// Package platform detects the PlatformDescriptor of the running host.
//
// The OS and architecture come from runtime.GOOS and runtime.GOARCH. On darwin
// an amd64 installer translated by Rosetta picks the native arm64 artifact.
// The linux kernel architecture (via gopsutil) is only logged. Names are
// normalized to GOOS/GOARCH spelling here, once, and never again at lookup time.
package platform
