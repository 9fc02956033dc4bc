// Package artifact contains core domain types for resolving and installing a
// pre-built release binary.
//
// It defines PlatformDescriptor (which os/arch pair an artifact targets),
// Spec (where to download it and which digest to expect), Target (where to
// put it), the Stage of an install run and the error kinds surfaced to callers.
package artifact
