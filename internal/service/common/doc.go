// Package common holds helpers shared by several services.
//
// Client downloads manifests, signatures and release artifacts with a
// per-attempt timeout, bounded exponential backoff (cenkalti/backoff), a size
// cap and an optional progress bar. Failures are classified into the
// artifact.ErrNetwork and *artifact.HTTPError kinds.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
