// Package manifest implements loading, validation and persistence of the
// release manifest: a mapping from version to per-platform download entries.
//
// A manifest is read from a local file or an HTTP(S) URL, decoded from YAML,
// TOML or JSON, checked against an embedded JSON schema and then validated
// semantically. Placeholder checksums such as "REPLACE_WITH_ACTUAL_SHA256"
// fail here, before any artifact is downloaded. When a public key is
// configured the raw manifest bytes must also carry a valid detached OpenPGP
// signature.
package manifest
