// Package config defines the installer settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate also fills defaults, so a zero Config becomes a usable one:
// the published manifest URL, ~/.local/bin, the "zere" executable and the
// latest version.
package config
