// Package logger wraps zap for the installer binaries:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled shortcuts (Info, InfoKV, WarnKV, ErrorKV, ...).
//
// Services take a context and pull the logger from it, so the invocation id
// and stage names set by the caller appear on every line.
package logger
