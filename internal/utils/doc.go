// Package utils provides shared helpers for syc.
//
// # Filesystem Utilities
//
//   - CleanRelative: normalizes datasite-relative slash paths, rejecting escapes
//   - SafeJoin: joins a relative path onto a root without leaving it
//   - WriteFileAtomic: temp-file-and-rename writes for envelopes and bundles
//   - FileExists: regular file check
//
// # Identity Utilities
//
//   - IsValidEmail: identities are email shaped
//   - NormalizeIdentity: trims and lowercases the domain
//   - Dedupe: removes duplicate and empty identities from recipient lists
//
// # System Utilities
//
//   - GetUsername, GetHostname
//   - LocalUserAgent: user agent recorded for CLI-originated access
//
// # I/O Utilities
//
//   - ReadPiped: reads bounded piped input such as a bundle on stdin
package utils
