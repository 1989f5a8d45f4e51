// Package audit records every access attempt in per-user access logs.
//
// # Log Format
//
// Entries are JSON Lines, one object per attempt, under:
//
//	<logs_root>/access/<user>/access_YYYYMMDD.log
//
// Each entry carries timestamp ("2006-01-02 15:04:05.000 UTC"), path,
// access_type (read, write, admin or deny), user, ip, user_agent, method,
// status_code and allowed. Denied entries also carry denied_reason.
// Requests without an identity are logged under "anonymous".
//
// # Rotation
//
// Once the active segment grows past the configured size it is sealed by
// renaming it to access_YYYYMMDD.log.N, N counting up from 1, and the next
// append starts a fresh active segment. A new UTC day always starts a new
// segment. Sequence numbers are recovered from disk, so restarts continue
// where the previous process stopped.
//
// ReadEntries returns a user's entries in append order: per day, sealed
// segments 1..N followed by the active one.
//
// # Concurrency
//
// Each user has its own rotation controller and lock. Users never share a
// lock, so a busy user does not slow others down.
//
// # Reading Logs
//
// ParseEntries skips malformed lines to tolerate partial writes.
package audit
