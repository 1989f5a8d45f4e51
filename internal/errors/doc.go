// Package errors provides typed error values for syc.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. Every failure
// surfaced by the key store, envelope codec, encryption engine, ACL evaluator,
// audit logger and sync gate wraps exactly one of the categories below.
//
// # Error Categories
//
//   - Configuration errors: malformed paths or config (ErrConfig, ErrPathEscape)
//   - Key errors: missing keys, identity mismatch, disallowed overwrite (ErrKey and children)
//   - Trust errors: TOFU pin mismatch (ErrTrustConflict)
//   - Envelope errors: bad magic, version or prelude (ErrEnvelopeFormat)
//   - Access errors: ACL refusal, missing recipient entry (ErrAccessDenied, ErrNotRecipient)
//   - Crypto errors: authentication or tamper failure (ErrDecryption)
//   - Storage errors: filesystem failures (ErrIO, ErrFileNotFound)
//
// Child errors are built with %w so errors.Is matches both the child and its
// category:
//
//	errors.Is(kerrors.ErrKeyNotFound, kerrors.ErrKey) // true
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("loading key for %s: %w", identity, errors.ErrKeyNotFound)
//
// Messages must never include plaintext, content keys or private key bytes.
//
// StatusCode maps an error to the HTTP status code recorded in access logs.
package errors
