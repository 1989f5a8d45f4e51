package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Configuration errors indicate malformed paths or configuration files.
var (
	// ErrConfig indicates a malformed path, identity or configuration value.
	ErrConfig = errors.New("invalid configuration")

	// ErrPathEscape indicates a relative path that resolves outside its root.
	ErrPathEscape = fmt.Errorf("%w: path escapes its root", ErrConfig)

	// ErrInvalidIdentity indicates an identity that is not email shaped.
	ErrInvalidIdentity = fmt.Errorf("%w: invalid identity", ErrConfig)
)

// Key errors indicate missing key material or disallowed key operations.
var (
	// ErrKey is the parent of every key management failure.
	ErrKey = errors.New("key error")

	// ErrKeyNotFound indicates a key could not be located for an identity.
	ErrKeyNotFound = fmt.Errorf("%w: key not found", ErrKey)

	// ErrKeyExists indicates a key already exists and overwrite was not requested.
	ErrKeyExists = fmt.Errorf("%w: key already exists", ErrKey)

	// ErrIdentityMismatch indicates a bundle names a different identity than expected.
	ErrIdentityMismatch = fmt.Errorf("%w: identity mismatch", ErrKey)

	// ErrInvalidBundle indicates a public bundle is malformed or its signature is invalid.
	ErrInvalidBundle = fmt.Errorf("%w: invalid public bundle", ErrKey)

	// ErrBundleExists indicates a published bundle would be replaced without overwrite.
	ErrBundleExists = fmt.Errorf("%w: public bundle already published", ErrKey)
)

// Trust errors indicate trust-on-first-use violations.
var (
	// ErrTrustConflict indicates an import presented a key different from the pinned one.
	ErrTrustConflict = errors.New("trust conflict: key differs from pinned key")
)

// Envelope errors indicate a blob that is not a well-formed envelope.
var (
	// ErrEnvelopeFormat indicates bad magic, unsupported version or a truncated/oversized prelude.
	ErrEnvelopeFormat = errors.New("malformed envelope")
)

// Access errors indicate the caller may not perform the operation.
var (
	// ErrAccessDenied indicates an ACL refusal.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotRecipient indicates the caller is absent from the envelope's recipient list.
	ErrNotRecipient = errors.New("identity is not a recipient of this envelope")
)

// Cryptographic errors indicate authentication or tamper failures.
var (
	// ErrDecryption indicates key unwrapping or authenticated decryption failed.
	ErrDecryption = errors.New("decryption failed")
)

// Storage errors indicate failures reading or writing the filesystem.
var (
	// ErrIO indicates a storage failure.
	ErrIO = errors.New("storage failure")

	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = fmt.Errorf("%w: file not found", ErrIO)
)

// StatusCode maps an error from the taxonomy to the HTTP status code recorded in
// access logs. A nil error maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrNotRecipient):
		return http.StatusForbidden
	case errors.Is(err, ErrFileNotFound), errors.Is(err, ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTrustConflict), errors.Is(err, ErrKeyExists), errors.Is(err, ErrBundleExists):
		return http.StatusConflict
	case errors.Is(err, ErrEnvelopeFormat), errors.Is(err, ErrDecryption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConfig), errors.Is(err, ErrKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
