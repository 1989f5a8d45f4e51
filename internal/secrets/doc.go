// Package secrets is the recipient-wrapping encryption engine.
//
// # Encryption Architecture
//
// Every file is encrypted with its own hybrid scheme:
//
//  1. A random 256-bit content key encrypts the file with NaCl secretbox
//     (XSalsa20-Poly1305); a random 24-byte nonce is prepended to the
//     ciphertext.
//  2. The content key is wrapped once per recipient with an anonymous NaCl
//     box to that recipient's X25519 key.
//  3. Recipients unwrap their own entry, then open the ciphertext.
//
// Each call draws a fresh content key and nonce, so encrypting the same
// plaintext twice yields different bytes.
//
// # Recipient Binding
//
// Decryption only ever tries the requester's own entry. An identity that is
// not listed gets ErrNotRecipient even if it can read the file's bytes, and
// only a Reshare by an existing recipient can add it.
//
// Functions are stateless and safe for concurrent use. Content keys are
// zeroed after use and never appear in errors.
package secrets
