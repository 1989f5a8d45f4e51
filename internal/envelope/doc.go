// Package envelope is the wire codec for encrypted files.
//
// An envelope is laid out as:
//
//	offset  size  field
//	0       4     magic "SYC1"
//	4       1     version (1)
//	5       4     prelude length, little-endian uint32
//	9       n     prelude, UTF-8 JSON
//	9+n     ...   ciphertext to end of blob
//
// The prelude names the sender and lists one wrapped copy of the content key
// per recipient:
//
//	{"sender":{"identity":"alice@x.org","fingerprint":"..."},
//	 "recipients":[{"identity":"bob@x.org","wrapped_key":"<base64>"}],
//	 "suite":"x25519-xsalsa20poly1305"}
//
// Decoding never needs keys, so anyone holding the bytes can Inspect them.
// Encryption and decryption live in package secrets.
package envelope
