// Package keystore manages identities and their keys.
//
// Each local identity has exactly one active keypair stored at
// <vault>/keys/<identity>.key with 0600 permissions. A keypair holds an
// X25519 key used to receive wrapped content keys and an Ed25519 key that
// signs the identity's public bundle.
//
// # Public Bundles
//
// A PublicBundle (did.json) carries the identity, key id and both public
// keys, signed with the identity's Ed25519 key. Bundles are published at
// <data_root>/<identity>/public/crypto/did.json and are immutable once
// published unless overwrite is requested.
//
// # Trust On First Use
//
// Importing a remote bundle pins it. Later imports of the same key are no-ops;
// a different key marks the identity conflicted and fails with
// ErrTrustConflict while the original pin stays in force. Override re-pins.
//
//	Unknown --import--> Pinned --different key--> Conflicted
//	                      ^                           |
//	                      +-------- override ---------+
//
// Generate and Import are serialized per identity. Lookups read from disk so
// separate processes sharing a vault see each other's changes.
package keystore
