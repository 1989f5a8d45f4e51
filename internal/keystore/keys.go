package keystore

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// PublicKey is the public half of an identity's keys.
type PublicKey struct {
	Identity   string
	KeyID      string
	Encryption [32]byte
	Signing    ed25519.PublicKey
}

// Fingerprint returns the hex SHA-256 of the encryption key.
func (p *PublicKey) Fingerprint() string {
	sum := sha256.Sum256(p.Encryption[:])
	return hex.EncodeToString(sum[:])
}

// Equal reports whether both keys carry the same key material.
func (p *PublicKey) Equal(other *PublicKey) bool {
	return p.Encryption == other.Encryption && p.Signing.Equal(other.Signing)
}

// Keypair is a local identity's active key material: an X25519 keypair for
// content-key wrapping and an Ed25519 keypair for bundle signatures.
type Keypair struct {
	Identity  string
	KeyID     string
	CreatedAt time.Time

	EncryptionPublic  [32]byte
	EncryptionPrivate [32]byte
	SigningPrivate    ed25519.PrivateKey
}

// NewKeypair generates fresh keys for identity.
func NewKeypair(identity string, now time.Time) (*Keypair, error) {
	encPub, encPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	_, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	return &Keypair{
		Identity:          identity,
		KeyID:             uuid.New().String(),
		CreatedAt:         now.UTC().Truncate(time.Second),
		EncryptionPublic:  *encPub,
		EncryptionPrivate: *encPriv,
		SigningPrivate:    signPriv,
	}, nil
}

// Public returns the public half of the keypair.
func (k *Keypair) Public() *PublicKey {
	return &PublicKey{
		Identity:   k.Identity,
		KeyID:      k.KeyID,
		Encryption: k.EncryptionPublic,
		Signing:    k.SigningPrivate.Public().(ed25519.PublicKey),
	}
}

// Wipe zeroes the private key material.
func (k *Keypair) Wipe() {
	for i := range k.EncryptionPrivate {
		k.EncryptionPrivate[i] = 0
	}
	for i := range k.SigningPrivate {
		k.SigningPrivate[i] = 0
	}
}

// keyFile is the on-disk form of <vault>/keys/<identity>.key.
type keyFile struct {
	Identity             string    `json:"identity"`
	KeyID                string    `json:"key_id"`
	CreatedAt            time.Time `json:"created_at"`
	EncryptionPublicKey  string    `json:"encryption_public_key"`
	EncryptionPrivateKey string    `json:"encryption_private_key"`
	SigningSeed          string    `json:"signing_seed"`
}

func marshalKeypair(k *Keypair) ([]byte, error) {
	data, err := json.MarshalIndent(keyFile{
		Identity:             k.Identity,
		KeyID:                k.KeyID,
		CreatedAt:            k.CreatedAt,
		EncryptionPublicKey:  base64.StdEncoding.EncodeToString(k.EncryptionPublic[:]),
		EncryptionPrivateKey: base64.StdEncoding.EncodeToString(k.EncryptionPrivate[:]),
		SigningSeed:          base64.StdEncoding.EncodeToString(k.SigningPrivate.Seed()),
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func unmarshalKeypair(data []byte) (*Keypair, error) {
	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: malformed key file", kerrors.ErrKey)
	}

	k := &Keypair{Identity: f.Identity, KeyID: f.KeyID, CreatedAt: f.CreatedAt}

	if err := decodeKey32(f.EncryptionPublicKey, &k.EncryptionPublic); err != nil {
		return nil, fmt.Errorf("%w: encryption public key: %v", kerrors.ErrKey, err)
	}
	if err := decodeKey32(f.EncryptionPrivateKey, &k.EncryptionPrivate); err != nil {
		return nil, fmt.Errorf("%w: encryption private key: %v", kerrors.ErrKey, err)
	}
	derived, err := curve25519.X25519(k.EncryptionPrivate[:], curve25519.Basepoint)
	if err != nil || !bytes.Equal(derived, k.EncryptionPublic[:]) {
		return nil, fmt.Errorf("%w: encryption public key does not match private key", kerrors.ErrKey)
	}

	seed, err := base64.StdEncoding.DecodeString(f.SigningSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: malformed signing seed", kerrors.ErrKey)
	}
	k.SigningPrivate = ed25519.NewKeyFromSeed(seed)

	return k, nil
}

func decodeKey32(encoded string, out *[32]byte) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid base64")
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return nil
}
