package keystore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// PublicBundle is the shareable form of an identity's public keys, published
// as did.json.
type PublicBundle struct {
	Identity      string    `json:"identity"`
	KeyID         string    `json:"key_id"`
	EncryptionKey string    `json:"encryption_key"`
	SigningKey    string    `json:"signing_key"`
	CreatedAt     time.Time `json:"created_at"`
	Signature     string    `json:"signature,omitempty"`
}

func newBundle(k *Keypair) (*PublicBundle, error) {
	pub := k.Public()
	b := &PublicBundle{
		Identity:      k.Identity,
		KeyID:         k.KeyID,
		EncryptionKey: base64.StdEncoding.EncodeToString(pub.Encryption[:]),
		SigningKey:    base64.StdEncoding.EncodeToString(pub.Signing),
		CreatedAt:     k.CreatedAt,
	}

	msg, err := b.signingPayload()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(msg)
	b.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(k.SigningPrivate, digest[:]))
	return b, nil
}

// signingPayload is the JSON encoding of the bundle without its signature.
func (b *PublicBundle) signingPayload() ([]byte, error) {
	unsigned := *b
	unsigned.Signature = ""
	return json.Marshal(unsigned)
}

// PublicKey decodes the bundle's keys. It returns ErrInvalidBundle when a key
// is malformed or a present signature does not verify.
func (b *PublicBundle) PublicKey() (*PublicKey, error) {
	if !utils.IsValidEmail(b.Identity) {
		return nil, fmt.Errorf("%w: invalid identity %q", kerrors.ErrInvalidBundle, b.Identity)
	}

	pub := &PublicKey{Identity: b.Identity, KeyID: b.KeyID}
	if err := decodeKey32(b.EncryptionKey, &pub.Encryption); err != nil {
		return nil, fmt.Errorf("%w: encryption key: %v", kerrors.ErrInvalidBundle, err)
	}

	signing, err := base64.StdEncoding.DecodeString(b.SigningKey)
	if err != nil || len(signing) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed signing key", kerrors.ErrInvalidBundle)
	}
	pub.Signing = ed25519.PublicKey(signing)

	if b.Signature != "" {
		sig, err := base64.StdEncoding.DecodeString(b.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed signature", kerrors.ErrInvalidBundle)
		}
		msg, err := b.signingPayload()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidBundle, err)
		}
		digest := sha256.Sum256(msg)
		if !ed25519.Verify(pub.Signing, digest[:], sig) {
			return nil, fmt.Errorf("%w: signature does not verify", kerrors.ErrInvalidBundle)
		}
	}

	return pub, nil
}

// Marshal encodes the bundle as indented JSON.
func (b *PublicBundle) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ParseBundle decodes a did.json document.
func ParseBundle(data []byte) (*PublicBundle, error) {
	var b PublicBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidBundle, err)
	}
	if b.Identity == "" || b.EncryptionKey == "" || b.SigningKey == "" {
		return nil, fmt.Errorf("%w: missing required fields", kerrors.ErrInvalidBundle)
	}
	return &b, nil
}

// ReadBundle reads and parses a did.json file.
func ReadBundle(path string) (*PublicBundle, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, path, err)
	}
	return ParseBundle(data)
}

// WriteBundle publishes bundle at path. Replacing a published bundle that
// carries different keys requires overwrite; otherwise ErrBundleExists.
func WriteBundle(path string, bundle *PublicBundle, overwrite bool) error {
	if !overwrite && utils.FileExists(path) {
		existing, err := ReadBundle(path)
		if err != nil || existing.EncryptionKey != bundle.EncryptionKey || existing.SigningKey != bundle.SigningKey {
			return fmt.Errorf("%w: %s", kerrors.ErrBundleExists, path)
		}
	}

	data, err := bundle.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	// #nosec G306 -- public bundles are meant to be world readable
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	return nil
}
