package secrets

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/PolarWolf314/syc/internal/envelope"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/keystore"
)

// Suite names the algorithms recorded in every envelope prelude.
const Suite = "x25519-sealedbox+xsalsa20poly1305"

const nonceSize = 24

// CreateSymmetricKey generates a new random content key.
func CreateSymmetricKey() (*[32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, err
	}
	return &key, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Encrypt seals plaintext under a fresh content key and wraps that key once
// per recipient. sender is recorded in the prelude by identity and key
// fingerprint.
//
// Returns ErrEnvelopeFormat if recipients is empty or lists an identity twice.
func Encrypt(plaintext []byte, sender *keystore.PublicKey, recipients []*keystore.PublicKey) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", kerrors.ErrEnvelopeFormat)
	}

	key, err := CreateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate content key: %w", err)
	}
	defer wipe(key[:])

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := secretbox.Seal(nonce[:], plaintext, &nonce, key)

	entries := make([]envelope.RecipientEntry, 0, len(recipients))
	for _, r := range recipients {
		wrapped, err := box.SealAnonymous(nil, key[:], &r.Encryption, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap content key for %s: %w", r.Identity, err)
		}
		entries = append(entries, envelope.RecipientEntry{Identity: r.Identity, WrappedKey: wrapped})
	}

	return envelope.Marshal(&envelope.Envelope{
		Version: envelope.Version,
		Prelude: envelope.Prelude{
			Sender:     envelope.Sender{Identity: sender.Identity, Fingerprint: sender.Fingerprint()},
			Recipients: entries,
			Suite:      Suite,
		},
		Ciphertext: ciphertext,
	})
}

// Decrypt decodes blob and opens it as requester.
//
// Returns ErrEnvelopeFormat if blob is not an envelope, ErrNotRecipient if
// requester has no entry, and ErrDecryption if unwrapping or authentication
// fails.
func Decrypt(blob []byte, requester *keystore.Keypair) ([]byte, error) {
	env, err := envelope.Decode(blob)
	if err != nil {
		return nil, err
	}
	return DecryptEnvelope(env, requester)
}

// DecryptEnvelope opens an already decoded envelope as requester. Only the
// requester's own entry is ever tried.
func DecryptEnvelope(env *envelope.Envelope, requester *keystore.Keypair) ([]byte, error) {
	entry, ok := env.Recipient(requester.Identity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNotRecipient, requester.Identity)
	}

	key, ok := box.OpenAnonymous(nil, entry.WrappedKey, &requester.EncryptionPublic, &requester.EncryptionPrivate)
	if !ok || len(key) != 32 {
		return nil, fmt.Errorf("%w: could not unwrap content key for %s", kerrors.ErrDecryption, requester.Identity)
	}
	defer wipe(key)

	if len(env.Ciphertext) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", kerrors.ErrDecryption)
	}

	var contentKey [32]byte
	copy(contentKey[:], key)
	defer wipe(contentKey[:])

	var nonce [nonceSize]byte
	copy(nonce[:], env.Ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, env.Ciphertext[nonceSize:], &nonce, &contentKey)
	if !ok {
		return nil, fmt.Errorf("%w: ciphertext failed authentication", kerrors.ErrDecryption)
	}
	return plaintext, nil
}

// Reshare opens blob as holder and re-encrypts the plaintext for recipients
// under a fresh content key, with holder as sender. Identities added to an
// ACL after a file was written only gain access through a reshare.
func Reshare(blob []byte, holder *keystore.Keypair, recipients []*keystore.PublicKey) ([]byte, error) {
	plaintext, err := Decrypt(blob, holder)
	if err != nil {
		return nil, err
	}
	defer wipe(plaintext)
	return Encrypt(plaintext, holder.Public(), recipients)
}
