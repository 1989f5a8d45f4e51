package workflows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PolarWolf314/syc/internal/audit"
	"github.com/PolarWolf314/syc/internal/envelope"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/keystore"
	"github.com/PolarWolf314/syc/internal/secrets"
	"github.com/PolarWolf314/syc/internal/utils"
)

// EncryptFileOptions configures the file encrypt workflow.
type EncryptFileOptions struct {
	// Relative is the file's path below both the shadow and encrypted roots.
	Relative string

	// Sender is the local identity encrypting the file.
	Sender string

	// Recipients may decrypt the result. If empty, the sender only.
	Recipients []string
}

// EncryptFileResult contains the outcome of a file encrypt operation.
type EncryptFileResult struct {
	Source     string
	Target     string
	Sender     string
	Recipients []string
}

// EncryptFile encrypts <shadow root>/<relative> for the recipients and stores
// the envelope at <data root>/<relative>.
//
// Returns ErrPathEscape if the relative path leaves its root.
// Returns ErrFileNotFound if the plaintext does not exist.
// Returns ErrKeyNotFound if the sender has no local key or a recipient has
// neither a local key nor a pinned bundle.
//
// The attempt is recorded in the sender's access log.
func EncryptFile(ctx context.Context, env Env, opts EncryptFileOptions) (*EncryptFileResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	result, err := encryptFile(ctx, env, store, opts)
	sender := utils.NormalizeIdentity(opts.Sender)
	if err := recordAccess(env, sender, "PUT", opts.Relative, audit.AccessWrite, http.StatusCreated, err); err != nil {
		return nil, err
	}
	return result, nil
}

func encryptFile(ctx context.Context, env Env, store *keystore.Store, opts EncryptFileOptions) (*EncryptFileResult, error) {
	source, err := utils.SafeJoin(env.Settings.ShadowRoot, opts.Relative)
	if err != nil {
		return nil, err
	}
	target, err := utils.SafeJoin(env.Settings.DataRoot, opts.Relative)
	if err != nil {
		return nil, err
	}

	sender := utils.NormalizeIdentity(opts.Sender)
	recipients := normalizeAll(opts.Recipients)
	if len(recipients) == 0 {
		recipients = []string{sender}
	}

	plaintext, err := readInput(source)
	if err != nil {
		return nil, err
	}

	kp, err := store.LookupPrivateKey(sender)
	if err != nil {
		return nil, err
	}
	senderPub := kp.Public()
	kp.Wipe()

	keys, err := lookupRecipients(store, recipients)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := secrets.Encrypt(plaintext, senderPub, keys)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(target, blob, 0644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", kerrors.ErrIO, target, err)
	}
	env.Log.Infof("Encrypted %s for %d recipient(s)", opts.Relative, len(recipients))

	return &EncryptFileResult{Source: source, Target: target, Sender: sender, Recipients: recipients}, nil
}

// DecryptFileOptions configures the file decrypt workflow.
type DecryptFileOptions struct {
	// Relative is the file's path below both roots.
	Relative string

	// Identity is the local identity decrypting the file.
	Identity string
}

// DecryptFileResult contains the outcome of a file decrypt operation.
type DecryptFileResult struct {
	Source string
	Target string
	Sender string
	Size   int
}

// DecryptFile decrypts <data root>/<relative> with the identity's private key
// and writes the plaintext to <shadow root>/<relative>.
//
// Returns ErrEnvelopeFormat if the file is not a valid envelope.
// Returns ErrNotRecipient if the identity is not among the recipients.
// Returns ErrDecryption if the envelope was tampered with.
//
// The attempt is recorded in the identity's access log.
func DecryptFile(ctx context.Context, env Env, opts DecryptFileOptions) (*DecryptFileResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	result, err := decryptFile(env, store, opts)
	identity := utils.NormalizeIdentity(opts.Identity)
	if err := recordAccess(env, identity, "GET", opts.Relative, audit.AccessRead, http.StatusOK, err); err != nil {
		return nil, err
	}
	return result, nil
}

func decryptFile(env Env, store *keystore.Store, opts DecryptFileOptions) (*DecryptFileResult, error) {
	source, err := utils.SafeJoin(env.Settings.DataRoot, opts.Relative)
	if err != nil {
		return nil, err
	}
	target, err := utils.SafeJoin(env.Settings.ShadowRoot, opts.Relative)
	if err != nil {
		return nil, err
	}
	identity := utils.NormalizeIdentity(opts.Identity)

	blob, err := readInput(source)
	if err != nil {
		return nil, err
	}
	sealed, err := envelope.Decode(blob)
	if err != nil {
		return nil, err
	}
	if _, ok := sealed.Recipient(identity); !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNotRecipient, identity)
	}

	kp, err := store.LookupPrivateKey(identity)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	plaintext, err := secrets.DecryptEnvelope(sealed, kp)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(target, plaintext, 0600); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", kerrors.ErrIO, target, err)
	}
	env.Log.Infof("Decrypted %s from %s", opts.Relative, sealed.Prelude.Sender.Identity)

	return &DecryptFileResult{
		Source: source,
		Target: target,
		Sender: sealed.Prelude.Sender.Identity,
		Size:   len(plaintext),
	}, nil
}

// InspectFileOptions configures the file inspect workflow.
type InspectFileOptions struct {
	// Input is the envelope file to inspect. A relative path is resolved
	// against the encrypted root.
	Input string

	// Identity, when set, is checked against the recipient list and, if it
	// holds a local key, used to verify the envelope decrypts.
	Identity string
}

// InspectFileResult contains the outcome of a file inspect operation.
type InspectFileResult struct {
	Metadata *envelope.Metadata

	// IsRecipient reports whether Identity appears in the recipient list.
	IsRecipient bool

	// Verified reports that Identity's key opened the envelope.
	Verified bool
}

// InspectFile decodes an envelope's public metadata. Anyone can inspect an
// envelope; no key is needed unless Identity is set.
//
// Returns ErrEnvelopeFormat if the input is not a valid envelope.
// Returns ErrDecryption if Identity is a recipient with a local key and the
// envelope fails to authenticate.
func InspectFile(ctx context.Context, env Env, opts InspectFileOptions) (*InspectFileResult, error) {
	input, err := env.dataPath(opts.Input)
	if err != nil {
		return nil, err
	}
	blob, err := readInput(input)
	if err != nil {
		return nil, err
	}
	meta, err := envelope.Inspect(blob)
	if err != nil {
		return nil, err
	}

	result := &InspectFileResult{Metadata: meta}
	if opts.Identity == "" {
		return result, nil
	}
	identity := utils.NormalizeIdentity(opts.Identity)
	for _, r := range meta.Recipients {
		if r == identity {
			result.IsRecipient = true
			break
		}
	}
	if !result.IsRecipient || env.Settings == nil {
		return result, nil
	}

	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	if !store.HasKey(identity) {
		env.Log.Debugf("No local key for %s; skipping verification", identity)
		return result, nil
	}
	kp, err := store.LookupPrivateKey(identity)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	plaintext, err := secrets.Decrypt(blob, kp)
	if err != nil {
		return nil, err
	}
	for i := range plaintext {
		plaintext[i] = 0
	}
	result.Verified = true
	return result, nil
}

// ReshareFileOptions configures the file reshare workflow.
type ReshareFileOptions struct {
	// Relative is the envelope's path below the encrypted root.
	Relative string

	// Holder is a current recipient with a local key. It becomes the sender.
	Holder string

	// Recipients replaces the recipient list.
	Recipients []string
}

// ReshareFileResult contains the outcome of a file reshare operation.
type ReshareFileResult struct {
	Target     string
	Previous   []string
	Recipients []string
}

// ReshareFile re-encrypts an envelope for a new recipient set. This is how
// identities granted ACL access after a write obtain a recipient entry.
//
// Returns ErrNotRecipient if the holder cannot open the envelope.
// Returns ErrKeyNotFound if a recipient has no local key or pinned bundle.
func ReshareFile(ctx context.Context, env Env, opts ReshareFileOptions) (*ReshareFileResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	target, err := utils.SafeJoin(env.Settings.DataRoot, opts.Relative)
	if err != nil {
		return nil, err
	}
	holder := utils.NormalizeIdentity(opts.Holder)
	recipients := normalizeAll(opts.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", kerrors.ErrConfig)
	}

	blob, err := readInput(target)
	if err != nil {
		return nil, err
	}
	meta, err := envelope.Inspect(blob)
	if err != nil {
		return nil, err
	}

	kp, err := store.LookupPrivateKey(holder)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	keys, err := lookupRecipients(store, recipients)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reshared, err := secrets.Reshare(blob, kp, keys)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(target, reshared, 0644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", kerrors.ErrIO, target, err)
	}
	env.Log.Infof("Reshared %s for %d recipient(s)", opts.Relative, len(recipients))

	return &ReshareFileResult{Target: target, Previous: meta.Recipients, Recipients: recipients}, nil
}

func normalizeAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, utils.NormalizeIdentity(id))
	}
	return utils.Dedupe(out)
}

func lookupRecipients(store *keystore.Store, identities []string) ([]*keystore.PublicKey, error) {
	keys := make([]*keystore.PublicKey, 0, len(identities))
	for _, id := range identities {
		pub, err := store.LookupPublicKey(id)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", id, err)
		}
		keys = append(keys, pub)
	}
	return keys, nil
}
