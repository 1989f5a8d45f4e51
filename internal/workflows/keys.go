package workflows

import (
	"context"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/keystore"
	"github.com/PolarWolf314/syc/internal/utils"
)

// GenerateKeyOptions configures the key generate workflow.
type GenerateKeyOptions struct {
	// Identity is the email the keypair belongs to.
	Identity string

	// Overwrite replaces an existing keypair and published bundle.
	Overwrite bool

	// BundleOut overrides where the public bundle is published. A relative
	// path is resolved against the encrypted root. If empty, the bundle goes
	// to <data root>/<identity>/public/crypto/did.json.
	BundleOut string
}

// GenerateKeyResult contains the outcome of a key generate operation.
type GenerateKeyResult struct {
	Identity    string
	KeyID       string
	Fingerprint string

	// BundlePath is where the signed public bundle was written.
	BundlePath string
}

// GenerateKey creates a keypair for an identity and publishes its signed
// public bundle so peers can import it.
//
// Returns ErrInvalidIdentity if the identity is not an email address.
// Returns ErrKeyExists if a keypair exists and Overwrite is not set.
// Returns ErrBundleExists if a different bundle is already published and
// Overwrite is not set; the keypair is kept in that case.
func GenerateKey(ctx context.Context, env Env, opts GenerateKeyOptions) (*GenerateKeyResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	identity := utils.NormalizeIdentity(opts.Identity)

	bundlePath, err := env.dataPath(opts.BundleOut)
	if err != nil {
		return nil, err
	}
	if bundlePath == "" {
		if bundlePath, err = env.Settings.BundlePath(identity); err != nil {
			return nil, err
		}
	}

	kp, err := store.Generate(identity, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	bundle, err := store.ExportBundle(identity)
	if err != nil {
		return nil, err
	}
	if err := keystore.WriteBundle(bundlePath, bundle, opts.Overwrite); err != nil {
		return nil, fmt.Errorf("publishing bundle: %w", err)
	}
	env.Log.Infof("Published public bundle for %s to %s", identity, bundlePath)

	pub := kp.Public()
	return &GenerateKeyResult{
		Identity:    identity,
		KeyID:       kp.KeyID,
		Fingerprint: pub.Fingerprint(),
		BundlePath:  bundlePath,
	}, nil
}

// ImportBundleOptions configures the key import workflow.
type ImportBundleOptions struct {
	// BundlePath is the did.json to import. A relative path is resolved
	// against the encrypted root, where peers publish their bundles.
	BundlePath string

	// BundleData, if set, is used instead of reading BundlePath.
	BundleData []byte

	// ExpectedIdentity must match the identity named in the bundle.
	ExpectedIdentity string

	// Override re-pins an identity whose key changed.
	Override bool
}

// ImportBundleResult contains the outcome of a key import operation.
type ImportBundleResult struct {
	Identity    string
	Fingerprint string
	State       keystore.TrustState
}

// ImportBundle pins a peer's public bundle. The first import of an identity
// is trusted; later imports must present the same key unless Override is set.
//
// Returns ErrFileNotFound if the bundle does not exist.
// Returns ErrInvalidBundle if the bundle is malformed or its signature fails.
// Returns ErrIdentityMismatch if the bundle names a different identity.
// Returns ErrTrustConflict, with the result still populated, if the key
// differs from the pinned key and Override is not set.
func ImportBundle(ctx context.Context, env Env, opts ImportBundleOptions) (*ImportBundleResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	if opts.ExpectedIdentity == "" {
		return nil, fmt.Errorf("%w: an expected identity is required", kerrors.ErrInvalidIdentity)
	}

	var bundle *keystore.PublicBundle
	if opts.BundleData != nil {
		bundle, err = keystore.ParseBundle(opts.BundleData)
	} else {
		var path string
		if path, err = env.dataPath(opts.BundlePath); err == nil {
			bundle, err = keystore.ReadBundle(path)
		}
	}
	if err != nil {
		return nil, err
	}
	pub, err := bundle.PublicKey()
	if err != nil {
		return nil, err
	}

	state, err := store.Import(bundle, utils.NormalizeIdentity(opts.ExpectedIdentity), opts.Override)
	if err != nil && state == keystore.TrustUnknown {
		return nil, err
	}
	return &ImportBundleResult{
		Identity:    bundle.Identity,
		Fingerprint: pub.Fingerprint(),
		State:       state,
	}, err
}

// ExportBundleOptions configures the key export workflow.
type ExportBundleOptions struct {
	Identity string

	// Out is the file to write. If empty, the bundle is only returned.
	Out string
}

// ExportBundleResult contains the outcome of a key export operation.
type ExportBundleResult struct {
	Identity string

	// Data is the signed bundle as JSON.
	Data []byte

	// Path is where the bundle was written, if anywhere.
	Path string
}

// ExportBundle produces the signed public bundle of a local identity. Trust
// state is never modified.
//
// Returns ErrKeyNotFound if the identity has no local keypair.
func ExportBundle(ctx context.Context, env Env, opts ExportBundleOptions) (*ExportBundleResult, error) {
	store, err := env.keys()
	if err != nil {
		return nil, err
	}
	identity := utils.NormalizeIdentity(opts.Identity)

	bundle, err := store.ExportBundle(identity)
	if err != nil {
		return nil, err
	}
	data, err := bundle.Marshal()
	if err != nil {
		return nil, err
	}

	result := &ExportBundleResult{Identity: identity, Data: data}
	if opts.Out != "" {
		if err := utils.WriteFileAtomic(opts.Out, data, 0644); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", kerrors.ErrIO, opts.Out, err)
		}
		result.Path = opts.Out
	}
	return result, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, path, err)
	}
	return data, nil
}
