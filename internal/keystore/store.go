package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/utils"
)

// Store manages local keypairs under <vault>/keys and trust pins for remote
// identities under <vault>/trust. It is safe for concurrent use.
type Store struct {
	keysDir  string
	trustDir string
	log      logger.Logger

	// locks holds one *sync.Mutex per identity.
	locks sync.Map

	now func() time.Time
}

// New returns a Store rooted at the settings' vault.
func New(settings *configs.Settings, log logger.Logger) *Store {
	return &Store{
		keysDir:  settings.KeysDir(),
		trustDir: settings.TrustDir(),
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) lock(identity string) func() {
	mu, _ := s.locks.LoadOrStore(identity, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *Store) keyPath(identity string) string {
	return filepath.Join(s.keysDir, identity+".key")
}

func validateIdentity(identity string) error {
	if !utils.IsValidEmail(identity) {
		return fmt.Errorf("%w: %q", kerrors.ErrInvalidIdentity, identity)
	}
	return nil
}

// Generate creates and persists a new keypair for identity.
//
// Returns ErrKeyExists if a key already exists and overwrite is false. With
// overwrite the new keypair supersedes the prior one. Concurrent calls for the
// same identity are serialized, and without overwrite the key file is created
// exclusively so at most one caller succeeds.
func (s *Store) Generate(identity string, overwrite bool) (*Keypair, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	unlock := s.lock(identity)
	defer unlock()

	kp, err := NewKeypair(identity, s.now())
	if err != nil {
		return nil, err
	}
	data, err := marshalKeypair(kp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key file: %w", err)
	}

	path := s.keyPath(identity)
	if err := os.MkdirAll(s.keysDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create keys directory at %s: %v", kerrors.ErrIO, s.keysDir, err)
	}

	if overwrite {
		if err := utils.WriteFileAtomic(path, data, 0600); err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
		}
		s.log.Infof("Generated key %s for %s (overwrite)", kp.KeyID, identity)
		return kp, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrKeyExists, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create key file at %s: %v", kerrors.ErrIO, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: failed to write key file: %v", kerrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: failed to close key file: %v", kerrors.ErrIO, err)
	}

	s.log.Infof("Generated key %s for %s", kp.KeyID, identity)
	return kp, nil
}

// HasKey reports whether identity has a local keypair.
func (s *Store) HasKey(identity string) bool {
	return validateIdentity(identity) == nil && utils.FileExists(s.keyPath(identity))
}

// LookupPrivateKey loads the keypair of a local identity.
// Returns ErrKeyNotFound if identity has no local key.
func (s *Store) LookupPrivateKey(identity string) (*Keypair, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	path := s.keyPath(identity)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no local key for %s", kerrors.ErrKeyNotFound, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading key file for %s: %v", kerrors.ErrIO, identity, err)
	}

	if info, statErr := os.Stat(path); statErr == nil && info.Mode().Perm()&0077 != 0 {
		s.log.Warnf("Key file %s has permissions %v, expected 0600", path, info.Mode().Perm())
	}

	kp, err := unmarshalKeypair(data)
	if err != nil {
		return nil, err
	}
	if kp.Identity != identity {
		return nil, fmt.Errorf("%w: key file for %s names %s", kerrors.ErrIdentityMismatch, identity, kp.Identity)
	}
	return kp, nil
}

// LookupPublicKey returns identity's public key, consulting local keys first
// and trust pins second. A conflicted pin still answers with the originally
// pinned key. Returns ErrKeyNotFound if neither exists.
func (s *Store) LookupPublicKey(identity string) (*PublicKey, error) {
	kp, err := s.LookupPrivateKey(identity)
	if err == nil {
		pub := kp.Public()
		kp.Wipe()
		return pub, nil
	}
	if !errors.Is(err, kerrors.ErrKeyNotFound) {
		return nil, err
	}

	record, err := s.readTrust(identity)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s has no local key and no imported bundle", kerrors.ErrKeyNotFound, identity)
	}
	return record.Pinned.PublicKey()
}

// ExportBundle derives a signed public bundle for a local identity. It never
// touches trust state.
func (s *Store) ExportBundle(identity string) (*PublicBundle, error) {
	kp, err := s.LookupPrivateKey(identity)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()
	return newBundle(kp)
}
