package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	logger "github.com/PolarWolf314/syc/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	vault := t.TempDir()
	return New(&configs.Settings{VaultPath: vault}, logger.Logger{})
}

func TestGenerate(t *testing.T) {
	store := newTestStore(t)

	kp, err := store.Generate("alice@example.com", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if kp.Identity != "alice@example.com" || kp.KeyID == "" {
		t.Errorf("unexpected keypair metadata: %+v", kp.Public())
	}

	info, err := os.Stat(store.keyPath("alice@example.com"))
	if err != nil {
		t.Fatalf("key file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := store.LookupPrivateKey("alice@example.com")
	if err != nil {
		t.Fatalf("LookupPrivateKey failed: %v", err)
	}
	if loaded.EncryptionPrivate != kp.EncryptionPrivate || loaded.KeyID != kp.KeyID {
		t.Error("loaded keypair does not match generated keypair")
	}
	if !loaded.Public().Equal(kp.Public()) {
		t.Error("loaded public key does not match")
	}
}

func TestGenerateExistingKey(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Generate("alice@example.com", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := store.Generate("alice@example.com", false); !errors.Is(err, kerrors.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
	if !errors.Is(kerrors.ErrKeyExists, kerrors.ErrKey) {
		t.Fatal("ErrKeyExists should be a key error")
	}

	second, err := store.Generate("alice@example.com", true)
	if err != nil {
		t.Fatalf("Generate with overwrite failed: %v", err)
	}
	if second.KeyID == first.KeyID {
		t.Error("overwrite should produce a new key id")
	}

	current, err := store.LookupPrivateKey("alice@example.com")
	if err != nil {
		t.Fatalf("LookupPrivateKey failed: %v", err)
	}
	if current.KeyID != second.KeyID {
		t.Error("overwritten key should supersede the prior one")
	}
}

func TestGenerateInvalidIdentity(t *testing.T) {
	store := newTestStore(t)

	for _, identity := range []string{"", "alice", "../alice@example.com"} {
		if _, err := store.Generate(identity, false); !errors.Is(err, kerrors.ErrInvalidIdentity) {
			t.Errorf("Generate(%q): expected ErrInvalidIdentity, got %v", identity, err)
		}
	}
}

func TestGenerateConcurrent(t *testing.T) {
	store := newTestStore(t)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	conflicts := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Generate("alice@example.com", false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, kerrors.ErrKeyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one successful generate, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicts)
	}
}

func TestLookupMissingKeys(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.LookupPrivateKey("bob@example.com"); !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if _, err := store.LookupPublicKey("bob@example.com"); !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLookupPrivateKeyIdentityMismatch(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Generate("alice@example.com", false); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	data, err := os.ReadFile(store.keyPath("alice@example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.keyPath("mallory@example.com"), data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.LookupPrivateKey("mallory@example.com"); !errors.Is(err, kerrors.ErrIdentityMismatch) {
		t.Errorf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestExportBundle(t *testing.T) {
	store := newTestStore(t)

	kp, err := store.Generate("alice@example.com", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	bundle, err := store.ExportBundle("alice@example.com")
	if err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}
	if bundle.Signature == "" {
		t.Error("exported bundle should be signed")
	}

	pub, err := bundle.PublicKey()
	if err != nil {
		t.Fatalf("bundle did not verify: %v", err)
	}
	if !pub.Equal(kp.Public()) {
		t.Error("bundle keys do not match keypair")
	}

	state, err := store.TrustState("alice@example.com")
	if err != nil {
		t.Fatalf("TrustState failed: %v", err)
	}
	if state != TrustUnknown {
		t.Errorf("export must not touch trust state, got %s", state)
	}

	if _, err := os.Stat(filepath.Join(store.trustDir, "alice@example.com.json")); !os.IsNotExist(err) {
		t.Error("export should not create a trust record")
	}
}
