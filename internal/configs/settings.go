package configs

import (
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// Settings holds the resolved locations syc works against.
type Settings struct {
	// VaultPath holds private keys, trust pins and configuration.
	VaultPath string

	// DataRoot is the encrypted root: the shared datasites namespace where
	// envelopes and public bundles live.
	DataRoot string

	// ShadowRoot mirrors DataRoot with plaintext files.
	ShadowRoot string
}

// DefaultVaultPath returns $SYC_VAULT, falling back to ~/.syc.
func DefaultVaultPath() (string, error) {
	if vault := os.Getenv("SYC_VAULT"); vault != "" {
		return vault, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".syc"), nil
}

// NewSettings resolves settings for a vault. Non-empty dataRoot and shadowRoot
// override the vault's datasite.json, which in turn overrides the defaults of
// <vault>/datasites and <vault>/unencrypted.
func NewSettings(vault, dataRoot, shadowRoot string) (*Settings, error) {
	if vault == "" {
		var err error
		vault, err = DefaultVaultPath()
		if err != nil {
			return nil, err
		}
	}
	vault, err := filepath.Abs(vault)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving vault path: %v", kerrors.ErrConfig, err)
	}

	settings := &Settings{VaultPath: vault}

	datasite, err := LoadDatasiteConfig(settings.DatasiteConfigPath())
	if err != nil {
		return nil, err
	}

	settings.DataRoot = firstNonEmpty(dataRoot, settings.resolve(datasite.EncryptedRoot), filepath.Join(vault, "datasites"))
	settings.ShadowRoot = firstNonEmpty(shadowRoot, settings.resolve(datasite.ShadowRoot), filepath.Join(vault, "unencrypted"))

	return settings, nil
}

// ConfigDir returns <vault>/config.
func (s *Settings) ConfigDir() string {
	return filepath.Join(s.VaultPath, "config")
}

// KeysDir returns <vault>/keys.
func (s *Settings) KeysDir() string {
	return filepath.Join(s.VaultPath, "keys")
}

// TrustDir returns <vault>/trust.
func (s *Settings) TrustDir() string {
	return filepath.Join(s.VaultPath, "trust")
}

// DatasiteConfigPath returns <vault>/config/datasite.json.
func (s *Settings) DatasiteConfigPath() string {
	return filepath.Join(s.ConfigDir(), "datasite.json")
}

// GateConfigPath returns <vault>/config/gate.toml.
func (s *Settings) GateConfigPath() string {
	return filepath.Join(s.ConfigDir(), "gate.toml")
}

// BundlePath returns where identity publishes its public bundle:
// <data_root>/<identity>/public/crypto/did.json.
func (s *Settings) BundlePath(identity string) (string, error) {
	if !utils.IsValidEmail(identity) {
		return "", fmt.Errorf("%w: %q", kerrors.ErrInvalidIdentity, identity)
	}
	return filepath.Join(s.DataRoot, identity, "public", "crypto", "did.json"), nil
}

// resolve interprets p relative to the vault. Empty stays empty.
func (s *Settings) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(s.VaultPath, p))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
