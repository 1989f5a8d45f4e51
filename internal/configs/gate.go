package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

const (
	// DefaultListenAddr is where `syc serve` listens when nothing is configured.
	DefaultListenAddr = "127.0.0.1:7938"

	// DefaultMaxSegmentBytes is the size at which an active access log segment is sealed.
	DefaultMaxSegmentBytes int64 = 10 * 1024 * 1024
)

// GateConfig is the vault's gate.toml.
type GateConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	LogsRoot        string `toml:"logs_root"`
	MaxSegmentBytes int64  `toml:"max_segment_bytes"`
	OwnerFullAccess bool   `toml:"owner_full_access"`
}

// DefaultGateConfig returns the gate settings used when gate.toml is absent.
func DefaultGateConfig(settings *Settings) *GateConfig {
	return &GateConfig{
		ListenAddr:      DefaultListenAddr,
		LogsRoot:        filepath.Join(settings.VaultPath, "logs"),
		MaxSegmentBytes: DefaultMaxSegmentBytes,
	}
}

// LoadGateConfig loads gate.toml from the vault, filling unset fields with
// defaults. A relative logs_root is resolved against the vault.
func LoadGateConfig(settings *Settings) (*GateConfig, error) {
	defaults := DefaultGateConfig(settings)
	path := settings.GateConfigPath()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}

	config := &GateConfig{}
	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("%w: failed to load gate config: %v", kerrors.ErrConfig, err)
	}

	if config.ListenAddr == "" {
		config.ListenAddr = defaults.ListenAddr
	}
	if config.LogsRoot == "" {
		config.LogsRoot = defaults.LogsRoot
	} else {
		config.LogsRoot = settings.resolve(config.LogsRoot)
	}
	if config.MaxSegmentBytes < 0 {
		return nil, fmt.Errorf("%w: max_segment_bytes must not be negative", kerrors.ErrConfig)
	}
	if config.MaxSegmentBytes == 0 {
		config.MaxSegmentBytes = defaults.MaxSegmentBytes
	}

	return config, nil
}

// SaveGateConfig writes gate.toml into the vault.
func SaveGateConfig(settings *Settings, config *GateConfig) error {
	if err := SaveTOML(settings.GateConfigPath(), config); err != nil {
		return fmt.Errorf("failed to save gate config: %w", err)
	}
	return nil
}
