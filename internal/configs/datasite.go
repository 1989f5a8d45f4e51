package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// DatasiteConfig is the vault's datasite.json. Relative paths are resolved
// against the vault directory.
type DatasiteConfig struct {
	EncryptedRoot string `json:"encrypted_root"`
	ShadowRoot    string `json:"shadow_root"`
}

// LoadDatasiteConfig reads datasite.json. A missing file yields an empty config.
func LoadDatasiteConfig(path string) (*DatasiteConfig, error) {
	config := &DatasiteConfig{}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, path, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", kerrors.ErrConfig, path, err)
	}
	return config, nil
}

// SaveDatasiteConfig writes datasite.json atomically.
func SaveDatasiteConfig(path string, config *DatasiteConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode datasite config: %w", err)
	}
	if err := utils.WriteFileAtomic(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	return nil
}
