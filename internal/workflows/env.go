package workflows

import (
	"fmt"
	"path/filepath"

	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/keystore"
	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/utils"
)

// Env is the resolved vault a workflow runs against.
type Env struct {
	Settings *configs.Settings
	Log      logger.Logger
}

func (e Env) keys() (*keystore.Store, error) {
	if e.Settings == nil {
		return nil, fmt.Errorf("%w: no vault configured", kerrors.ErrConfig)
	}
	return keystore.New(e.Settings, e.Log), nil
}

// dataPath resolves p against the encrypted root. Absolute paths are used as
// given; relative ones may not climb out of the root.
func (e Env) dataPath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) || e.Settings == nil {
		return p, nil
	}
	return utils.SafeJoin(e.Settings.DataRoot, p)
}
