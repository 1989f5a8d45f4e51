package workflows

import (
	"errors"
	"strings"

	"github.com/PolarWolf314/syc/internal/audit"
	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// localIP is recorded for access made through the CLI rather than the gate.
const localIP = "127.0.0.1"

// recordAccess appends one access log entry for a CLI file operation and
// returns opErr joined with any logging failure. Local operations are not
// ACL-gated, so the entry is always allowed; the status reflects opErr.
func recordAccess(env Env, user, method, rel string, accessType audit.AccessType, okStatus int, opErr error) error {
	if user != "" && (!utils.IsValidEmail(user) || strings.Contains(user, "..")) {
		user = ""
	}

	entry := audit.Entry{
		Path:       rel,
		AccessType: accessType,
		User:       user,
		IP:         localIP,
		UserAgent:  utils.LocalUserAgent(),
		Method:     method,
		StatusCode: okStatus,
		Allowed:    true,
	}
	if opErr != nil {
		entry.StatusCode = kerrors.StatusCode(opErr)
	}

	gateConfig, err := configs.LoadGateConfig(env.Settings)
	if err != nil {
		return errors.Join(opErr, err)
	}
	log, err := audit.New(audit.Options{Root: gateConfig.LogsRoot, MaxSegmentBytes: gateConfig.MaxSegmentBytes}, env.Log)
	if err != nil {
		return errors.Join(opErr, err)
	}
	defer log.Close()

	if err := log.Append(entry); err != nil {
		env.Log.Errorf("Failed to record access to %s by %s: %v", rel, entry.User, err)
		return errors.Join(opErr, err)
	}
	return opErr
}
