package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/syc/internal/acl"
	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// CheckAccessOptions configures the acl check workflow.
type CheckAccessOptions struct {
	// Path is relative to the encrypted root.
	Path string

	// Identity is the requester. Empty checks anonymous access.
	Identity string

	// Capability is "read", "write" or "admin".
	Capability string
}

// CheckAccessResult contains the outcome of an acl check.
type CheckAccessResult struct {
	Capability acl.Capability
	Decision   acl.Decision

	// RuleDirs lists every directory carrying a rule file.
	RuleDirs []string
}

// CheckAccess evaluates the rules under the encrypted root the same way the
// gate does, without performing or logging any access.
//
// Returns ErrConfig if the capability is unknown.
func CheckAccess(ctx context.Context, env Env, opts CheckAccessOptions) (*CheckAccessResult, error) {
	if env.Settings == nil {
		return nil, fmt.Errorf("%w: no vault configured", kerrors.ErrConfig)
	}
	capability, err := acl.ParseCapability(opts.Capability)
	if err != nil {
		return nil, err
	}
	gateConfig, err := configs.LoadGateConfig(env.Settings)
	if err != nil {
		return nil, err
	}

	evaluator := acl.NewEvaluator(acl.Options{OwnerFullAccess: gateConfig.OwnerFullAccess}, env.Log)
	if err := evaluator.Reload(env.Settings.DataRoot); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &CheckAccessResult{
		Capability: capability,
		Decision:   evaluator.Evaluate(opts.Path, capability, utils.NormalizeIdentity(opts.Identity)),
		RuleDirs:   evaluator.Table().Dirs(),
	}, nil
}

// GrantAccessOptions configures the acl grant workflow.
type GrantAccessOptions struct {
	// Dir is the directory, relative to the encrypted root, whose rule file
	// is edited.
	Dir string

	// Pattern selects the rule. Defaults to "**".
	Pattern string

	// Capability is "read", "write" or "admin".
	Capability string

	// Identities to grant. "*" grants everyone.
	Identities []string
}

// GrantAccessResult contains the outcome of an acl grant.
type GrantAccessResult struct {
	// Path is the rule file that was written.
	Path string

	// Rule is the rule after the grant.
	Rule acl.Rule

	// Added lists the identities that were not already granted.
	Added []string
}

// GrantAccess adds identities to the rule for a pattern in a directory's
// rule file, creating the file or rule as needed. Other rules and the
// terminal flag are kept.
//
// Returns ErrConfig if the capability is unknown or the existing rule file
// is malformed. Returns ErrInvalidIdentity if an identity is not an email
// address or "*".
func GrantAccess(ctx context.Context, env Env, opts GrantAccessOptions) (*GrantAccessResult, error) {
	if env.Settings == nil {
		return nil, fmt.Errorf("%w: no vault configured", kerrors.ErrConfig)
	}
	capability, err := acl.ParseCapability(opts.Capability)
	if err != nil {
		return nil, err
	}
	identities := normalizeAll(opts.Identities)
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: at least one identity is required", kerrors.ErrInvalidIdentity)
	}
	for _, id := range identities {
		if id != acl.Everyone && !utils.IsValidEmail(id) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidIdentity, id)
		}
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "**"
	}

	dir, err := utils.SafeJoin(env.Settings.DataRoot, opts.Dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, acl.RuleFileName)

	file := &acl.RuleFile{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, path, err)
	default:
		if file, err = acl.ParseRuleFile(data); err != nil {
			return nil, err
		}
	}

	idx := -1
	for i := range file.Rules {
		if file.Rules[i].Pattern == pattern {
			idx = i
			break
		}
	}
	if idx < 0 {
		file.Rules = append(file.Rules, acl.Rule{Pattern: pattern})
		idx = len(file.Rules) - 1
	}
	rule := &file.Rules[idx]

	list := &rule.Access.Read
	switch capability {
	case acl.Write:
		list = &rule.Access.Write
	case acl.Admin:
		list = &rule.Access.Admin
	}
	var added []string
	for _, id := range identities {
		if !containsIdentity(*list, id) {
			*list = append(*list, id)
			added = append(added, id)
		}
	}

	out, err := acl.MarshalRuleFile(file)
	if err != nil {
		return nil, fmt.Errorf("encoding rule file: %w", err)
	}
	if _, err := acl.ParseRuleFile(out); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(path, out, 0644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", kerrors.ErrIO, path, err)
	}
	env.Log.Infof("Granted %s on %q in %s to %v", capability, pattern, opts.Dir, added)

	return &GrantAccessResult{Path: path, Rule: *rule, Added: added}, nil
}

func containsIdentity(list []string, id string) bool {
	for _, existing := range list {
		if utils.NormalizeIdentity(existing) == id {
			return true
		}
	}
	return false
}
