package acl

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"

	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/utils"
)

// Decision is the outcome of evaluating one (path, capability, identity).
type Decision struct {
	Allowed bool

	// Dir and Pattern identify the deciding rule. Both are empty when no rule
	// decided.
	Dir     string
	Pattern string

	// Reason explains the decision in human-readable form.
	Reason string
}

// Options configures an Evaluator.
type Options struct {
	// OwnerFullAccess grants every capability to the identity named by a
	// path's first segment.
	OwnerFullAccess bool
}

// Evaluator resolves permissions against the current rule snapshot. Evaluate
// may run concurrently with Reload and Swap; each evaluation sees exactly one
// snapshot.
type Evaluator struct {
	table atomic.Pointer[Table]
	opts  Options
	log   logger.Logger
}

// NewEvaluator returns an evaluator with an empty table, which denies
// everything until rules are loaded.
func NewEvaluator(opts Options, log logger.Logger) *Evaluator {
	e := &Evaluator{opts: opts, log: log}
	e.table.Store(NewTable())
	return e
}

// Swap installs t as the current snapshot.
func (e *Evaluator) Swap(t *Table) {
	e.table.Store(t)
}

// Table returns the current snapshot.
func (e *Evaluator) Table() *Table {
	return e.table.Load()
}

// Reload rebuilds the table from root and swaps it in. On error the previous
// snapshot stays in force.
func (e *Evaluator) Reload(root string) error {
	t, err := LoadTable(root, e.log)
	if err != nil {
		return err
	}
	e.Swap(t)
	e.log.Infof("Loaded %d rule files from %s", t.Len(), root)
	return nil
}

// Evaluate decides whether identity holds capability c on p, a slash path
// relative to the datasites root.
//
// The walk starts at the deepest directory containing p. At each directory
// with a rule file, the first rule whose pattern matches and that grants c to
// anyone decides by membership. Failing that, a terminal rule file denies.
// With no decision anywhere the result is Denied. Identities are compared
// with their domain lowercased.
func (e *Evaluator) Evaluate(p string, c Capability, identity string) Decision {
	rel, err := utils.CleanRelative(p)
	if err != nil {
		return Decision{Reason: "path escapes the datasites root"}
	}
	if rel == "" {
		return Decision{Reason: "no rules apply to the datasites root"}
	}

	identity = utils.NormalizeIdentity(identity)
	if e.opts.OwnerFullAccess && identity != "" {
		if owner, _, _ := strings.Cut(rel, "/"); utils.NormalizeIdentity(owner) == identity {
			return Decision{Allowed: true, Reason: fmt.Sprintf("%s owns this datasite", identity)}
		}
	}

	t := e.table.Load()
	dir := parentDir(rel)
	for {
		if f, ok := t.Lookup(dir); ok {
			if d, decided := decide(f, dir, rel, c, identity); decided {
				return d
			}
			if f.Terminal {
				return Decision{
					Dir:    dir,
					Reason: fmt.Sprintf("terminal rules in %s do not grant %s", displayDir(dir), c),
				}
			}
		}
		if dir == "" {
			break
		}
		dir = parentDir(dir)
	}

	return Decision{Reason: fmt.Sprintf("no rule grants %s", c)}
}

func decide(f *RuleFile, dir, rel string, c Capability, identity string) (Decision, bool) {
	sub := rel
	if dir != "" {
		sub = strings.TrimPrefix(rel, dir+"/")
	}

	for i := range f.Rules {
		r := &f.Rules[i]
		if !r.matches(sub) {
			continue
		}
		grantees := r.grantees(c)
		if len(grantees) == 0 {
			continue
		}

		d := Decision{Dir: dir, Pattern: r.Pattern}
		for _, g := range grantees {
			if g == Everyone || (identity != "" && g == identity) {
				d.Allowed = true
				d.Reason = fmt.Sprintf("%s granted by %q in %s", c, r.Pattern, displayDir(dir))
				return d, true
			}
		}
		who := identity
		if who == "" {
			who = "anonymous"
		}
		d.Reason = fmt.Sprintf("%s lacks %s under %q in %s", who, c, r.Pattern, displayDir(dir))
		return d, true
	}
	return Decision{}, false
}

func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func displayDir(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}
