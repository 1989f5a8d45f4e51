package acl

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// RuleFileName is the per-directory rule file.
const RuleFileName = "syft.pub.yaml"

// Everyone grants a capability to every identity, including anonymous callers.
const Everyone = "*"

// Capability is a permission level. A higher capability implies the lower ones.
type Capability int

const (
	Read Capability = iota
	Write
	Admin
)

func (c Capability) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// ParseCapability parses "read", "write" or "admin".
func ParseCapability(s string) (Capability, error) {
	switch strings.ToLower(s) {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	case "admin":
		return Admin, nil
	default:
		return 0, fmt.Errorf("%w: unknown capability %q", kerrors.ErrConfig, s)
	}
}

// Access maps capabilities to the identities granted them.
type Access struct {
	Admin []string `yaml:"admin,omitempty"`
	Read  []string `yaml:"read,omitempty"`
	Write []string `yaml:"write,omitempty"`
}

// Rule grants access to paths matching Pattern, relative to the directory
// holding the rule file.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Access  Access `yaml:"access"`
}

// RuleFile is a parsed syft.pub.yaml.
type RuleFile struct {
	Terminal bool   `yaml:"terminal"`
	Rules    []Rule `yaml:"rules"`
}

// ParseRuleFile parses and validates a rule file.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: invalid rule file: %v", kerrors.ErrConfig, err)
	}
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("%w: rule %d has no pattern", kerrors.ErrConfig, i)
		}
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("%w: rule %d has invalid pattern %q", kerrors.ErrConfig, i, r.Pattern)
		}
	}
	return &f, nil
}

// MarshalRuleFile encodes f as YAML.
func MarshalRuleFile(f *RuleFile) ([]byte, error) {
	return yaml.Marshal(f)
}

// grantees returns the normalized identities holding c or any higher
// capability, with empty entries dropped.
func (r *Rule) grantees(c Capability) []string {
	var lists [][]string
	switch c {
	case Read:
		lists = [][]string{r.Access.Read, r.Access.Write, r.Access.Admin}
	case Write:
		lists = [][]string{r.Access.Write, r.Access.Admin}
	case Admin:
		lists = [][]string{r.Access.Admin}
	}

	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id = utils.NormalizeIdentity(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func (r *Rule) matches(rel string) bool {
	ok, err := doublestar.Match(r.Pattern, rel)
	return err == nil && ok
}
