package acl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/utils"
)

type node struct {
	dir  string
	file *RuleFile
}

// Table is an immutable snapshot of every rule file under a root, indexed by
// normalized directory ("" is the root).
type Table struct {
	nodes []node
	index map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Add attaches f to dir, replacing any rule file already attached there.
// Tables must not be modified after they are handed to an Evaluator.
func (t *Table) Add(dir string, f *RuleFile) error {
	dir, err := utils.CleanRelative(dir)
	if err != nil {
		return err
	}
	if i, ok := t.index[dir]; ok {
		t.nodes[i].file = f
		return nil
	}
	t.index[dir] = len(t.nodes)
	t.nodes = append(t.nodes, node{dir: dir, file: f})
	return nil
}

// Lookup returns the rule file attached to dir.
func (t *Table) Lookup(dir string) (*RuleFile, bool) {
	i, ok := t.index[dir]
	if !ok {
		return nil, false
	}
	return t.nodes[i].file, true
}

// Dirs lists directories carrying a rule file, in load order.
func (t *Table) Dirs() []string {
	dirs := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		dirs[i] = n.dir
	}
	return dirs
}

// Len returns the number of rule files in the table.
func (t *Table) Len() int {
	return len(t.nodes)
}

// LoadTable walks root for rule files. A rule file that cannot be parsed is
// loaded as terminal with no rules so its subtree fails closed.
func LoadTable(root string, log logger.Logger) (*Table, error) {
	t := NewTable()

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != RuleFileName {
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(rel)
		if dir == "." {
			dir = ""
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		f, err := ParseRuleFile(data)
		if err != nil {
			log.WarnfAlways("Ignoring rules in %s, denying its subtree: %v", p, err)
			f = &RuleFile{Terminal: true}
		}
		log.Debugf("Loaded %d rules from %s (terminal=%t)", len(f.Rules), path.Join(dir, RuleFileName), f.Terminal)
		return t.Add(dir, f)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading rules under %s: %v", kerrors.ErrIO, root, err)
	}
	return t, nil
}
