package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	logger "github.com/PolarWolf314/syc/internal/logging"
)

// Options configures a Logger.
type Options struct {
	// Root is the logs root; entries go under <Root>/access/<user>/.
	Root string

	// MaxSegmentBytes seals the active segment once it grows past this size.
	// Zero disables size-based rotation.
	MaxSegmentBytes int64

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Logger appends access entries to per-user, rotating JSON Lines files.
// Appends for one user are serialized; different users never contend.
type Logger struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	log      logger.Logger

	users sync.Map // user -> *rotator

	// life is held shared by Append and exclusively by Close, so no segment
	// is opened once Close has run.
	life   sync.RWMutex
	closed atomic.Bool
}

// New creates the access log directory and returns a Logger.
func New(opts Options, log logger.Logger) (*Logger, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: logs root is required", kerrors.ErrConfig)
	}
	if opts.MaxSegmentBytes < 0 {
		return nil, fmt.Errorf("%w: max segment bytes must not be negative", kerrors.ErrConfig)
	}

	dir := filepath.Join(opts.Root, "access")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", kerrors.ErrIO, dir, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Logger{dir: dir, maxBytes: opts.MaxSegmentBytes, now: now, log: log}, nil
}

// Dir returns <root>/access.
func (l *Logger) Dir() string {
	return l.dir
}

// userDir maps a user to its log directory. Empty users log as anonymous.
func (l *Logger) userDir(user string) (string, string, error) {
	if user == "" {
		user = AnonymousUser
	}
	if user == "." || user == ".." || strings.ContainsAny(user, `/\`+"\x00") || strings.Contains(user, "..") {
		return "", "", fmt.Errorf("%w: invalid user name %q", kerrors.ErrConfig, user)
	}
	return user, filepath.Join(l.dir, user), nil
}

func (l *Logger) rotatorFor(user, dir string) *rotator {
	r, _ := l.users.LoadOrStore(user, &rotator{dir: dir})
	return r.(*rotator)
}

// Append records entry in its user's active segment.
//
// Returns ErrConfig if the user name or entry fields are invalid and ErrIO if
// the write fails or the logger is closed.
func (l *Logger) Append(entry Entry) error {
	l.life.RLock()
	defer l.life.RUnlock()
	if l.closed.Load() {
		return fmt.Errorf("%w: access log is closed", kerrors.ErrIO)
	}

	now := l.now()
	user, dir, err := l.userDir(entry.User)
	if err != nil {
		return err
	}
	entry.User = user
	if err := entry.normalize(now); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode access entry: %w", err)
	}
	line = append(line, '\n')

	r := l.rotatorFor(user, dir)
	sealed, err := r.append(line, now.UTC().Format(dayLayout), l.maxBytes)
	if err != nil {
		return err
	}
	if sealed != "" {
		l.log.Debugf("Sealed access log segment %s", sealed)
	}
	return nil
}

// ReadEntries returns every entry of user across all segments in append
// order. Malformed lines are skipped.
func (l *Logger) ReadEntries(user string) ([]Entry, error) {
	user, dir, err := l.userDir(user)
	if err != nil {
		return nil, err
	}

	// Hold the user's rotator so a concurrent seal cannot move a segment
	// between listing and reading it.
	if v, ok := l.users.Load(user); ok {
		r := v.(*rotator)
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	segments, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, seg := range segments {
		data, err := os.ReadFile(seg.path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, seg.path, err)
		}
		parsed, err := ParseEntries(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed...)
	}
	return entries, nil
}

// Segments lists user's segment files in append order.
func (l *Logger) Segments(user string) ([]string, error) {
	_, dir, err := l.userDir(user)
	if err != nil {
		return nil, err
	}
	segments, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(segments))
	for i, seg := range segments {
		paths[i] = seg.path
	}
	return paths, nil
}

// Users lists users with an access log directory, sorted.
func (l *Logger) Users() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", kerrors.ErrIO, l.dir, err)
	}

	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// Close releases every open segment. Appends after Close fail.
func (l *Logger) Close() error {
	l.life.Lock()
	defer l.life.Unlock()
	if l.closed.Swap(true) {
		return nil
	}

	var errs []error
	l.users.Range(func(_, v any) bool {
		if err := v.(*rotator).close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	if len(errs) > 0 {
		return fmt.Errorf("%w: closing access logs: %v", kerrors.ErrIO, errors.Join(errs...))
	}
	return nil
}
