package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

const dayLayout = "20060102"

var segmentPattern = regexp.MustCompile(`^access_(\d{8})\.log(?:\.(\d+))?$`)

func activeName(day string) string {
	return "access_" + day + ".log"
}

func sealedName(day string, seq int) string {
	return fmt.Sprintf("access_%s.log.%d", day, seq)
}

// rotator owns one user's active segment.
type rotator struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	day  string
	size int64
	seq  int // last sealed sequence for day
}

// append writes line to the active segment for day, opening a new segment
// when the day changed, and seals it once it exceeds maxBytes. It returns
// the sealed segment's path, if any.
func (r *rotator) append(line []byte, day string, maxBytes int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil && r.day != day {
		if err := r.file.Close(); err != nil {
			return "", fmt.Errorf("%w: closing segment: %v", kerrors.ErrIO, err)
		}
		r.file = nil
	}
	if r.file == nil {
		if err := r.open(day); err != nil {
			return "", err
		}
	}

	n, err := r.file.Write(line)
	r.size += int64(n)
	if err != nil {
		return "", fmt.Errorf("%w: writing access log: %v", kerrors.ErrIO, err)
	}

	if maxBytes > 0 && r.size > maxBytes {
		return r.seal()
	}
	return "", nil
}

func (r *rotator) open(day string) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", kerrors.ErrIO, r.dir, err)
	}

	// #nosec G302 -- access logs are read by operators
	f, err := os.OpenFile(filepath.Join(r.dir, activeName(day)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening access log: %v", kerrors.ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: stat access log: %v", kerrors.ErrIO, err)
	}

	seq, err := lastSealed(r.dir, day)
	if err != nil {
		f.Close()
		return err
	}

	r.file, r.day, r.size, r.seq = f, day, info.Size(), seq
	return nil
}

func (r *rotator) seal() (string, error) {
	if err := r.file.Close(); err != nil {
		return "", fmt.Errorf("%w: closing segment: %v", kerrors.ErrIO, err)
	}
	r.file = nil

	next := r.seq + 1
	from := filepath.Join(r.dir, activeName(r.day))
	to := filepath.Join(r.dir, sealedName(r.day, next))
	if err := os.Rename(from, to); err != nil {
		return "", fmt.Errorf("%w: sealing segment: %v", kerrors.ErrIO, err)
	}
	r.seq = next
	r.size = 0
	return to, nil
}

func (r *rotator) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

type segment struct {
	path string
	day  string
	seq  int // 0 for the active segment
}

// listSegments returns dir's segments ordered by day, then sealed segments by
// sequence, then the day's active segment.
func listSegments(dir string) ([]segment, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", kerrors.ErrIO, dir, err)
	}

	var segments []segment
	for _, e := range entries {
		m := segmentPattern.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		seg := segment{path: filepath.Join(dir, e.Name()), day: m[1]}
		if m[2] != "" {
			seg.seq, _ = strconv.Atoi(m[2])
		}
		segments = append(segments, seg)
	}

	sort.Slice(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if (a.seq == 0) != (b.seq == 0) {
			return b.seq == 0
		}
		return a.seq < b.seq
	})
	return segments, nil
}

func lastSealed(dir, day string) (int, error) {
	segments, err := listSegments(dir)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, seg := range segments {
		if seg.day == day && seg.seq > last {
			last = seg.seq
		}
	}
	return last, nil
}
