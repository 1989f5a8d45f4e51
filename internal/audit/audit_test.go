package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	logger "github.com/PolarWolf314/syc/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLogger(t *testing.T, root string, maxBytes int64, clock *fakeClock) *Logger {
	t.Helper()
	opts := Options{Root: root, MaxSegmentBytes: maxBytes}
	if clock != nil {
		opts.Now = clock.Now
	}
	l, err := New(opts, logger.Logger{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func entryFor(user, path string, allowed bool) Entry {
	e := Entry{
		Path:       path,
		AccessType: AccessRead,
		User:       user,
		IP:         "127.0.0.1",
		UserAgent:  "test",
		Method:     "GET",
		StatusCode: 200,
		Allowed:    allowed,
	}
	if !allowed {
		e.StatusCode = 403
	}
	return e
}

func TestAppendWritesActiveSegment(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 3, 9, 14, 5, 6, 789_000_000, time.UTC)}
	l := newTestLogger(t, root, 0, clock)

	if err := l.Append(entryFor("alice@example.com", "alice@example.com/a.txt", true)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	path := filepath.Join(root, "access", "alice@example.com", "access_20250309.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("active segment missing: %v", err)
	}

	entries, _ := ParseEntries(data)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp != "2025-03-09 14:05:06.789 UTC" {
		t.Errorf("unexpected timestamp %q", entries[0].Timestamp)
	}
	if strings.Contains(string(data), "denied_reason") {
		t.Error("allowed entries must not carry denied_reason")
	}
}

func TestAppendNormalizesEntries(t *testing.T) {
	l := newTestLogger(t, t.TempDir(), 0, nil)

	denied := entryFor("", "x", false)
	if err := l.Append(denied); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := l.ReadEntries("")
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].User != AnonymousUser {
		t.Errorf("expected anonymous user, got %q", entries[0].User)
	}
	if entries[0].DeniedReason != DefaultDeniedReason {
		t.Errorf("expected default denied reason, got %q", entries[0].DeniedReason)
	}
	if _, err := entries[0].Time(); err != nil {
		t.Errorf("timestamp should parse: %v", err)
	}
}

func TestAppendValidation(t *testing.T) {
	l := newTestLogger(t, t.TempDir(), 0, nil)

	tests := []struct {
		name   string
		mutate func(*Entry)
		ok     bool
	}{
		{"UnknownAccessType", func(e *Entry) { e.AccessType = "sudo" }, false},
		{"UnknownMethodOnRead", func(e *Entry) { e.Method = "TRACE" }, false},
		{"UnknownMethodOnDeny", func(e *Entry) { e.Method = "TRACE"; e.AccessType = AccessDeny; e.Allowed = false; e.StatusCode = 405 }, true},
		{"LowercaseMethod", func(e *Entry) { e.Method = "get" }, true},
		{"StatusTooLow", func(e *Entry) { e.StatusCode = 99 }, false},
		{"StatusTooHigh", func(e *Entry) { e.StatusCode = 600 }, false},
		{"TraversalUser", func(e *Entry) { e.User = "../etc" }, false},
		{"SlashUser", func(e *Entry) { e.User = "a/b@example.com" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := entryFor("bob@example.com", "p", true)
			tc.mutate(&e)
			err := l.Append(e)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, kerrors.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestRotationIntegrity(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	l := newTestLogger(t, root, 512, clock)

	const n = 100
	for i := 0; i < n; i++ {
		if err := l.Append(entryFor("alice@example.com", fmt.Sprintf("file-%03d", i), i%3 != 0)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	segments, err := l.Segments("alice@example.com")
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segments) < 3 {
		t.Fatalf("expected several segments, got %v", segments)
	}
	if filepath.Base(segments[0]) != "access_20250102.log.1" {
		t.Errorf("first segment should be .1, got %s", segments[0])
	}

	for _, seg := range segments {
		info, err := os.Stat(seg)
		if err != nil {
			t.Fatal(err)
		}
		// A segment is sealed right after it crosses the limit, so it holds at
		// most one entry past it.
		if strings.HasSuffix(seg, ".log") {
			continue
		}
		if info.Size() > 512+256 {
			t.Errorf("segment %s too large: %d bytes", seg, info.Size())
		}
	}

	entries, err := l.ReadEntries("alice@example.com")
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries across segments, got %d", n, len(entries))
	}
	for i, e := range entries {
		if want := fmt.Sprintf("file-%03d", i); e.Path != want {
			t.Fatalf("entry %d out of order: got %s want %s", i, e.Path, want)
		}
		if e.Allowed != (i%3 != 0) {
			t.Fatalf("entry %d allowed mismatch", i)
		}
		if !e.Allowed && e.StatusCode < 400 {
			t.Fatalf("denied entry %d has status %d", i, e.StatusCode)
		}
	}
}

func TestRotationResumesAfterRestart(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}

	first := newTestLogger(t, root, 200, clock)
	for i := 0; i < 10; i++ {
		if err := first.Append(entryFor("bob@example.com", fmt.Sprintf("a-%d", i), true)); err != nil {
			t.Fatal(err)
		}
	}
	before, _ := first.Segments("bob@example.com")
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := first.Append(entryFor("bob@example.com", "late", true)); !errors.Is(err, kerrors.ErrIO) {
		t.Errorf("append after close should fail with ErrIO, got %v", err)
	}

	second := newTestLogger(t, root, 200, clock)
	for i := 0; i < 10; i++ {
		if err := second.Append(entryFor("bob@example.com", fmt.Sprintf("b-%d", i), true)); err != nil {
			t.Fatal(err)
		}
	}
	after, _ := second.Segments("bob@example.com")
	if len(after) <= len(before) {
		t.Errorf("expected more segments after restart: %d -> %d", len(before), len(after))
	}

	entries, err := second.ReadEntries("bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(entries))
	}
	if entries[0].Path != "a-0" || entries[19].Path != "b-9" {
		t.Errorf("entries out of order: first %s last %s", entries[0].Path, entries[19].Path)
	}
}

func TestNewDayStartsNewSegment(t *testing.T) {
	root := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 1, 2, 23, 59, 59, 0, time.UTC)}
	l := newTestLogger(t, root, 0, clock)

	if err := l.Append(entryFor("alice@example.com", "before", true)); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Date(2025, 1, 3, 0, 0, 1, 0, time.UTC))
	if err := l.Append(entryFor("alice@example.com", "after", true)); err != nil {
		t.Fatal(err)
	}

	segments, err := l.Segments("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected one segment per day, got %v", segments)
	}
	if filepath.Base(segments[0]) != "access_20250102.log" || filepath.Base(segments[1]) != "access_20250103.log" {
		t.Errorf("unexpected segment names %v", segments)
	}

	entries, _ := l.ReadEntries("alice@example.com")
	if len(entries) != 2 || entries[0].Path != "before" || entries[1].Path != "after" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestConcurrentAppends(t *testing.T) {
	root := t.TempDir()
	l := newTestLogger(t, root, 1024, nil)

	users := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	const perUser = 200

	var wg sync.WaitGroup
	for _, user := range users {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(user string, w int) {
				defer wg.Done()
				for i := 0; i < perUser/4; i++ {
					if err := l.Append(entryFor(user, fmt.Sprintf("%d-%d", w, i), true)); err != nil {
						t.Errorf("Append failed: %v", err)
						return
					}
				}
			}(user, w)
		}
	}
	wg.Wait()

	for _, user := range users {
		entries, err := l.ReadEntries(user)
		if err != nil {
			t.Fatalf("ReadEntries(%s) failed: %v", user, err)
		}
		if len(entries) != perUser {
			t.Errorf("%s: expected %d entries, got %d", user, perUser, len(entries))
		}
		seen := make(map[string]bool)
		for _, e := range entries {
			if seen[e.Path] {
				t.Errorf("%s: duplicate entry %s", user, e.Path)
			}
			seen[e.Path] = true
			if e.User != user {
				t.Errorf("entry for %s landed in %s's log", e.User, user)
			}
		}
	}

	listed, err := l.Users()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(listed, ",") != strings.Join(users, ",") {
		t.Errorf("Users() = %v, want %v", listed, users)
	}
}

func TestParseEntriesSkipsMalformedLines(t *testing.T) {
	data := []byte(`{"path":"a","user":"u","access_type":"read","method":"GET","status_code":200,"allowed":true}
not json
{"path":"b","user":"u","access_type":"deny","method":"GET","status_code":403,"allowed":false,"denied_reason":"nope"}
{"path":"c"`)

	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].DeniedReason != "nope" || entries[1].AccessType != AccessDeny {
		t.Errorf("unexpected entry %+v", entries[1])
	}
}

func TestParseEntriesEmptyData(t *testing.T) {
	entries, err := ParseEntries(nil)
	if err != nil || entries != nil {
		t.Errorf("expected nil, nil; got %v, %v", entries, err)
	}
}

func TestReadEntriesUnknownUser(t *testing.T) {
	l := newTestLogger(t, t.TempDir(), 0, nil)
	entries, err := l.ReadEntries("nobody@example.com")
	if err != nil || len(entries) != 0 {
		t.Errorf("expected no entries, got %v, %v", entries, err)
	}
}

func TestCloseDuringAppendsLeavesNoOpenSegment(t *testing.T) {
	l := newTestLogger(t, t.TempDir(), 0, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d@example.com", w)
			for i := 0; i < 50; i++ {
				err := l.Append(entryFor(user, fmt.Sprintf("%d", i), true))
				if err != nil && !errors.Is(err, kerrors.ErrIO) {
					t.Errorf("unexpected Append error: %v", err)
				}
			}
		}(w)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	wg.Wait()

	l.users.Range(func(k, v any) bool {
		r := v.(*rotator)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.file != nil {
			t.Errorf("segment for %v still open after Close", k)
		}
		return true
	})
	if err := l.Append(entryFor("late@example.com", "x", true)); !errors.Is(err, kerrors.ErrIO) {
		t.Errorf("expected ErrIO after Close, got %v", err)
	}
}
