package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PolarWolf314/syc/internal/audit"
	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// LogOptions configures the log workflow.
type LogOptions struct {
	// LogsRoot overrides the logs root from gate.toml.
	LogsRoot string

	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// User restricts the log to one identity. Empty reads every user.
	User string

	// AccessTypes filters entries by access type (comma-separated).
	AccessTypes string

	// DeniedOnly keeps entries that were not allowed.
	DeniedOnly bool

	// Since filters entries on or after this date (YYYY-MM-DD format).
	Since string

	// Until filters entries on or before this date (YYYY-MM-DD format).
	Until string
}

// LogResult contains the outcome of a log operation.
type LogResult struct {
	// Entries are the filtered access log entries, oldest first unless reversed.
	Entries []audit.Entry

	// TotalEntriesBeforeFilter is the count of entries before filtering.
	TotalEntriesBeforeFilter int

	// LogsRoot is the directory that was read.
	LogsRoot string

	// Segments lists the segment files read, per user in append order.
	Segments []string
}

// Log reads and filters the access log.
//
// Returns ErrFileNotFound if no access log exists.
// Returns ErrConfig if a date is not in YYYY-MM-DD format.
func Log(ctx context.Context, env Env, opts LogOptions) (*LogResult, error) {
	root := opts.LogsRoot
	if root == "" {
		if env.Settings == nil {
			return nil, fmt.Errorf("%w: no vault configured", kerrors.ErrConfig)
		}
		gateConfig, err := configs.LoadGateConfig(env.Settings)
		if err != nil {
			return nil, err
		}
		root = gateConfig.LogsRoot
	}

	if _, err := os.Stat(filepath.Join(root, "access")); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no access log under %s", kerrors.ErrFileNotFound, root)
	}

	var since, until time.Time
	var err error
	if opts.Since != "" {
		if since, err = time.Parse("2006-01-02", opts.Since); err != nil {
			return nil, fmt.Errorf("%w: --since date format invalid, use YYYY-MM-DD", kerrors.ErrConfig)
		}
	}
	if opts.Until != "" {
		if until, err = time.Parse("2006-01-02", opts.Until); err != nil {
			return nil, fmt.Errorf("%w: --until date format invalid, use YYYY-MM-DD", kerrors.ErrConfig)
		}
		// Include the entire day.
		until = until.Add(24*time.Hour - time.Nanosecond)
	}

	reader, err := audit.New(audit.Options{Root: root}, env.Log)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	users := []string{opts.User}
	if opts.User == "" {
		if users, err = reader.Users(); err != nil {
			return nil, err
		}
	}

	var (
		entries      []audit.Entry
		segmentPaths []string
	)
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		userEntries, err := reader.ReadEntries(u)
		if err != nil {
			return nil, fmt.Errorf("reading access log of %s: %w", u, err)
		}
		entries = append(entries, userEntries...)

		segments, err := reader.Segments(u)
		if err != nil {
			return nil, fmt.Errorf("listing access log segments of %s: %w", u, err)
		}
		segmentPaths = append(segmentPaths, segments...)
	}
	if len(users) > 1 {
		// Per-user logs are each in order; merge them by time.
		sort.SliceStable(entries, func(i, j int) bool {
			return entryTime(entries[i]).Before(entryTime(entries[j]))
		})
	}

	result := &LogResult{TotalEntriesBeforeFilter: len(entries), LogsRoot: root, Segments: segmentPaths}

	filtered := entries
	if opts.AccessTypes != "" {
		filtered = filterByAccessTypes(filtered, strings.Split(opts.AccessTypes, ","))
	}
	if opts.DeniedOnly {
		filtered = filterDenied(filtered)
	}
	if !since.IsZero() {
		filtered = filterTime(filtered, func(t time.Time) bool { return !t.Before(since) })
	}
	if !until.IsZero() {
		filtered = filterTime(filtered, func(t time.Time) bool { return !t.After(until) })
	}

	if opts.Reverse {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		if opts.Reverse {
			// When reversed, limit takes first N (most recent).
			filtered = filtered[:opts.Limit]
		} else {
			// When not reversed, limit takes last N (most recent).
			filtered = filtered[len(filtered)-opts.Limit:]
		}
	}

	result.Entries = filtered
	return result, nil
}

func entryTime(e audit.Entry) time.Time {
	t, err := e.Time()
	if err != nil {
		return time.Time{}
	}
	return t
}

// filterByAccessTypes filters entries by access type.
func filterByAccessTypes(entries []audit.Entry, types []string) []audit.Entry {
	set := make(map[string]bool)
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var result []audit.Entry
	for _, e := range entries {
		if set[string(e.AccessType)] {
			result = append(result, e)
		}
	}
	return result
}

func filterDenied(entries []audit.Entry) []audit.Entry {
	var result []audit.Entry
	for _, e := range entries {
		if !e.Allowed {
			result = append(result, e)
		}
	}
	return result
}

// filterTime keeps entries whose timestamp satisfies keep. Entries with an
// unparseable timestamp are dropped.
func filterTime(entries []audit.Entry, keep func(time.Time) bool) []audit.Entry {
	var result []audit.Entry
	for _, e := range entries {
		t, err := e.Time()
		if err != nil {
			continue
		}
		if keep(t) {
			result = append(result, e)
		}
	}
	return result
}

// FormatDateTime formats an entry's timestamp as YYYY-MM-DD HH:MM:SS.
func FormatDateTime(e audit.Entry) string {
	t, err := e.Time()
	if err != nil {
		if len(e.Timestamp) >= 19 {
			return e.Timestamp[:19]
		}
		return e.Timestamp
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatDetails describes an entry's outcome in verbose format.
func FormatDetails(e audit.Entry) string {
	if e.Allowed {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Path)
	}
	return fmt.Sprintf("%d %s (%s)", e.StatusCode, e.Path, e.DeniedReason)
}
