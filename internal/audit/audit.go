package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// TimestampFormat is the layout of Entry.Timestamp.
const TimestampFormat = "2006-01-02 15:04:05.000 UTC"

// AnonymousUser is recorded for requests without an identity.
const AnonymousUser = "anonymous"

// DefaultDeniedReason fills denied entries whose cause is unknown.
const DefaultDeniedReason = "access denied"

// AccessType classifies an access attempt.
type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
	AccessAdmin AccessType = "admin"
	AccessDeny  AccessType = "deny"
)

// Valid reports whether t is one of the known access types.
func (t AccessType) Valid() bool {
	switch t {
	case AccessRead, AccessWrite, AccessAdmin, AccessDeny:
		return true
	}
	return false
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

// Entry is one access attempt.
type Entry struct {
	Timestamp    string     `json:"timestamp"`
	Path         string     `json:"path"`
	AccessType   AccessType `json:"access_type"`
	User         string     `json:"user"`
	IP           string     `json:"ip"`
	UserAgent    string     `json:"user_agent"`
	Method       string     `json:"method"`
	StatusCode   int        `json:"status_code"`
	Allowed      bool       `json:"allowed"`
	DeniedReason string     `json:"denied_reason,omitempty"`
}

// Time parses the entry's timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, e.Timestamp)
}

// normalize fills defaults and validates e. Methods outside the standard set
// are only accepted on deny entries, which is how unrecognized operations are
// recorded.
func (e *Entry) normalize(now time.Time) error {
	if e.Timestamp == "" {
		e.Timestamp = now.UTC().Format(TimestampFormat)
	}
	if e.User == "" {
		e.User = AnonymousUser
	}
	if !e.AccessType.Valid() {
		return fmt.Errorf("%w: unknown access type %q", kerrors.ErrConfig, e.AccessType)
	}

	e.Method = strings.ToUpper(e.Method)
	if !knownMethods[e.Method] {
		if e.AccessType != AccessDeny || !isToken(e.Method) {
			return fmt.Errorf("%w: unknown method %q", kerrors.ErrConfig, e.Method)
		}
	}

	if e.StatusCode < 100 || e.StatusCode > 599 {
		return fmt.Errorf("%w: status code %d out of range", kerrors.ErrConfig, e.StatusCode)
	}

	if e.Allowed {
		e.DeniedReason = ""
	} else if e.DeniedReason == "" {
		e.DeniedReason = DefaultDeniedReason
	}
	return nil
}

func isToken(s string) bool {
	if s == "" || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
