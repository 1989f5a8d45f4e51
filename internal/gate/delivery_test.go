package gate

import (
	"errors"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

func newTestTracker() (*Tracker, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTrackerLifecycle(t *testing.T) {
	tr, _ := newTestTracker()

	tr.Register("a/two.txt", []string{bob})
	tr.Register("a/one.txt", []string{bob, charlie})

	pending := tr.Pending(bob)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending deliveries, got %d", len(pending))
	}
	if pending[0].Path != "a/one.txt" || pending[1].Path != "a/two.txt" {
		t.Errorf("pending deliveries not sorted by path: %+v", pending)
	}
	if pending[0].State != DeliveryPending || pending[0].Attempts != 1 {
		t.Errorf("unexpected delivery: %+v", pending[0])
	}

	d, err := tr.Confirm("a/one.txt", bob)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if d.State != DeliveryConfirmed {
		t.Errorf("expected confirmed, got %s", d.State)
	}
	if _, err := tr.Confirm("a/one.txt", bob); err != nil {
		t.Errorf("second Confirm should be a no-op, got %v", err)
	}

	if pending := tr.Pending(bob); len(pending) != 1 || pending[0].Path != "a/two.txt" {
		t.Errorf("unexpected pending after confirm: %+v", pending)
	}
	if pending := tr.Pending(charlie); len(pending) != 1 {
		t.Errorf("charlie's delivery should be unaffected: %+v", pending)
	}
}

func TestTrackerConfirmUnknown(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Register("a/one.txt", []string{bob})

	if _, err := tr.Confirm("a/one.txt", charlie); !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestTrackerRewriteResetsConfirmation(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Register("a/one.txt", []string{bob})
	if _, err := tr.Confirm("a/one.txt", bob); err != nil {
		t.Fatal(err)
	}

	tr.Register("a/one.txt", []string{bob})
	if pending := tr.Pending(bob); len(pending) != 1 {
		t.Fatalf("rewrite should make the delivery pending again, got %+v", pending)
	}
}

func TestTrackerRedeliver(t *testing.T) {
	tr, now := newTestTracker()
	tr.Register("a/one.txt", []string{bob})

	*now = now.Add(time.Minute)
	out := tr.Redeliver(bob)
	if len(out) != 1 || out[0].Attempts != 2 {
		t.Fatalf("expected one delivery with 2 attempts, got %+v", out)
	}
	if !out[0].UpdatedAt.Equal(*now) {
		t.Errorf("expected UpdatedAt %v, got %v", *now, out[0].UpdatedAt)
	}

	if _, err := tr.Confirm("a/one.txt", bob); err != nil {
		t.Fatal(err)
	}
	if out := tr.Redeliver(bob); len(out) != 0 {
		t.Errorf("confirmed deliveries should not be redelivered: %+v", out)
	}
}

func TestTrackerForget(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Register("a/one.txt", []string{bob, charlie})
	tr.Register("a/two.txt", []string{bob})

	tr.Forget("a/one.txt")

	if pending := tr.Pending(bob); len(pending) != 1 || pending[0].Path != "a/two.txt" {
		t.Errorf("unexpected pending for bob: %+v", pending)
	}
	if pending := tr.Pending(charlie); len(pending) != 0 {
		t.Errorf("unexpected pending for charlie: %+v", pending)
	}
}
