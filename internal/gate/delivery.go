package gate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// DeliveryState tracks whether a recipient has confirmed a written file.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
)

// Delivery is one (path, recipient) pair awaiting or past confirmation.
type Delivery struct {
	Path      string        `json:"path"`
	Recipient string        `json:"recipient"`
	State     DeliveryState `json:"state"`
	Attempts  int           `json:"attempts"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type deliveryKey struct {
	path      string
	recipient string
}

// Tracker records deliveries of written files to their recipients. Writes
// never wait on it; recipients confirm arrival when they see the file.
type Tracker struct {
	mu    sync.Mutex
	items map[deliveryKey]*Delivery
	now   func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{items: make(map[deliveryKey]*Delivery), now: time.Now}
}

// Register marks path pending for every recipient. A rewrite resets earlier
// confirmations because the content changed.
func (t *Tracker) Register(path string, recipients []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	for _, r := range recipients {
		k := deliveryKey{path, r}
		d, ok := t.items[k]
		if !ok {
			d = &Delivery{Path: path, Recipient: r}
			t.items[k] = d
		}
		d.State = DeliveryPending
		d.Attempts = 1
		d.UpdatedAt = now
	}
}

// Confirm marks path delivered to recipient. Confirming twice is a no-op.
// Returns ErrFileNotFound if nothing was registered for the pair.
func (t *Tracker) Confirm(path, recipient string) (Delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.items[deliveryKey{path, recipient}]
	if !ok {
		return Delivery{}, fmt.Errorf("%w: no delivery of %s to %s", kerrors.ErrFileNotFound, path, recipient)
	}
	if d.State != DeliveryConfirmed {
		d.State = DeliveryConfirmed
		d.UpdatedAt = t.now().UTC()
	}
	return *d, nil
}

// Pending lists recipient's unconfirmed deliveries sorted by path.
func (t *Tracker) Pending(recipient string) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collect(recipient, false)
}

// Redeliver bumps the attempt count of recipient's pending deliveries and
// returns them.
func (t *Tracker) Redeliver(recipient string) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collect(recipient, true)
}

// Forget drops every delivery of path, e.g. after it was deleted.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.items {
		if k.path == path {
			delete(t.items, k)
		}
	}
}

func (t *Tracker) collect(recipient string, bump bool) []Delivery {
	now := t.now().UTC()
	var out []Delivery
	for k, d := range t.items {
		if k.recipient != recipient || d.State != DeliveryPending {
			continue
		}
		if bump {
			d.Attempts++
			d.UpdatedAt = now
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
