package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/utils"
)

// TrustState is the trust-on-first-use state of a remote identity.
type TrustState int

const (
	// TrustUnknown means no bundle has been imported for the identity.
	TrustUnknown TrustState = iota
	// TrustPinned means a bundle has been imported and pinned.
	TrustPinned
	// TrustConflicted means a later import presented a different key.
	TrustConflicted
)

func (t TrustState) String() string {
	switch t {
	case TrustPinned:
		return "pinned"
	case TrustConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

func parseTrustState(s string) TrustState {
	switch s {
	case "pinned":
		return TrustPinned
	case "conflicted":
		return TrustConflicted
	default:
		return TrustUnknown
	}
}

// trustRecord is the on-disk form of <vault>/trust/<identity>.json.
type trustRecord struct {
	Identity    string        `json:"identity"`
	State       string        `json:"state"`
	Pinned      PublicBundle  `json:"pinned"`
	Conflicting *PublicBundle `json:"conflicting,omitempty"`
	PinnedAt    time.Time     `json:"pinned_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s *Store) trustPath(identity string) string {
	return filepath.Join(s.trustDir, identity+".json")
}

// readTrust returns nil without error when identity has no pin.
func (s *Store) readTrust(identity string) (*trustRecord, error) {
	data, err := os.ReadFile(s.trustPath(identity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading trust record for %s: %v", kerrors.ErrIO, identity, err)
	}

	var record trustRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: malformed trust record for %s", kerrors.ErrKey, identity)
	}
	return &record, nil
}

func (s *Store) writeTrust(record *trustRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trust record: %w", err)
	}
	if err := utils.WriteFileAtomic(s.trustPath(record.Identity), append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	return nil
}

// TrustState returns the trust state of identity.
func (s *Store) TrustState(identity string) (TrustState, error) {
	if err := validateIdentity(identity); err != nil {
		return TrustUnknown, err
	}
	record, err := s.readTrust(identity)
	if err != nil || record == nil {
		return TrustUnknown, err
	}
	return parseTrustState(record.State), nil
}

// Import records a remote identity's public bundle under trust on first use.
//
// The first import pins the bundle. Re-importing the pinned key is a no-op.
// A different key is recorded as a conflict and returns ErrTrustConflict,
// leaving the original pin in force, unless override is set, in which case
// the new key is pinned.
//
// Returns ErrInvalidIdentity if expectedIdentity is empty, ErrIdentityMismatch
// if it differs from the bundle, and ErrInvalidBundle if the bundle is malformed or its signature
// does not verify.
func (s *Store) Import(bundle *PublicBundle, expectedIdentity string, override bool) (TrustState, error) {
	expectedIdentity = utils.NormalizeIdentity(expectedIdentity)
	if expectedIdentity == "" {
		return TrustUnknown, fmt.Errorf("%w: an expected identity is required to pin a bundle", kerrors.ErrInvalidIdentity)
	}
	if utils.NormalizeIdentity(bundle.Identity) != expectedIdentity {
		return TrustUnknown, fmt.Errorf("%w: bundle is for %s, expected %s", kerrors.ErrIdentityMismatch, bundle.Identity, expectedIdentity)
	}
	incoming, err := bundle.PublicKey()
	if err != nil {
		return TrustUnknown, err
	}
	identity := bundle.Identity

	unlock := s.lock(identity)
	defer unlock()

	record, err := s.readTrust(identity)
	if err != nil {
		return TrustUnknown, err
	}
	now := s.now().UTC()

	if record == nil {
		record = &trustRecord{
			Identity:  identity,
			State:     TrustPinned.String(),
			Pinned:    *bundle,
			PinnedAt:  now,
			UpdatedAt: now,
		}
		if err := s.writeTrust(record); err != nil {
			return TrustUnknown, err
		}
		s.log.Infof("Pinned %s (fingerprint %s)", identity, incoming.Fingerprint())
		return TrustPinned, nil
	}

	pinned, err := record.Pinned.PublicKey()
	if err != nil {
		return TrustUnknown, err
	}
	if pinned.Equal(incoming) {
		return parseTrustState(record.State), nil
	}

	if override {
		record.State = TrustPinned.String()
		record.Pinned = *bundle
		record.Conflicting = nil
		record.PinnedAt = now
		record.UpdatedAt = now
		if err := s.writeTrust(record); err != nil {
			return TrustUnknown, err
		}
		s.log.Infof("Re-pinned %s (fingerprint %s)", identity, incoming.Fingerprint())
		return TrustPinned, nil
	}

	record.State = TrustConflicted.String()
	record.Conflicting = bundle
	record.UpdatedAt = now
	if err := s.writeTrust(record); err != nil {
		return TrustUnknown, err
	}
	s.log.WarnfAlways("Bundle for %s does not match the pinned key (pinned %s, presented %s)", identity, pinned.Fingerprint(), incoming.Fingerprint())
	return TrustConflicted, fmt.Errorf("%w: %s", kerrors.ErrTrustConflict, identity)
}
