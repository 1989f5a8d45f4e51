package envelope

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

const (
	// Magic opens every envelope.
	Magic = "SYC1"

	// Version is the only envelope version this codec reads and writes.
	Version byte = 1

	// HeaderSize covers magic, version and the prelude length.
	HeaderSize = len(Magic) + 1 + 4

	// MaxPreludeSize bounds the JSON prelude.
	MaxPreludeSize = 1 << 20
)

// Sender identifies who produced an envelope.
type Sender struct {
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// RecipientEntry holds the content key wrapped for one recipient.
type RecipientEntry struct {
	Identity   string `json:"identity"`
	WrappedKey []byte `json:"wrapped_key"`
}

// Prelude is the JSON metadata block between the header and the ciphertext.
type Prelude struct {
	Sender     Sender           `json:"sender"`
	Recipients []RecipientEntry `json:"recipients"`
	Suite      string           `json:"suite,omitempty"`
}

// Envelope is a decoded encrypted file.
type Envelope struct {
	Version    byte
	Prelude    Prelude
	Ciphertext []byte
}

// Recipient returns the entry for identity, if present.
func (e *Envelope) Recipient(identity string) (*RecipientEntry, bool) {
	for i := range e.Prelude.Recipients {
		if e.Prelude.Recipients[i].Identity == identity {
			return &e.Prelude.Recipients[i], true
		}
	}
	return nil, false
}

// RecipientIdentities lists recipients in prelude order.
func (e *Envelope) RecipientIdentities() []string {
	ids := make([]string, 0, len(e.Prelude.Recipients))
	for _, r := range e.Prelude.Recipients {
		ids = append(ids, r.Identity)
	}
	return ids
}

func (p *Prelude) validate() error {
	if p.Sender.Identity == "" {
		return fmt.Errorf("%w: missing sender", kerrors.ErrEnvelopeFormat)
	}
	if len(p.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients", kerrors.ErrEnvelopeFormat)
	}
	seen := make(map[string]bool, len(p.Recipients))
	for _, r := range p.Recipients {
		if r.Identity == "" {
			return fmt.Errorf("%w: recipient without identity", kerrors.ErrEnvelopeFormat)
		}
		if len(r.WrappedKey) == 0 {
			return fmt.Errorf("%w: recipient %s has no wrapped key", kerrors.ErrEnvelopeFormat, r.Identity)
		}
		if seen[r.Identity] {
			return fmt.Errorf("%w: duplicate recipient %s", kerrors.ErrEnvelopeFormat, r.Identity)
		}
		seen[r.Identity] = true
	}
	return nil
}

// Marshal encodes env as magic, version, little-endian prelude length, JSON
// prelude and ciphertext. Returns ErrEnvelopeFormat if the prelude is invalid.
func Marshal(env *Envelope) ([]byte, error) {
	if err := env.Prelude.validate(); err != nil {
		return nil, err
	}

	prelude, err := json.Marshal(env.Prelude)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding prelude: %v", kerrors.ErrEnvelopeFormat, err)
	}
	if len(prelude) > MaxPreludeSize {
		return nil, fmt.Errorf("%w: prelude is %d bytes, limit %d", kerrors.ErrEnvelopeFormat, len(prelude), MaxPreludeSize)
	}

	blob := make([]byte, HeaderSize, HeaderSize+len(prelude)+len(env.Ciphertext))
	copy(blob, Magic)
	blob[4] = Version
	binary.LittleEndian.PutUint32(blob[5:HeaderSize], uint32(len(prelude)))
	blob = append(blob, prelude...)
	blob = append(blob, env.Ciphertext...)
	return blob, nil
}

// IsEnvelope reports whether blob starts with the envelope magic.
func IsEnvelope(blob []byte) bool {
	return bytes.HasPrefix(blob, []byte(Magic))
}

// split validates the header and returns the raw prelude and ciphertext.
func split(blob []byte) (version byte, prelude, ciphertext []byte, err error) {
	if !IsEnvelope(blob) {
		return 0, nil, nil, fmt.Errorf("%w: missing %s magic", kerrors.ErrEnvelopeFormat, Magic)
	}
	if len(blob) < HeaderSize {
		return 0, nil, nil, fmt.Errorf("%w: truncated before prelude length", kerrors.ErrEnvelopeFormat)
	}
	version = blob[4]
	if version != Version {
		return 0, nil, nil, fmt.Errorf("%w: unsupported version %d", kerrors.ErrEnvelopeFormat, version)
	}

	size := binary.LittleEndian.Uint32(blob[5:HeaderSize])
	if size > MaxPreludeSize {
		return 0, nil, nil, fmt.Errorf("%w: prelude length %d exceeds limit %d", kerrors.ErrEnvelopeFormat, size, MaxPreludeSize)
	}
	end := HeaderSize + int(size)
	if end > len(blob) {
		return 0, nil, nil, fmt.Errorf("%w: prelude exceeds blob length", kerrors.ErrEnvelopeFormat)
	}
	return version, blob[HeaderSize:end], blob[end:], nil
}

// Decode parses an envelope without touching key material. Returns
// ErrEnvelopeFormat on bad magic, unsupported version, a truncated or
// oversized prelude, invalid JSON or an invalid recipient list.
func Decode(blob []byte) (*Envelope, error) {
	version, raw, ciphertext, err := split(blob)
	if err != nil {
		return nil, err
	}

	env := &Envelope{Version: version, Ciphertext: ciphertext}
	if err := json.Unmarshal(raw, &env.Prelude); err != nil {
		return nil, fmt.Errorf("%w: invalid prelude: %v", kerrors.ErrEnvelopeFormat, err)
	}
	if err := env.Prelude.validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Metadata is what anyone can learn from an envelope without keys.
type Metadata struct {
	Magic             string
	Version           int
	Sender            string
	SenderFingerprint string
	Suite             string
	Recipients        []string
	PreludeSize       int
	CiphertextSize    int
}

// Inspect decodes the envelope's public metadata.
func Inspect(blob []byte) (*Metadata, error) {
	env, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Magic:             Magic,
		Version:           int(env.Version),
		Sender:            env.Prelude.Sender.Identity,
		SenderFingerprint: env.Prelude.Sender.Fingerprint,
		Suite:             env.Prelude.Suite,
		Recipients:        env.RecipientIdentities(),
		PreludeSize:       len(blob) - HeaderSize - len(env.Ciphertext),
		CiphertextSize:    len(env.Ciphertext),
	}, nil
}
