package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Width tags a handle with the bit width of the scalar it conceals.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Valid returns true if the width is one of the supported tags.
func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// Max returns the largest value representable at this width.
func (w Width) Max() uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// HandleIDSize is the byte length of a handle identifier.
const HandleIDSize = 32

// HandleID is the fixed-size identifier of an opaque value.
type HandleID [HandleIDSize]byte

// String returns a hex-encoded representation of the identifier.
func (id HandleID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText encodes the identifier as hex for JSON transport.
func (id HandleID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex-encoded identifier.
func (id *HandleID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid handle id hex: %w", err)
	}
	if len(raw) != HandleIDSize {
		return fmt.Errorf("invalid handle id length: %d", len(raw))
	}
	copy(id[:], raw)
	return nil
}

// Handle is an opaque value: an identifier standing in for a confidentially
// stored scalar plus the bit width of that scalar. Handles are immutable;
// an operation never mutates a stored value, it produces a new handle.
type Handle struct {
	ID    HandleID `json:"id"`
	Width Width    `json:"width"`
}

// IsZero reports whether the handle is the zero value, which is never a
// valid stored handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String returns a short loggable representation of the handle.
func (h Handle) String() string {
	return fmt.Sprintf("%s/u%d", hex.EncodeToString(h.ID[:8]), h.Width)
}

// FitsWidth reports whether plaintext is representable at width w.
func FitsWidth(plaintext uint64, w Width) bool {
	return plaintext <= w.Max()
}

// DeriveHandleID deterministically derives a handle identifier from a
// store secret, a width tag and a plaintext value using HKDF-SHA256.
// The same (secret, width, plaintext) always yields the same identifier,
// and the identifier reveals nothing about the plaintext without the
// secret.
func DeriveHandleID(secret []byte, w Width, plaintext uint64) (HandleID, error) {
	var id HandleID
	if len(secret) == 0 {
		return id, errors.New("empty handle derivation secret")
	}

	var ikm [9]byte
	ikm[0] = byte(w)
	binary.BigEndian.PutUint64(ikm[1:], plaintext)

	r := hkdf.New(sha256.New, secret, nil, ikm[:])
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return id, fmt.Errorf("derive handle id: %w", err)
	}
	return id, nil
}

// RandomHandleID generates a cryptographically secure, unpredictable
// handle identifier.
func RandomHandleID() (HandleID, error) {
	var id HandleID
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("random handle id: %w", err)
	}
	return id, nil
}

// RandomSecret generates key material for deterministic handle derivation.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("random secret: %w", err)
	}
	return secret, nil
}
