package trial

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Vault is the opaque value store. It turns plaintext scalars into opaque
// handles and retains plaintext custody so the decryption oracle service
// can resolve a handle off-ledger. Handles leave the vault; plaintexts
// never do, except through Resolve.
//
// Stored values are immutable: the vault only ever creates new handles,
// it never rewrites the value behind an existing one.
type Vault struct {
	mu     sync.RWMutex
	secret []byte
	values map[crypto.Handle]uint64
}

// NewVault creates a vault with a fresh random derivation secret.
func NewVault() (*Vault, error) {
	secret, err := crypto.RandomSecret()
	if err != nil {
		return nil, fmt.Errorf("vault secret: %w", err)
	}
	return &Vault{
		secret: secret,
		values: make(map[crypto.Handle]uint64),
	}, nil
}

// Encrypt stores plaintext at the given width and returns its handle.
// Derivation is deterministic: encrypting the same value at the same width
// yields the same handle for this vault.
func (v *Vault) Encrypt(plaintext uint64, width crypto.Width) (crypto.Handle, error) {
	if !width.Valid() {
		return crypto.Handle{}, protocol.Errorf(protocol.ValidationError, "unsupported width %d", width)
	}
	if !crypto.FitsWidth(plaintext, width) {
		return crypto.Handle{}, protocol.Errorf(protocol.ValidationError,
			"plaintext %d does not fit width %d", plaintext, width)
	}

	id, err := crypto.DeriveHandleID(v.secret, width, plaintext)
	if err != nil {
		return crypto.Handle{}, err
	}
	h := crypto.Handle{ID: id, Width: width}

	v.mu.Lock()
	v.values[h] = plaintext
	v.mu.Unlock()
	return h, nil
}

// RandomOpaque draws a cryptographically secure random value at the given
// width and stores it under an unpredictable handle. Used once per
// enrollment for the blinded treatment-group assignment.
func (v *Vault) RandomOpaque(width crypto.Width) (crypto.Handle, error) {
	if !width.Valid() {
		return crypto.Handle{}, protocol.Errorf(protocol.ValidationError, "unsupported width %d", width)
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return crypto.Handle{}, fmt.Errorf("random opaque: %w", err)
	}
	value := binary.BigEndian.Uint64(buf[:]) & width.Max()

	id, err := crypto.RandomHandleID()
	if err != nil {
		return crypto.Handle{}, err
	}
	h := crypto.Handle{ID: id, Width: width}

	v.mu.Lock()
	v.values[h] = value
	v.mu.Unlock()
	return h, nil
}

// Resolve returns the plaintext behind a handle. This is the off-ledger
// decryption mechanism: callers are the oracle service and viewer-side
// tooling, both of which enforce capability checks before resolving.
func (v *Vault) Resolve(h crypto.Handle) (uint64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.values[h]
	return value, ok
}

// Contains reports whether the vault holds a value for the handle.
func (v *Vault) Contains(h crypto.Handle) bool {
	_, ok := v.Resolve(h)
	return ok
}
