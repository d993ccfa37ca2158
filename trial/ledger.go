package trial

import (
	"sync"

	"github.com/google/uuid"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Identity names an external party: a participant, the coordinator, or an
// oracle operator. Identities are opaque strings, typically hex-encoded
// public keys.
type Identity string

// CapabilityLedger is the append-only grant table. Each handle maps to a
// processor capability (permission for the trial core's own logic to use
// the handle) and a set of viewer identities (permission for one external
// identity to obtain the plaintext off-ledger).
//
// Grants are never revoked within a handle's lifetime; the absence of a
// grant is a deliberate privacy decision. Withholding the viewer
// capability on the treatment-group handle is what preserves blinding.
type CapabilityLedger struct {
	mu         sync.RWMutex
	processor  map[crypto.Handle]bool
	viewers    map[crypto.Handle]map[Identity]bool
	oracleKeys map[string]crypto.PublicKey
}

// NewCapabilityLedger creates an empty ledger.
func NewCapabilityLedger() *CapabilityLedger {
	return &CapabilityLedger{
		processor:  make(map[crypto.Handle]bool),
		viewers:    make(map[crypto.Handle]map[Identity]bool),
		oracleKeys: make(map[string]crypto.PublicKey),
	}
}

// GrantProcessor grants the trial core permission to use the handle in
// further operations. Idempotent.
func (l *CapabilityLedger) GrantProcessor(h crypto.Handle) {
	l.mu.Lock()
	l.processor[h] = true
	l.mu.Unlock()
}

// HasProcessor reports whether the handle carries a processor grant.
func (l *CapabilityLedger) HasProcessor(h crypto.Handle) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.processor[h]
}

// RequireProcessor fails with an AuthorizationError unless the handle
// carries a processor grant. Every core-side read, use or store of a
// handle passes through this check.
func (l *CapabilityLedger) RequireProcessor(h crypto.Handle) error {
	if !l.HasProcessor(h) {
		return protocol.Errorf(protocol.AuthorizationError,
			"handle %s lacks processor capability", h)
	}
	return nil
}

// GrantViewer grants exactly one external identity permission to obtain
// the handle's plaintext via the off-ledger decryption mechanism.
// Idempotent.
func (l *CapabilityLedger) GrantViewer(h crypto.Handle, id Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.viewers[h]
	if !ok {
		set = make(map[Identity]bool)
		l.viewers[h] = set
	}
	set[id] = true
}

// CanView reports whether the identity holds a viewer grant on the handle.
func (l *CapabilityLedger) CanView(h crypto.Handle, id Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewers[h][id]
}

// ViewerCount returns the number of identities granted a view on the
// handle. A blinded handle keeps this at zero for its whole lifetime.
func (l *CapabilityLedger) ViewerCount(h crypto.Handle) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.viewers[h])
}

// RegisterOracleKey records a trusted oracle verification key. Callback
// signature sets verify against these keys only.
func (l *CapabilityLedger) RegisterOracleKey(pk crypto.PublicKey) {
	l.mu.Lock()
	l.oracleKeys[pk.String()] = pk
	l.mu.Unlock()
}

// OracleKeyCount returns the number of registered oracle keys.
func (l *CapabilityLedger) OracleKeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.oracleKeys)
}

// VerifyPlaintextBatch is the ledger's verification primitive for oracle
// callbacks. Every signature in the set must verify over the canonical
// digest of (requestID, values) under a registered oracle key, and at
// least minSignatures distinct registered keys must be present. Any
// failure rejects the whole set.
func (l *CapabilityLedger) VerifyPlaintextBatch(requestID uuid.UUID, values []uint64, set protocol.SignatureSet, minSignatures int) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(set) == 0 {
		return protocol.Errorf(protocol.VerificationError, "empty signature set")
	}

	digest := protocol.BatchDigest(requestID, values)
	seen := make(map[string]bool, len(set))
	for _, os := range set {
		key := os.PublicKey.String()
		if _, registered := l.oracleKeys[key]; !registered {
			return protocol.Errorf(protocol.VerificationError,
				"signature from unregistered oracle key %s", key)
		}
		if !os.Signature.Verify(os.PublicKey, digest) {
			return protocol.Errorf(protocol.VerificationError,
				"invalid signature from oracle key %s", key)
		}
		seen[key] = true
	}

	if len(seen) < minSignatures {
		return protocol.Errorf(protocol.VerificationError,
			"need %d distinct oracle signatures, got %d", minSignatures, len(seen))
	}
	return nil
}
