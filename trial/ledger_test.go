package trial

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

func testHandle(t *testing.T) crypto.Handle {
	t.Helper()
	id, err := crypto.RandomHandleID()
	require.NoError(t, err)
	return crypto.Handle{ID: id, Width: crypto.Width32}
}

func TestLedgerProcessorGrant(t *testing.T) {
	ledger := NewCapabilityLedger()
	h := testHandle(t)

	require.False(t, ledger.HasProcessor(h))
	err := ledger.RequireProcessor(h)
	require.Error(t, err)
	require.Equal(t, protocol.AuthorizationError, protocol.KindOf(err))

	ledger.GrantProcessor(h)
	require.True(t, ledger.HasProcessor(h))
	require.NoError(t, ledger.RequireProcessor(h))

	// Idempotent.
	ledger.GrantProcessor(h)
	require.True(t, ledger.HasProcessor(h))
}

func TestLedgerViewerGrant(t *testing.T) {
	ledger := NewCapabilityLedger()
	h := testHandle(t)

	require.False(t, ledger.CanView(h, "alice"))

	ledger.GrantViewer(h, "alice")
	require.True(t, ledger.CanView(h, "alice"))
	require.False(t, ledger.CanView(h, "bob"))
	require.Equal(t, 1, ledger.ViewerCount(h))

	// Idempotent.
	ledger.GrantViewer(h, "alice")
	require.Equal(t, 1, ledger.ViewerCount(h))
}

func TestLedgerVerifyPlaintextBatch(t *testing.T) {
	ledger := NewCapabilityLedger()

	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	ledger.RegisterOracleKey(pub)

	requestID := uuid.New()
	values := []uint64{85, 60, 90}

	sig, err := protocol.SignBatch(priv, requestID, values)
	require.NoError(t, err)

	require.NoError(t, ledger.VerifyPlaintextBatch(requestID, values, protocol.SignatureSet{sig}, 1))
}

func TestLedgerVerifyRejectsTamperedBatch(t *testing.T) {
	ledger := NewCapabilityLedger()

	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	ledger.RegisterOracleKey(pub)

	requestID := uuid.New()
	sig, err := protocol.SignBatch(priv, requestID, []uint64{85, 60, 90})
	require.NoError(t, err)

	err = ledger.VerifyPlaintextBatch(requestID, []uint64{85, 61, 90}, protocol.SignatureSet{sig}, 1)
	require.Error(t, err)
	require.Equal(t, protocol.VerificationError, protocol.KindOf(err))
}

func TestLedgerVerifyRejectsUnregisteredKey(t *testing.T) {
	ledger := NewCapabilityLedger()

	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	requestID := uuid.New()
	values := []uint64{1}
	sig, err := protocol.SignBatch(priv, requestID, values)
	require.NoError(t, err)

	err = ledger.VerifyPlaintextBatch(requestID, values, protocol.SignatureSet{sig}, 1)
	require.Equal(t, protocol.VerificationError, protocol.KindOf(err))
}

func TestLedgerVerifyRejectsEmptySet(t *testing.T) {
	ledger := NewCapabilityLedger()
	err := ledger.VerifyPlaintextBatch(uuid.New(), []uint64{1}, nil, 1)
	require.Equal(t, protocol.VerificationError, protocol.KindOf(err))
}

func TestLedgerVerifyQuorum(t *testing.T) {
	ledger := NewCapabilityLedger()

	pubA, privA, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	pubB, privB, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	ledger.RegisterOracleKey(pubA)
	ledger.RegisterOracleKey(pubB)
	require.Equal(t, 2, ledger.OracleKeyCount())

	requestID := uuid.New()
	values := []uint64{7, 8}
	sigA, err := protocol.SignBatch(privA, requestID, values)
	require.NoError(t, err)
	sigB, err := protocol.SignBatch(privB, requestID, values)
	require.NoError(t, err)

	// One signature does not meet a quorum of two, even duplicated.
	err = ledger.VerifyPlaintextBatch(requestID, values, protocol.SignatureSet{sigA}, 2)
	require.Equal(t, protocol.VerificationError, protocol.KindOf(err))
	err = ledger.VerifyPlaintextBatch(requestID, values, protocol.SignatureSet{sigA, sigA}, 2)
	require.Equal(t, protocol.VerificationError, protocol.KindOf(err))

	require.NoError(t, ledger.VerifyPlaintextBatch(requestID, values, protocol.SignatureSet{sigA, sigB}, 2))
}
