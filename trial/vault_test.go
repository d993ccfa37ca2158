package trial

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

func TestVaultEncryptResolve(t *testing.T) {
	vault, err := NewVault()
	require.NoError(t, err)

	h, err := vault.Encrypt(42, crypto.Width8)
	require.NoError(t, err)
	require.False(t, h.IsZero())
	require.Equal(t, crypto.Width8, h.Width)

	value, ok := vault.Resolve(h)
	require.True(t, ok)
	require.Equal(t, uint64(42), value)

	// Deterministic within one vault.
	again, err := vault.Encrypt(42, crypto.Width8)
	require.NoError(t, err)
	require.Equal(t, h, again)

	// A second vault derives different handles for the same plaintext.
	other, err := NewVault()
	require.NoError(t, err)
	foreign, err := other.Encrypt(42, crypto.Width8)
	require.NoError(t, err)
	require.NotEqual(t, h, foreign)
	require.False(t, vault.Contains(foreign))
}

func TestVaultEncryptWidthChecks(t *testing.T) {
	vault, err := NewVault()
	require.NoError(t, err)

	_, err = vault.Encrypt(256, crypto.Width8)
	require.Equal(t, protocol.ValidationError, protocol.KindOf(err))

	_, err = vault.Encrypt(1, crypto.Width(12))
	require.Equal(t, protocol.ValidationError, protocol.KindOf(err))
}

func TestVaultRandomOpaque(t *testing.T) {
	vault, err := NewVault()
	require.NoError(t, err)

	a, err := vault.RandomOpaque(crypto.Width8)
	require.NoError(t, err)
	b, err := vault.RandomOpaque(crypto.Width8)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	value, ok := vault.Resolve(a)
	require.True(t, ok)
	require.LessOrEqual(t, value, crypto.Width8.Max())

	_, err = vault.RandomOpaque(crypto.Width(3))
	require.Equal(t, protocol.ValidationError, protocol.KindOf(err))
}
