package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidthMax(t *testing.T) {
	require.Equal(t, uint64(255), Width8.Max())
	require.Equal(t, uint64(65535), Width16.Max())
	require.Equal(t, uint64(4294967295), Width32.Max())
	require.Equal(t, ^uint64(0), Width64.Max())

	require.False(t, Width(7).Valid())
	require.True(t, Width32.Valid())
}

func TestDeriveHandleIDDeterministic(t *testing.T) {
	secret, err := RandomSecret()
	require.NoError(t, err)

	a, err := DeriveHandleID(secret, Width8, 42)
	require.NoError(t, err)
	b, err := DeriveHandleID(secret, Width8, 42)
	require.NoError(t, err)
	require.Equal(t, a, b)

	// Different plaintext or width gives a different identifier.
	c, err := DeriveHandleID(secret, Width8, 43)
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	d, err := DeriveHandleID(secret, Width32, 42)
	require.NoError(t, err)
	require.NotEqual(t, a, d)
}

func TestDeriveHandleIDRequiresSecret(t *testing.T) {
	_, err := DeriveHandleID(nil, Width8, 1)
	require.Error(t, err)
}

func TestRandomHandleIDUnpredictable(t *testing.T) {
	seen := make(map[HandleID]bool)
	for i := 0; i < 64; i++ {
		id, err := RandomHandleID()
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate random handle id")
		seen[id] = true
	}
}

func TestHandleIDTextRoundTrip(t *testing.T) {
	id, err := RandomHandleID()
	require.NoError(t, err)

	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded HandleID
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, id, decoded)

	require.Error(t, decoded.UnmarshalText([]byte("zz")))
	require.Error(t, decoded.UnmarshalText([]byte("abcd")))
}

func TestFitsWidth(t *testing.T) {
	require.True(t, FitsWidth(255, Width8))
	require.False(t, FitsWidth(256, Width8))
	require.True(t, FitsWidth(0, Width8))
}
