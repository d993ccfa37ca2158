package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("decryption batch payload")
	sig, err := Sign(priv, data)
	require.NoError(t, err)
	require.True(t, sig.Verify(pub, data))

	// Tampered payload fails.
	require.False(t, sig.Verify(pub, []byte("decryption batch payloae")))

	// Wrong key fails.
	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, sig.Verify(otherPub, data))
}

func TestPublicKeyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	derived, err := priv.PublicKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(derived))

	parsed, err := NewPublicKeyFromString(pub.String())
	require.NoError(t, err)
	require.True(t, pub.Equal(parsed))

	_, err = NewPublicKeyFromString("not-hex")
	require.Error(t, err)
}

func TestSignRejectsShortKey(t *testing.T) {
	_, err := Sign(PrivateKey([]byte("short")), []byte("data"))
	require.Error(t, err)

	_, err = PrivateKey([]byte("short")).PublicKey()
	require.Error(t, err)
}
