package queue

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s.Seal("ghp_secret123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ghp_secret123")

	again, err := s.Seal("ghp_secret123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret123", plain)
}

func TestSealerEmptyToken(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestSealerKeyFormats(t *testing.T) {
	raw := []byte(strings.Repeat("k", 32))

	hexSealer, err := NewSealer(hex.EncodeToString(raw))
	require.NoError(t, err)
	b64Sealer, err := NewSealer(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	sealed, err := hexSealer.Seal("tok")
	require.NoError(t, err)
	plain, err := b64Sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "tok", plain)

	_, err = NewSealer("too-short")
	assert.Error(t, err)
}

func TestSealerRejectsForeignCiphertext(t *testing.T) {
	a, err := NewSealer("")
	require.NoError(t, err)
	b, err := NewSealer("")
	require.NoError(t, err)

	sealed, err := a.Seal("tok")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)

	_, err = a.Open("!!!")
	assert.Error(t, err)
	_, err = a.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
