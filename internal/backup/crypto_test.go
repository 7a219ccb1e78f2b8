package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	plain := []byte("SQLite format 3\x00 family data")

	sealed, err := Seal(plain, "correct horse")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, []byte("family data")))
	assert.Len(t, sealed, saltSize+nonceSize+len(plain)+16)

	got, err := Open(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a[:saltSize], b[:saltSize])
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = Open(sealed, "wrong")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenRejectsTampering(t *testing.T) {
	sealed, err := Seal([]byte("secret"), "pw")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = Open(sealed, "pw")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open([]byte("short"), "pw")
	assert.ErrorIs(t, err, ErrDecrypt)
}
