package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey())
	require.NoError(t, err)
	require.True(t, s.Enabled())

	sealed, err := s.Seal([]byte(`{"a":1}`), []byte("r1/sem"))
	require.NoError(t, err)
	plain, err := s.Open(sealed, []byte("r1/sem"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(plain))

	_, err = s.Open(sealed, []byte("r2/sem"))
	assert.ErrorIs(t, err, ErrDecrypt, "payload is bound to its row")
}

func TestSealerWithoutKey(t *testing.T) {
	plainSealer, err := NewSealer(nil)
	require.NoError(t, err)
	assert.False(t, plainSealer.Enabled())

	data, err := plainSealer.Seal([]byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{formatPlain, 'x'}, data)

	keyed, _ := NewSealer(testKey())
	sealed, _ := keyed.Seal([]byte("x"), nil)
	_, err = plainSealer.Open(sealed, nil)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}
