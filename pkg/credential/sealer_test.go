package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	sealer, err := NewSealer("passphrase", salt)
	require.NoError(t, err)

	record := testRecord("tok-1")
	payload, err := sealer.Seal(testNamespace, "key-1", record)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "tok-1")

	t.Run("round trip", func(t *testing.T) {
		got, err := sealer.Open(testNamespace, "key-1", payload)
		require.NoError(t, err)
		assert.Equal(t, record, got)
	})

	t.Run("bound to account", func(t *testing.T) {
		_, err := sealer.Open(testNamespace, "key-2", payload)
		assert.Error(t, err)
	})

	t.Run("bound to namespace", func(t *testing.T) {
		_, err := sealer.Open("other", "key-1", payload)
		assert.Error(t, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-1] ^= 0xff
		_, err := sealer.Open(testNamespace, "key-1", tampered)
		assert.Error(t, err)
	})

	t.Run("short payload", func(t *testing.T) {
		_, err := sealer.Open(testNamespace, "key-1", []byte{1, 2})
		assert.Error(t, err)
	})

	t.Run("nonce is random", func(t *testing.T) {
		again, err := sealer.Seal(testNamespace, "key-1", record)
		require.NoError(t, err)
		assert.NotEqual(t, payload, again)
	})
}

func TestNewSealer_Validation(t *testing.T) {
	_, err := NewSealer("", make([]byte, SaltSize))
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = NewSealer("x", []byte{1})
	assert.Error(t, err)
}
