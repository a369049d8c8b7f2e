package common

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for _, raw := range [][]byte{publicKey, privateKey} {
		fromBytes, err := NewKeyFromBytes(raw)
		require.NoError(t, err)

		fromString, err := NewKeyFromString(base58.Encode(raw))
		require.NoError(t, err)

		for _, key := range []*Key{fromBytes, fromString} {
			assert.Equal(t, len(raw) == ed25519.PublicKeySize, key.IsPublic())
			assert.EqualValues(t, raw, key.ToBytes())
			assert.Equal(t, base58.Encode(raw), key.ToBase58())
		}
	}

	key, err := NewKeyFromBytes(privateKey)
	require.NoError(t, err)
	assert.Equal(t, "<private>", key.String())
}

func TestInvalidKey(t *testing.T) {
	_, err := NewKeyFromString("invalid-key")
	assert.Error(t, err)

	_, err = NewKeyFromBytes([]byte("invalid-key"))
	assert.Error(t, err)

	var nilKey *Key
	assert.Error(t, nilKey.Validate())
}
