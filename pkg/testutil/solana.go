package testutil

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/program-pinger/pkg/common"
)

func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		p, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = p
	}
	return keys
}

func NewRandomAccount(t *testing.T) *common.Account {
	account, err := common.NewRandomAccount()
	require.NoError(t, err)

	return account
}

// WriteKeygenFile writes the account's private key to a keygen-style JSON file
// in a temporary directory and returns its path.
func WriteKeygenFile(t *testing.T, account *common.Account) string {
	raw := account.PrivateKey().ToBytes()

	values := make([]int, len(raw))
	for i, b := range raw {
		values[i] = int(b)
	}

	encoded, err := json.Marshal(values)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, encoded, 0600))
	return path
}
