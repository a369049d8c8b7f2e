package common

import (
	"bytes"
	"crypto/ed25519"
	"os"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var ErrInvalidKeypairFile = errors.New("invalid keypair file")

// NewAccountFromKeygenFile loads an account from a file in the format written
// by the Solana CLI keygen tool, a JSON array of the 64 private key bytes.
func NewAccountFromKeygenFile(path string) (*Account, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	privateKey, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKeypairFile, "%s: %v", path, err)
	}

	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKeypairFile, "%s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(privateKey))
	}

	// The trailing half of a keygen file is the public key, which must match
	// the one derived from the seed.
	publicKey := privateKey.PublicKey()
	derived := ed25519.NewKeyFromSeed(privateKey[:ed25519.SeedSize]).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, publicKey[:]) {
		return nil, errors.Wrapf(ErrInvalidKeypairFile, "%s: public key does not match seed", path)
	}

	return NewAccountFromPrivateKeyBytes(privateKey)
}
