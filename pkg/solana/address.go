package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	// MaxSeedLength is the maximum length of a seed used in address derivation.
	MaxSeedLength = 32
)

var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrIllegalOwner          = errors.New("provided owner is not allowed")
	ErrInvalidPublicKey      = errors.New("invalid public key")
)

var (
	seedHashCtor = sha256.New

	pdaMarker = []byte("ProgramDerivedAddress")
)

// CreateWithSeed mirrors the implementation of the Solana SDK's CreateWithSeed.
//
// The derived address is sha256(base || seed || owner). It is a pure function
// of its inputs, so the same (base, seed, owner) always yields the same address.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L135
func CreateWithSeed(base ed25519.PublicKey, seed string, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(base) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidPublicKey, "base")
	}
	if len(owner) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidPublicKey, "owner")
	}
	if len(seed) > MaxSeedLength {
		return nil, ErrMaxSeedLengthExceeded
	}

	// Owners that look like a program derived address marker could be used to
	// forge PDAs, so the SDK refuses them.
	if bytes.HasSuffix(owner, pdaMarker) {
		return nil, ErrIllegalOwner
	}

	h := seedHashCtor()
	for _, v := range [][]byte{base, []byte(seed), owner} {
		if _, err := h.Write(v); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	return h.Sum(nil), nil
}

// IsOnCurve reports whether the public key is a valid compressed EdwardsPoint,
// which is a requirement for any key that is expected to sign.
//
// The edwards25519.ExtendedGroupElement (the EdwardsPoint) is internal to the
// golang.org/x/crypto library, so we rely on an open source alternative.
func IsOnCurve(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}

	var raw [32]byte
	copy(raw[:], pub)

	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&raw)
}
