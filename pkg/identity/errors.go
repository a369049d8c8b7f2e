package identity

import "github.com/pkg/errors"

var (
	// ErrConfig indicates the Solana CLI config is missing, malformed, or has
	// no keypair path.
	ErrConfig = errors.New("identity: invalid solana cli config")

	// ErrKeyLoad indicates the identity keypair could not be loaded.
	ErrKeyLoad = errors.New("identity: unable to load keypair")

	// ErrFundingUnavailable indicates the identity holds no lamports and could
	// not be funded.
	ErrFundingUnavailable = errors.New("identity: funding unavailable")
)
