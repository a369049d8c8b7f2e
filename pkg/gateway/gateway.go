package gateway

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/program-pinger/pkg/solana"
)

var (
	// ErrAccountNotFound indicates no account exists at the queried address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConfirmationTimeout indicates a transaction did not reach the requested
	// commitment before the confirmation timeout elapsed.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// Gateway is the narrow view of a Solana cluster used to provision accounts
// and dispatch instructions. Every call may block on the network.
type Gateway interface {
	// GetAccountInfo returns the account at address, or ErrAccountNotFound.
	GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error)

	// GetBalance returns the lamport balance of address.
	GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error)

	// GetMinimumBalanceForRentExemption returns the lamports an account of
	// size bytes must hold to be rent exempt.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// GetLatestBlockhash returns a blockhash suitable for a new transaction.
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)

	// SubmitTransaction submits a signed transaction. Preflight rejections are
	// returned as a *solana.TransactionError.
	SubmitTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error)

	// ConfirmTransaction blocks until sig reaches commitment. It returns
	// ErrConfirmationTimeout when the commitment is not observed in time, or
	// the *solana.TransactionError when the transaction failed on chain.
	ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment solana.Commitment) error

	// RequestAirdrop asks the cluster faucet to fund address.
	RequestAirdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error)
}
