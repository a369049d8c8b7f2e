package dispatch

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/program-pinger/pkg/solana"
)

var (
	// ErrAccountNotProvisioned indicates the target account does not exist.
	ErrAccountNotProvisioned = errors.New("dispatch: account not provisioned")

	// ErrSubmission indicates the network rejected the transaction, either at
	// submission or on chain.
	ErrSubmission = errors.New("dispatch: transaction rejected")

	// ErrConfirmationTimeout indicates finality was not observed in time. The
	// transaction may still land.
	ErrConfirmationTimeout = errors.New("dispatch: confirmation timed out")
)

// Error is a dispatch failure annotated with the state the instruction
// reached.
type Error struct {
	State     State
	Signature solana.Signature
	Err       error
}

func (e *Error) Error() string {
	if e.Signature == (solana.Signature{}) {
		return fmt.Sprintf("%s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.State, e.Signature, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
