package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	finalizeDurationMetricName = "Dispatch/FinalizeDuration"
	stateEventName             = "DispatchState"
)

// Dispatcher sends a single instruction to a program and waits for it to be
// finalized.
type Dispatcher struct {
	log     *logrus.Entry
	gateway gateway.Gateway
}

func NewDispatcher(g gateway.Gateway) *Dispatcher {
	return &Dispatcher{
		log:     logrus.StandardLogger().WithField("type", "dispatch/dispatcher"),
		gateway: g,
	}
}

// Dispatch invokes program with account as its only, writable, account and
// payload as instruction data. The transaction is paid for and signed solely
// by identity. It never creates account.
func (d *Dispatcher) Dispatch(ctx context.Context, identity, program, account *common.Account, payload []byte) (solana.Signature, error) {
	if err := identity.Validate(); err != nil {
		return solana.Signature{}, errors.Wrap(err, "invalid identity")
	}
	if err := program.Validate(); err != nil {
		return solana.Signature{}, errors.Wrap(err, "invalid program")
	}
	if err := account.Validate(); err != nil {
		return solana.Signature{}, errors.Wrap(err, "invalid account")
	}
	if identity.PrivateKey() == nil {
		return solana.Signature{}, errors.New("identity private key is required")
	}

	t := &tracker{
		ctx: ctx,
		log: d.log.WithFields(logrus.Fields{
			"method":  "Dispatch",
			"program": program.String(),
			"account": account.String(),
		}),
	}

	_, err := d.gateway.GetAccountInfo(ctx, account.PublicKey().ToBytes())
	if err == gateway.ErrAccountNotFound {
		return solana.Signature{}, errors.Wrap(ErrAccountNotProvisioned, account.String())
	} else if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error getting account info")
	}

	blockhash, err := d.gateway.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error getting recent blockhash")
	}

	txn := solana.NewTransaction(
		identity.PublicKey().ToBytes(),
		solana.NewInstruction(
			program.PublicKey().ToBytes(),
			payload,
			solana.NewAccountMeta(account.PublicKey().ToBytes(), false),
		),
	)
	txn.SetBlockhash(blockhash)
	t.transition(StateBuilt)

	if err := txn.Sign(identity.PrivateKey().ToBytes()); err != nil {
		return solana.Signature{}, t.fail(err)
	}
	t.sig = txn.Signature()
	t.log = t.log.WithField("signature", t.sig.String())
	t.transition(StateSigned)

	var txErr *solana.TransactionError

	sig, err := d.gateway.SubmitTransaction(ctx, &txn)
	if errors.As(err, &txErr) {
		t.transition(StateRejected)
		return sig, t.fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	} else if err != nil {
		// The send may still have landed, so the state stays Signed.
		return sig, t.fail(errors.Wrap(err, "error submitting transaction"))
	}
	t.transition(StateSubmitted)

	start := time.Now()
	err = d.gateway.ConfirmTransaction(ctx, sig, solana.CommitmentFinalized)

	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrConfirmationTimeout):
		t.transition(StateTimedOut)
		return sig, t.fail(fmt.Errorf("%w: %w", ErrConfirmationTimeout, err))
	case errors.As(err, &txErr):
		t.transition(StateRejected)
		return sig, t.fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	default:
		// The outcome is unknown, so the state stays Submitted.
		return sig, t.fail(errors.Wrap(err, "error confirming transaction"))
	}

	metrics.RecordDuration(ctx, finalizeDurationMetricName, time.Since(start))
	t.transition(StateFinalized)

	return sig, nil
}

type tracker struct {
	ctx   context.Context
	log   *logrus.Entry
	sig   solana.Signature
	state State
}

func (t *tracker) transition(next State) {
	log := t.log.WithFields(logrus.Fields{
		"from": t.state.String(),
		"to":   next.String(),
	})

	if !t.state.CanTransitionTo(next) {
		log.Warn("unexpected state transition")
	} else {
		log.Debug("state transition")
	}

	t.state = next

	metrics.RecordEvent(t.ctx, stateEventName, map[string]interface{}{
		"signature": t.sig.String(),
		"state":     next.String(),
	})
}

func (t *tracker) fail(err error) error {
	t.log.WithError(err).WithField("state", t.state.String()).Warn("dispatch failed")

	return &Error{
		State:     t.state,
		Signature: t.sig,
		Err:       err,
	}
}
