package dispatch

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/gateway/memory"
	"github.com/code-payments/program-pinger/pkg/solana"
	"github.com/code-payments/program-pinger/pkg/testutil"
)

type testEnv struct {
	ctx        context.Context
	ledger     *memory.Gateway
	identity   *common.Account
	program    *common.Account
	account    *common.Account
	dispatcher *Dispatcher
}

func setup(t *testing.T) testEnv {
	identity := testutil.NewRandomAccount(t)
	program := testutil.NewRandomAccount(t)

	account, err := identity.ToDerivedAccount("test1", program)
	require.NoError(t, err)

	ledger := memory.New()
	ledger.SetBalance(identity.PublicKey().ToBytes(), solana.LamportsPerSol)
	ledger.RegisterProgram(program.PublicKey().ToBytes(), memory.CounterProgram)

	return testEnv{
		ctx:        context.Background(),
		ledger:     ledger,
		identity:   identity,
		program:    program,
		account:    account,
		dispatcher: NewDispatcher(ledger),
	}
}

func (e testEnv) provision() {
	e.ledger.SetAccount(e.account.PublicKey().ToBytes(), solana.AccountInfo{
		Owner:    e.program.PublicKey().ToBytes(),
		Data:     make([]byte, 4),
		Lamports: 1_000_000,
	})
}

func TestDispatch_Finalized(t *testing.T) {
	env := setup(t)
	env.provision()

	sig, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	require.NoError(t, err)

	submissions := env.ledger.Submissions()
	require.Len(t, submissions, 1)
	txn := submissions[0]
	assert.Equal(t, sig, txn.Signature())

	// Only the identity signs and pays
	assert.Len(t, txn.Signatures, 1)
	assert.EqualValues(t, env.identity.PublicKey().ToBytes(), txn.FeePayer())

	require.Len(t, txn.Message.Instructions, 1)
	ix := txn.Message.Instructions[0]
	assert.EqualValues(t, env.program.PublicKey().ToBytes(), txn.Message.Accounts[ix.ProgramIndex])
	require.Len(t, ix.Accounts, 1)
	assert.EqualValues(t, env.account.PublicKey().ToBytes(), txn.Message.Accounts[ix.Accounts[0]])
	assert.Empty(t, ix.Data)

	// The account is writable and not a signer
	assert.EqualValues(t, 1, txn.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, txn.Message.Header.NumReadOnly)

	info, ok := env.ledger.Account(env.account.PublicKey().ToBytes())
	require.True(t, ok)
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(info.Data))
}

func TestDispatch_Payload(t *testing.T) {
	env := setup(t)
	env.provision()

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, []byte{1, 2, 3})
	require.NoError(t, err)

	submissions := env.ledger.Submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, []byte{1, 2, 3}, submissions[0].Message.Instructions[0].Data)
}

func TestDispatch_AccountNotProvisioned(t *testing.T) {
	env := setup(t)

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, ErrAccountNotProvisioned)
	assert.Empty(t, env.ledger.Submissions())

	_, ok := env.ledger.Account(env.account.PublicKey().ToBytes())
	assert.False(t, ok)
}

func TestDispatch_GatewayFailure(t *testing.T) {
	env := setup(t)
	env.provision()

	timeout := errors.New("rpc timeout")
	env.ledger.InduceGetAccountInfoError(timeout)

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, timeout)
	assert.Empty(t, env.ledger.Submissions())
}

func TestDispatch_SubmitRejected(t *testing.T) {
	env := setup(t)
	env.provision()

	rejected := solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	env.ledger.InduceSubmitError(rejected)

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, ErrSubmission)
	assert.ErrorIs(t, err, rejected)

	var dispatchErr *Error
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, StateRejected, dispatchErr.State)
	assert.NotEqual(t, solana.Signature{}, dispatchErr.Signature)
}

func TestDispatch_SubmitTransportFailure(t *testing.T) {
	env := setup(t)
	env.provision()

	sendFailure := errors.Wrap(context.DeadlineExceeded, "sendTransaction() failed to send request")
	env.ledger.InduceSubmitError(sendFailure)

	sig, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSubmission)

	// The transaction may have landed, so it is not reported as rejected
	var dispatchErr *Error
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, StateSigned, dispatchErr.State)
	assert.Equal(t, sig, dispatchErr.Signature)
	assert.NotEqual(t, solana.Signature{}, sig)
}

func TestDispatch_InvalidAccounts(t *testing.T) {
	env := setup(t)
	env.provision()

	_, err := env.dispatcher.Dispatch(env.ctx, nil, env.program, env.account, nil)
	assert.Error(t, err)

	_, err = env.dispatcher.Dispatch(env.ctx, env.identity, nil, env.account, nil)
	assert.Error(t, err)

	_, err = env.dispatcher.Dispatch(env.ctx, env.identity, env.program, nil, nil)
	assert.Error(t, err)

	assert.Empty(t, env.ledger.Submissions())
}

func TestDispatch_PreflightProgramError(t *testing.T) {
	env := setup(t)

	// Owned by another program, so the counter program refuses it
	env.ledger.SetAccount(env.account.PublicKey().ToBytes(), solana.AccountInfo{
		Owner: testutil.NewRandomAccount(t).PublicKey().ToBytes(),
		Data:  make([]byte, 4),
	})

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, ErrSubmission)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, solana.InstructionErrorIncorrectProgramID, txErr.InstructionError().ErrorKey())
}

func TestDispatch_OnChainFailure(t *testing.T) {
	env := setup(t)
	env.ledger.DeferFailures(true)
	env.ledger.SetAccount(env.account.PublicKey().ToBytes(), solana.AccountInfo{
		Owner: env.program.PublicKey().ToBytes(),
		Data:  make([]byte, 8),
	})

	_, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, ErrSubmission)

	var dispatchErr *Error
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, StateRejected, dispatchErr.State)
}

func TestDispatch_ConfirmationTimeout(t *testing.T) {
	env := setup(t)
	env.provision()
	env.ledger.DropConfirmations(true)

	sig, err := env.dispatcher.Dispatch(env.ctx, env.identity, env.program, env.account, nil)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.NotEqual(t, solana.Signature{}, sig)

	var dispatchErr *Error
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, StateTimedOut, dispatchErr.State)
	assert.Equal(t, sig, dispatchErr.Signature)
}

func TestDispatch_ContextCancelledDuringConfirm(t *testing.T) {
	env := setup(t)
	env.provision()

	ctx, cancel := context.WithCancel(env.ctx)
	env.ledger.BeforeSubmit(func(*solana.Transaction) { cancel() })

	// Confirmation observes the context cancelled during submission
	_, err := env.dispatcher.Dispatch(ctx, env.identity, env.program, env.account, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfirmationTimeout)
}

func TestState(t *testing.T) {
	assert.True(t, StateUnknown.CanTransitionTo(StateBuilt))
	assert.True(t, StateBuilt.CanTransitionTo(StateSigned))
	assert.True(t, StateSigned.CanTransitionTo(StateSubmitted))
	assert.True(t, StateSigned.CanTransitionTo(StateRejected))
	assert.True(t, StateSubmitted.CanTransitionTo(StateFinalized))
	assert.True(t, StateSubmitted.CanTransitionTo(StateRejected))
	assert.True(t, StateSubmitted.CanTransitionTo(StateTimedOut))

	assert.False(t, StateBuilt.CanTransitionTo(StateSubmitted))
	assert.False(t, StateFinalized.CanTransitionTo(StateSubmitted))
	assert.False(t, StateTimedOut.CanTransitionTo(StateFinalized))

	for _, s := range []State{StateFinalized, StateRejected, StateTimedOut} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	assert.False(t, StateSubmitted.IsTerminal())
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "unknown", State(99).String())
}
