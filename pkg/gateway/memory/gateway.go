package memory

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/solana"
	"github.com/code-payments/program-pinger/pkg/solana/system"
)

const (
	// FeeLamports is charged to the fee payer of every landed transaction.
	FeeLamports = 5000

	// Matches the cluster default of 3480 lamports per byte-year held for two
	// years, including the 128 byte account overhead.
	rentLamportsPerByte    = 6960
	accountStorageOverhead = 128
)

// ProgramHandler executes an instruction for a registered program. accounts
// holds the instruction's accounts in order and may be mutated. A returned
// error fails the transaction as an InstructionError.
type ProgramHandler func(program ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error

// CounterProgram increments the little-endian u32 held by the first account,
// which must be owned by the program and hold exactly four bytes.
func CounterProgram(program ed25519.PublicKey, accounts []*solana.AccountInfo, _ []byte) error {
	if len(accounts) == 0 {
		return errors.New(string(solana.InstructionErrorNotEnoughAccountKeys))
	}

	account := accounts[0]
	if !bytes.Equal(account.Owner, program) {
		return errors.New(string(solana.InstructionErrorIncorrectProgramID))
	}
	if len(account.Data) != 4 {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}

	binary.LittleEndian.PutUint32(account.Data, binary.LittleEndian.Uint32(account.Data)+1)
	return nil
}

type outcome struct {
	err *solana.TransactionError
}

// Gateway is an in-memory ledger implementing gateway.Gateway. It executes
// system program account creation and registered program handlers, and
// supports fault injection for tests.
type Gateway struct {
	mu sync.Mutex

	accounts    map[string]*solana.AccountInfo
	balances    map[string]uint64
	programs    map[string]ProgramHandler
	blockhashes map[solana.Blockhash]struct{}
	outcomes    map[solana.Signature]*outcome
	submitted   []solana.Transaction
	nonce       uint64

	getAccountInfoErr   error
	submitErr           error
	airdropErr          error
	dropConfirmations   bool
	deferFailures       bool
	beforeSubmit        func(txn *solana.Transaction)
	getAccountInfoCalls int
}

// New returns an empty ledger.
func New() *Gateway {
	return &Gateway{
		accounts:    make(map[string]*solana.AccountInfo),
		balances:    make(map[string]uint64),
		programs:    make(map[string]ProgramHandler),
		blockhashes: make(map[solana.Blockhash]struct{}),
		outcomes:    make(map[solana.Signature]*outcome),
	}
}

// RegisterProgram makes instructions addressed to program execute handler.
func (g *Gateway) RegisterProgram(program ed25519.PublicKey, handler ProgramHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.programs[string(program)] = handler
}

// SetAccount stores a copy of info at address.
func (g *Gateway) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.accounts[string(address)] = cloneAccount(&info)
}

// Account returns a copy of the account at address, if one exists.
func (g *Gateway) Account(address ed25519.PublicKey) (*solana.AccountInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	info, ok := g.accounts[string(address)]
	if !ok {
		return nil, false
	}
	return cloneAccount(info), true
}

// SetBalance sets the lamport balance of a system owned wallet.
func (g *Gateway) SetBalance(address ed25519.PublicKey, lamports uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.balances[string(address)] = lamports
}

// Submissions returns every transaction that reached SubmitTransaction's
// execution step, including rejected ones.
func (g *Gateway) Submissions() []solana.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]solana.Transaction(nil), g.submitted...)
}

// GetAccountInfoCalls returns the number of GetAccountInfo calls made.
func (g *Gateway) GetAccountInfoCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.getAccountInfoCalls
}

// InduceGetAccountInfoError makes GetAccountInfo fail with err. A nil err
// clears it.
func (g *Gateway) InduceGetAccountInfoError(err error) {
	g.mu.Lock()
	g.getAccountInfoErr = err
	g.mu.Unlock()
}

// InduceSubmitError makes SubmitTransaction fail with err before executing.
func (g *Gateway) InduceSubmitError(err error) {
	g.mu.Lock()
	g.submitErr = err
	g.mu.Unlock()
}

// InduceAirdropError makes RequestAirdrop fail with err.
func (g *Gateway) InduceAirdropError(err error) {
	g.mu.Lock()
	g.airdropErr = err
	g.mu.Unlock()
}

// DropConfirmations makes ConfirmTransaction time out for every signature.
func (g *Gateway) DropConfirmations(drop bool) {
	g.mu.Lock()
	g.dropConfirmations = drop
	g.mu.Unlock()
}

// DeferFailures makes execution failures land on chain and surface from
// ConfirmTransaction, as if preflight were skipped.
func (g *Gateway) DeferFailures(deferFailures bool) {
	g.mu.Lock()
	g.deferFailures = deferFailures
	g.mu.Unlock()
}

// BeforeSubmit registers a hook run before a submitted transaction executes.
// The hook runs without the ledger lock held, so it may mutate the ledger.
func (g *Gateway) BeforeSubmit(hook func(txn *solana.Transaction)) {
	g.mu.Lock()
	g.beforeSubmit = hook
	g.mu.Unlock()
}

// GetAccountInfo implements gateway.Gateway.GetAccountInfo.
func (g *Gateway) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.getAccountInfoCalls++
	if g.getAccountInfoErr != nil {
		return nil, g.getAccountInfoErr
	}

	info, ok := g.accounts[string(address)]
	if !ok {
		return nil, gateway.ErrAccountNotFound
	}
	return cloneAccount(info), nil
}

// GetBalance implements gateway.Gateway.GetBalance.
func (g *Gateway) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if info, ok := g.accounts[string(address)]; ok {
		return info.Lamports, nil
	}
	return g.balances[string(address)], nil
}

// GetMinimumBalanceForRentExemption implements gateway.Gateway.GetMinimumBalanceForRentExemption.
func (g *Gateway) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return (accountStorageOverhead + size) * rentLamportsPerByte, nil
}

// GetLatestBlockhash implements gateway.Gateway.GetLatestBlockhash.
func (g *Gateway) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Blockhash{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nonce++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], g.nonce)

	blockhash := solana.Blockhash(sha256.Sum256(seed[:]))
	g.blockhashes[blockhash] = struct{}{}
	return blockhash, nil
}

// SubmitTransaction implements gateway.Gateway.SubmitTransaction. Transactions
// execute atomically: on failure no account changes are kept.
func (g *Gateway) SubmitTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	sig := txn.Signature()
	if err := ctx.Err(); err != nil {
		return sig, err
	}

	g.mu.Lock()
	submitErr := g.submitErr
	hook := g.beforeSubmit
	g.mu.Unlock()

	if submitErr != nil {
		return sig, submitErr
	}
	if err := txn.Validate(); err != nil {
		return sig, err
	}
	if hook != nil {
		hook(txn)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted = append(g.submitted, *txn)

	if _, ok := g.outcomes[sig]; ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}
	if txErr := g.verify(txn); txErr != nil {
		return sig, txErr
	}

	payer := string(txn.FeePayer())
	if g.balances[payer] < FeeLamports {
		return sig, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	staged := &stagedLedger{parent: g, accounts: make(map[string]*solana.AccountInfo), balances: make(map[string]uint64)}
	staged.setBalance(payer, staged.balance(payer)-FeeLamports)

	txErr := staged.execute(txn)
	if txErr != nil && !g.deferFailures {
		return sig, txErr
	}

	if txErr == nil {
		staged.commit()
	} else {
		// A failed transaction that lands still pays its fee.
		g.balances[payer] -= FeeLamports
	}

	g.outcomes[sig] = &outcome{err: txErr}
	return sig, nil
}

// ConfirmTransaction implements gateway.Gateway.ConfirmTransaction. Landed
// transactions are immediately final.
func (g *Gateway) ConfirmTransaction(ctx context.Context, sig solana.Signature, _ solana.Commitment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dropConfirmations {
		return errors.Wrap(gateway.ErrConfirmationTimeout, sig.String())
	}

	o, ok := g.outcomes[sig]
	if !ok {
		return errors.Wrap(gateway.ErrConfirmationTimeout, sig.String())
	}
	if o.err != nil {
		return o.err
	}
	return nil
}

// RequestAirdrop implements gateway.Gateway.RequestAirdrop.
func (g *Gateway) RequestAirdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.airdropErr != nil {
		return solana.Signature{}, g.airdropErr
	}

	g.balances[string(address)] += lamports

	g.nonce++
	var sig solana.Signature
	digest := sha256.Sum256(append(append([]byte{}, address...), byte(g.nonce), byte(g.nonce>>8)))
	copy(sig[:], digest[:])

	g.outcomes[sig] = &outcome{}
	return sig, nil
}

func (g *Gateway) verify(txn *solana.Transaction) *solana.TransactionError {
	if _, ok := g.blockhashes[txn.Message.RecentBlockhash]; !ok {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	message := txn.Message.Marshal()
	for i, sig := range txn.Signatures {
		if i >= len(txn.Message.Accounts) || !ed25519.Verify(txn.Message.Accounts[i], message, sig[:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}
	return nil
}

// stagedLedger buffers account and balance changes for one transaction.
type stagedLedger struct {
	parent   *Gateway
	accounts map[string]*solana.AccountInfo
	balances map[string]uint64
}

func (s *stagedLedger) account(address ed25519.PublicKey) (*solana.AccountInfo, bool) {
	if info, ok := s.accounts[string(address)]; ok {
		return info, true
	}
	if info, ok := s.parent.accounts[string(address)]; ok {
		s.accounts[string(address)] = cloneAccount(info)
		return s.accounts[string(address)], true
	}
	return nil, false
}

func (s *stagedLedger) balance(address string) uint64 {
	if v, ok := s.balances[address]; ok {
		return v
	}
	return s.parent.balances[address]
}

func (s *stagedLedger) setBalance(address string, lamports uint64) {
	s.balances[address] = lamports
}

func (s *stagedLedger) commit() {
	for k, v := range s.accounts {
		s.parent.accounts[k] = v
	}
	for k, v := range s.balances {
		s.parent.balances[k] = v
	}
}

func (s *stagedLedger) execute(txn *solana.Transaction) *solana.TransactionError {
	m := txn.Message

	for i, ix := range m.Instructions {
		program := m.Accounts[ix.ProgramIndex]

		var err error
		if bytes.Equal(program, system.ProgramKey[:]) {
			err = s.executeSystem(m, i)
		} else {
			handler, ok := s.parent.programs[string(program)]
			if !ok {
				return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
			}

			accounts := make([]*solana.AccountInfo, len(ix.Accounts))
			for j, index := range ix.Accounts {
				info, ok := s.account(m.Accounts[index])
				if !ok {
					info = &solana.AccountInfo{Owner: system.ProgramKey[:]}
				}
				accounts[j] = info
			}
			err = handler(program, accounts, ix.Data)
		}

		if err != nil {
			txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{Index: i, Err: err})
			if convErr != nil {
				return solana.NewTransactionError(solana.TransactionErrorInstructionError)
			}
			return txErr
		}
	}

	return nil
}

func (s *stagedLedger) executeSystem(m solana.Message, index int) error {
	create, err := system.DecompileCreateAccountWithSeed(m, index)
	if err != nil {
		return errors.New(string(solana.InstructionErrorInvalidInstructionData))
	}

	if !isSigner(m, create.Base) || !isSigner(m, create.Funder) {
		return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	}

	derived, err := solana.CreateWithSeed(create.Base, create.Seed, create.Owner)
	switch err {
	case nil:
	case solana.ErrMaxSeedLengthExceeded:
		return system.ErrorMaxSeedLengthExceeded
	default:
		return system.ErrorAddressWithSeedMismatch
	}
	if !bytes.Equal(derived, create.Address) {
		return system.ErrorAddressWithSeedMismatch
	}

	if _, exists := s.account(create.Address); exists || s.balance(string(create.Address)) > 0 {
		return system.ErrorAccountAlreadyInUse
	}

	funder := string(create.Funder)
	if s.balance(funder) < create.Lamports {
		return system.ErrorResultWithNegativeLamports
	}
	s.setBalance(funder, s.balance(funder)-create.Lamports)

	s.accounts[string(create.Address)] = &solana.AccountInfo{
		Data:     make([]byte, create.Size),
		Owner:    create.Owner,
		Lamports: create.Lamports,
	}
	return nil
}

func isSigner(m solana.Message, key ed25519.PublicKey) bool {
	for i := 0; i < int(m.Header.NumSignatures) && i < len(m.Accounts); i++ {
		if bytes.Equal(m.Accounts[i], key) {
			return true
		}
	}
	return false
}

func cloneAccount(info *solana.AccountInfo) *solana.AccountInfo {
	return &solana.AccountInfo{
		Data:       append([]byte(nil), info.Data...),
		Owner:      append(ed25519.PublicKey(nil), info.Owner...),
		Lamports:   info.Lamports,
		Executable: info.Executable,
	}
}
