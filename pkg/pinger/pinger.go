package pinger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/dispatch"
	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/identity"
	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/program"
	"github.com/code-payments/program-pinger/pkg/provision"
	"github.com/code-payments/program-pinger/pkg/solana"
	"github.com/code-payments/program-pinger/pkg/solana/binary"
)

// DefaultSeed is the seed used to derive the pinged account.
const DefaultSeed = "test1"

// Stage names a step of ProvisionAndPing.
type Stage string

const (
	StageIdentity  Stage = "identity"
	StageProgram   Stage = "program"
	StageProvision Stage = "provision"
	StageDispatch  Stage = "dispatch"
)

// StageError is a ProvisionAndPing failure tagged with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result describes a completed ProvisionAndPing run.
type Result struct {
	Identity  *common.Account
	Program   *common.Account
	Account   *common.Account
	Signature solana.Signature

	// Counter is the program's counter after the ping, if it could be read.
	Counter    uint32
	HasCounter bool
}

// Pinger provisions a deterministic account for a program and pings it.
type Pinger struct {
	log         *logrus.Entry
	gateway     gateway.Gateway
	identity    *identity.Provider
	programs    *program.Locator
	provisioner *provision.Provisioner
	dispatcher  *dispatch.Dispatcher
	seed        string
}

func New(
	g gateway.Gateway,
	identityProvider *identity.Provider,
	locator *program.Locator,
	provisioner *provision.Provisioner,
	dispatcher *dispatch.Dispatcher,
	seed string,
) *Pinger {
	if seed == "" {
		seed = DefaultSeed
	}

	return &Pinger{
		log:         logrus.StandardLogger().WithField("type", "pinger"),
		gateway:     g,
		identity:    identityProvider,
		programs:    locator,
		provisioner: provisioner,
		dispatcher:  dispatcher,
		seed:        seed,
	}
}

// ProvisionAndPing resolves the identity and program, ensures the derived
// account exists with space bytes, and dispatches an empty instruction to the
// program, waiting for finality.
func (p *Pinger) ProvisionAndPing(ctx context.Context, programName string, space uint32) (result *Result, err error) {
	ctx, end := metrics.StartTransaction(ctx, "ProvisionAndPing")
	defer func() { end(err) }()

	log := p.log.WithContext(ctx).WithFields(logrus.Fields{
		"method":  "ProvisionAndPing",
		"run":     uuid.New().String(),
		"program": programName,
		"space":   space,
	})

	result = &Result{}

	err = p.stage(ctx, log, StageIdentity, func() (err error) {
		result.Identity, err = p.identity.Resolve(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.WithField("identity", result.Identity.String())

	err = p.stage(ctx, log, StageProgram, func() (err error) {
		result.Program, err = p.programs.Resolve(programName)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.WithField("program_id", result.Program.String())

	err = p.stage(ctx, log, StageProvision, func() (err error) {
		result.Account, err = p.provisioner.EnsureAccount(ctx, result.Identity, result.Program, p.seed, space)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.WithField("account", result.Account.String())

	err = p.stage(ctx, log, StageDispatch, func() (err error) {
		result.Signature, err = p.dispatcher.Dispatch(ctx, result.Identity, result.Program, result.Account, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.WithField("signature", result.Signature.String())

	counter, err := p.readCounter(ctx, result.Account)
	if err != nil {
		log.WithError(err).Warn("unable to read counter")
	} else {
		result.Counter = counter
		result.HasCounter = true
		log = log.WithField("counter", counter)
	}

	log.Info("ping finalized")
	return result, nil
}

// Derive returns the address ProvisionAndPing would use without any network
// access.
func (p *Pinger) Derive(programName string) (*common.Account, error) {
	identityAccount, err := p.identity.Load()
	if err != nil {
		return nil, &StageError{Stage: StageIdentity, Err: err}
	}

	programID, err := p.programs.Resolve(programName)
	if err != nil {
		return nil, &StageError{Stage: StageProgram, Err: err}
	}

	address, err := provision.Derive(identityAccount, programID, p.seed)
	if err != nil {
		return nil, &StageError{Stage: StageProvision, Err: err}
	}
	return address, nil
}

func (p *Pinger) stage(ctx context.Context, log *logrus.Entry, stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordDuration(ctx, fmt.Sprintf("Pinger/%s/Duration", stage), time.Since(start))

	if err != nil {
		log.WithError(err).WithField("stage", stage).Warn("stage failed")
		return &StageError{Stage: stage, Err: err}
	}

	log.WithField("stage", stage).Debug("stage complete")
	return nil
}

func (p *Pinger) readCounter(ctx context.Context, account *common.Account) (uint32, error) {
	info, err := p.gateway.GetAccountInfo(ctx, account.PublicKey().ToBytes())
	if err != nil {
		return 0, err
	}

	var counter uint32
	var offset int
	if err := binary.GetUint32(info.Data, &counter, &offset); err != nil {
		return 0, errors.Wrap(err, "account data does not hold a counter")
	}
	return counter, nil
}
