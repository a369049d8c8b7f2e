package provision

import (
	"bytes"
	"context"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/lock"
	"github.com/code-payments/program-pinger/pkg/lock/local"
	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/solana"
	"github.com/code-payments/program-pinger/pkg/solana/system"
)

const (
	accountCreatedMetricName = "Provision/AccountCreated"
	createDurationMetricName = "Provision/CreateDuration"
)

// ErrAddressCollision indicates the derived address holds an account owned by
// a different program.
var ErrAddressCollision = errors.New("provision: address owned by another program")

// Provisioner ensures a program-owned account exists at an address derived
// from an identity, a seed and the program id.
type Provisioner struct {
	log     *logrus.Entry
	conf    *conf
	gateway gateway.Gateway
	locks   lock.Manager
}

// NewProvisioner returns a Provisioner. A nil lock manager serializes
// provisioning within this process only.
func NewProvisioner(g gateway.Gateway, locks lock.Manager, configProvider ConfigProvider) *Provisioner {
	if locks == nil {
		locks = local.NewManager()
	}

	return &Provisioner{
		log:     logrus.StandardLogger().WithField("type", "provision/provisioner"),
		conf:    configProvider(),
		gateway: g,
		locks:   locks,
	}
}

// Derive returns the address for (identity, seed, program) without touching
// the network.
func Derive(identity, program *common.Account, seed string) (*common.Account, error) {
	return identity.ToDerivedAccount(seed, program)
}

// EnsureAccount returns the derived address, creating a program-owned account
// of space bytes there if none exists. Calling it again for the same inputs
// submits no transaction.
func (p *Provisioner) EnsureAccount(ctx context.Context, identity, program *common.Account, seed string, space uint32) (*common.Account, error) {
	if err := identity.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid identity")
	}
	if err := program.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid program")
	}
	if identity.PrivateKey() == nil {
		return nil, errors.New("identity private key is required")
	}

	address, err := Derive(identity, program, seed)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving address")
	}

	log := p.log.WithFields(logrus.Fields{
		"method":  "EnsureAccount",
		"address": address.String(),
		"program": program.String(),
		"seed":    seed,
	})

	err = lock.WithLock(ctx, p.locks, lockName(address), func(ctx context.Context) error {
		info, err := p.gateway.GetAccountInfo(ctx, address.PublicKey().ToBytes())
		switch err {
		case nil:
			if err := checkOwner(info, program); err != nil {
				return err
			}
			log.Info("account already provisioned")
			return nil
		case gateway.ErrAccountNotFound:
		default:
			return errors.Wrap(err, "error getting account info")
		}

		log.Info("account not found, creating")
		return p.create(ctx, log, identity, program, address, seed, space)
	})
	if err != nil {
		return nil, err
	}

	return address, nil
}

func (p *Provisioner) create(ctx context.Context, log *logrus.Entry, identity, program, address *common.Account, seed string, space uint32) error {
	start := time.Now()

	commitment, err := solana.ParseCommitment(p.conf.commitment.Get(ctx))
	if err != nil {
		return err
	}

	lamports := p.conf.lamports.Get(ctx)
	if lamports == 0 {
		lamports, err = p.gateway.GetMinimumBalanceForRentExemption(ctx, uint64(space))
		if err != nil {
			return errors.Wrap(err, "error getting rent exempt balance")
		}
	}

	blockhash, err := p.gateway.GetLatestBlockhash(ctx)
	if err != nil {
		return errors.Wrap(err, "error getting recent blockhash")
	}

	txn := solana.NewTransaction(
		identity.PublicKey().ToBytes(),
		system.CreateAccountWithSeed(
			identity.PublicKey().ToBytes(),
			address.PublicKey().ToBytes(),
			identity.PublicKey().ToBytes(),
			seed,
			lamports,
			uint64(space),
			program.PublicKey().ToBytes(),
		),
	)
	txn.SetBlockhash(blockhash)
	if err := txn.Sign(identity.PrivateKey().ToBytes()); err != nil {
		return errors.Wrap(err, "error signing transaction")
	}

	log = log.WithFields(logrus.Fields{
		"signature": txn.Signature().String(),
		"lamports":  lamports,
		"space":     space,
	})

	sig, err := p.gateway.SubmitTransaction(ctx, &txn)
	if err == nil {
		err = p.gateway.ConfirmTransaction(ctx, sig, commitment)
	}

	// Another creator won the race. The account is usable if it has the
	// expected owner.
	if system.IsAccountAlreadyInUse(err) {
		log.Info("account created concurrently")

		info, err := p.gateway.GetAccountInfo(ctx, address.PublicKey().ToBytes())
		if err != nil {
			return errors.Wrap(err, "error getting account info after concurrent create")
		}
		return checkOwner(info, program)
	} else if err != nil {
		log.WithError(err).Warn("failure creating account")
		return errors.Wrap(err, "error creating account")
	}

	metrics.RecordCount(ctx, accountCreatedMetricName, 1)
	metrics.RecordDuration(ctx, createDurationMetricName, time.Since(start))

	log.Info("account created")
	return nil
}

func checkOwner(info *solana.AccountInfo, program *common.Account) error {
	if !bytes.Equal(info.Owner, program.PublicKey().ToBytes()) {
		return errors.Wrapf(ErrAddressCollision, "owner is %s", base58.Encode(info.Owner))
	}
	return nil
}

func lockName(address *common.Account) string {
	return "/pinger/provision/" + address.String()
}
