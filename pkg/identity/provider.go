package identity

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	airdropEventName = "IdentityAirdrop"
)

// Provider resolves the signing identity configured for the Solana CLI and
// makes a best-effort attempt to fund it.
type Provider struct {
	log        *logrus.Entry
	conf       *conf
	gateway    gateway.Gateway
	configPath string
}

// NewProvider returns a Provider reading the CLI config at configPath.
func NewProvider(g gateway.Gateway, configPath string, configProvider ConfigProvider) *Provider {
	return &Provider{
		log:        logrus.StandardLogger().WithField("type", "identity/provider"),
		conf:       configProvider(),
		gateway:    g,
		configPath: configPath,
	}
}

// Resolve loads the identity and ensures it can pay for transactions.
func (p *Provider) Resolve(ctx context.Context) (*common.Account, error) {
	account, err := p.Load()
	if err != nil {
		return nil, err
	}

	if err := p.EnsureFunded(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Load reads the identity keypair without touching the network.
func (p *Provider) Load() (*common.Account, error) {
	config, err := LoadCLIConfig(p.configPath)
	if err != nil {
		return nil, err
	}

	account, err := LoadKeypair(config.KeypairPath)
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"method":  "Load",
		"address": account.String(),
	}).Info("identity loaded")

	return account, nil
}

// LoadKeypair loads a keygen-format keypair file whose public key lies on the
// ed25519 curve.
func LoadKeypair(path string) (*common.Account, error) {
	account, err := common.NewAccountFromKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyLoad, err)
	}

	if !account.IsOnCurve() {
		return nil, errors.Wrapf(ErrKeyLoad, "%s: public key is not on curve", path)
	}
	return account, nil
}

// EnsureFunded requests an airdrop when the identity's balance is below the
// configured minimum. A failed airdrop is tolerated when the identity already
// holds some lamports.
func (p *Provider) EnsureFunded(ctx context.Context, account *common.Account) error {
	log := p.log.WithFields(logrus.Fields{
		"method":  "EnsureFunded",
		"address": account.String(),
	})

	balance, err := p.gateway.GetBalance(ctx, account.PublicKey().ToBytes())
	if err != nil {
		return errors.Wrap(err, "error getting identity balance")
	}

	log = log.WithField("balance", balance)

	minBalance := p.conf.minBalance.Get(ctx)
	if balance >= minBalance {
		log.Trace("identity sufficiently funded")
		return nil
	}

	if p.conf.disableAirdrop.Get(ctx) {
		if balance > 0 {
			log.Warn("identity balance below minimum and airdrops are disabled")
			return nil
		}
		return errors.Wrap(ErrFundingUnavailable, "airdrops are disabled")
	}

	err = p.airdrop(ctx, account)
	if err != nil {
		if balance > 0 {
			log.WithError(err).Warn("airdrop failed, continuing with existing balance")
			return nil
		}
		return fmt.Errorf("%w: %w", ErrFundingUnavailable, err)
	}

	log.Info("identity funded by airdrop")
	return nil
}

func (p *Provider) airdrop(ctx context.Context, account *common.Account) error {
	lamports := p.conf.airdropLamports.Get(ctx)

	commitment, err := solana.ParseCommitment(p.conf.airdropCommitment.Get(ctx))
	if err != nil {
		return err
	}

	sig, err := p.gateway.RequestAirdrop(ctx, account.PublicKey().ToBytes(), lamports)
	if err != nil {
		return errors.Wrap(err, "error requesting airdrop")
	}

	if err := p.gateway.ConfirmTransaction(ctx, sig, commitment); err != nil {
		return errors.Wrap(err, "error confirming airdrop")
	}

	metrics.RecordEvent(ctx, airdropEventName, map[string]interface{}{
		"address":   account.String(),
		"lamports":  lamports,
		"signature": sig.String(),
	})
	return nil
}
