package gateway

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/rate"
	"github.com/code-payments/program-pinger/pkg/retry"
	"github.com/code-payments/program-pinger/pkg/retry/backoff"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	metricsStructName = "gateway.solana"

	rateLimitKey = "rpc"
)

var (
	errSignatureNotFound    = errors.New("signature not found")
	errCommitmentNotReached = errors.New("commitment not reached")
)

type solanaGateway struct {
	log     *logrus.Entry
	conf    *conf
	client  solana.Client
	limiter rate.Limiter
}

// NewSolanaGateway returns a Gateway backed by a Solana JSON-RPC client.
func NewSolanaGateway(client solana.Client, configProvider ConfigProvider) Gateway {
	conf := configProvider()

	// A non-positive limit disables client-side rate limiting.
	var limiter rate.Limiter = &rate.NoLimiter{}
	if limit := conf.rateLimit.Get(context.Background()); limit > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	}

	return &solanaGateway{
		log:     logrus.StandardLogger().WithField("type", "gateway/solana"),
		conf:    conf,
		client:  client,
		limiter: limiter,
	}
}

func (g *solanaGateway) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAccountInfo")
	defer tracer.End()

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return nil, err
	}

	info, err := g.client.GetAccountInfo(address, g.readCommitment(ctx))
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	return &info, nil
}

func (g *solanaGateway) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetBalance")
	defer tracer.End()

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return 0, err
	}

	balance, err := g.client.GetBalance(address, g.readCommitment(ctx))
	if err != nil {
		tracer.OnError(err)
		return 0, err
	}
	return balance, nil
}

func (g *solanaGateway) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetMinimumBalanceForRentExemption")
	defer tracer.End()

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return 0, err
	}

	lamports, err := g.client.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		tracer.OnError(err)
		return 0, err
	}
	return lamports, nil
}

func (g *solanaGateway) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLatestBlockhash")
	defer tracer.End()

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return solana.Blockhash{}, err
	}

	blockhash, err := g.client.GetLatestBlockhash(solana.CommitmentFinalized)
	if err != nil {
		tracer.OnError(err)
		return solana.Blockhash{}, err
	}
	return blockhash, nil
}

func (g *solanaGateway) SubmitTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SubmitTransaction")
	defer tracer.End()

	sig := txn.Signature()
	tracer.AddAttribute("signature", sig.String())

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return sig, err
	}

	sig, err := g.client.SubmitTransaction(*txn, g.readCommitment(ctx))
	if err != nil {
		tracer.OnError(err)
		return sig, err
	}
	return sig, nil
}

// ConfirmTransaction polls signature statuses at the configured interval until
// the commitment is reached, the transaction fails, or the timeout elapses.
func (g *solanaGateway) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment solana.Commitment) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ConfirmTransaction")
	defer tracer.End()

	log := g.log.WithFields(logrus.Fields{
		"method":     "ConfirmTransaction",
		"signature":  sig.String(),
		"commitment": commitment.String(),
	})

	timeout := g.conf.confirmationTimeout.Get(ctx)
	pollInterval := g.conf.pollInterval.Get(ctx)

	var txErr *solana.TransactionError
	attempts, err := retry.Retry(
		func() error {
			if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
				return err
			}

			statuses, err := g.client.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil {
				return err
			}

			if len(statuses) == 0 || statuses[0] == nil {
				return errSignatureNotFound
			}

			status := statuses[0]
			if status.ErrorResult != nil {
				txErr = status.ErrorResult
				return nil
			}

			if !status.Reached(commitment) {
				return errCommitmentNotReached
			}
			return nil
		},
		retry.RetriableErrors(errSignatureNotFound, errCommitmentNotReached),
		retry.Context(ctx),
		retry.Deadline(time.Now().Add(timeout)),
		retry.Backoff(ctx, backoff.Constant(pollInterval), pollInterval),
	)

	log = log.WithField("attempts", attempts)

	switch {
	case err == errSignatureNotFound || err == errCommitmentNotReached:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug("transaction not confirmed before timeout")
		return errors.Wrapf(ErrConfirmationTimeout, "%s after %v", sig, timeout)
	case err != nil:
		tracer.OnError(err)
		log.WithError(err).Warn("failure polling signature status")
		return err
	case txErr != nil:
		log.WithError(txErr).Debug("transaction failed on chain")
		return txErr
	}

	log.Trace("transaction confirmed")
	return nil
}

func (g *solanaGateway) RequestAirdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RequestAirdrop")
	defer tracer.End()

	if err := g.limiter.Wait(ctx, rateLimitKey); err != nil {
		return solana.Signature{}, err
	}

	sig, err := g.client.RequestAirdrop(address, lamports, g.readCommitment(ctx))
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, err
	}
	return sig, nil
}

func (g *solanaGateway) readCommitment(ctx context.Context) solana.Commitment {
	commitment, err := solana.ParseCommitment(g.conf.readCommitment.Get(ctx))
	if err != nil {
		g.log.WithError(err).Warn("invalid read commitment, using confirmed")
		return solana.CommitmentConfirmed
	}
	return commitment
}
