package gateway

import (
	"time"

	"github.com/code-payments/program-pinger/pkg/config"
	"github.com/code-payments/program-pinger/pkg/config/env"
	"github.com/code-payments/program-pinger/pkg/config/memory"
	"github.com/code-payments/program-pinger/pkg/config/wrapper"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	envConfigPrefix = "PINGER_GATEWAY_"

	ConfirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 90 * time.Second

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = solana.PollRate

	RateLimitConfigEnvName = envConfigPrefix + "RATE_LIMIT"
	defaultRateLimit       = 10.0

	ReadCommitmentConfigEnvName = envConfigPrefix + "READ_COMMITMENT"
	defaultReadCommitment       = "confirmed"
)

type conf struct {
	confirmationTimeout config.Duration
	pollInterval        config.Duration
	rateLimit           config.Float64
	readCommitment      config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationTimeout: env.NewDurationConfig(ConfirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
			pollInterval:        env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
			rateLimit:           env.NewFloat64Config(RateLimitConfigEnvName, defaultRateLimit),
			readCommitment:      env.NewStringConfig(ReadCommitmentConfigEnvName, defaultReadCommitment),
		}
	}
}

type testOverrides struct {
	confirmationTimeout time.Duration
	pollInterval        time.Duration

	// rateLimit is left at a permissive default when nil.
	rateLimit *float64
}

// withManualTestOverrides returns configuration with fixed timings for tests
func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		rateLimit := memory.NewConfig(nil)
		if overrides.rateLimit != nil {
			rateLimit.SetValue(*overrides.rateLimit)
		}

		return &conf{
			confirmationTimeout: wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationTimeout), defaultConfirmationTimeout),
			pollInterval:        wrapper.NewDurationConfig(memory.NewConfig(overrides.pollInterval), defaultPollInterval),
			rateLimit:           wrapper.NewFloat64Config(rateLimit, 1000),
			readCommitment:      wrapper.NewStringConfig(memory.NewConfig(nil), defaultReadCommitment),
		}
	}
}
