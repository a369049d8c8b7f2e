package provision

import (
	"github.com/code-payments/program-pinger/pkg/config"
	"github.com/code-payments/program-pinger/pkg/config/env"
	"github.com/code-payments/program-pinger/pkg/config/memory"
	"github.com/code-payments/program-pinger/pkg/config/wrapper"
)

const (
	envConfigPrefix = "PINGER_PROVISION_"

	// Zero funds new accounts with the rent-exempt minimum for their size.
	LamportsConfigEnvName = envConfigPrefix + "LAMPORTS"
	defaultLamports       = 0

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"
)

type conf struct {
	lamports   config.Uint64
	commitment config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamports:   env.NewUint64Config(LamportsConfigEnvName, defaultLamports),
			commitment: env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
		}
	}
}

type testOverrides struct {
	lamports   uint64
	commitment string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		commitment := memory.NewConfig(nil)
		if overrides.commitment != "" {
			commitment.SetValue(overrides.commitment)
		}

		return &conf{
			lamports:   wrapper.NewUint64Config(memory.NewConfig(overrides.lamports), defaultLamports),
			commitment: wrapper.NewStringConfig(commitment, defaultCommitment),
		}
	}
}
