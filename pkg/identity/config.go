package identity

import (
	"github.com/code-payments/program-pinger/pkg/config"
	"github.com/code-payments/program-pinger/pkg/config/env"
	"github.com/code-payments/program-pinger/pkg/config/memory"
	"github.com/code-payments/program-pinger/pkg/config/wrapper"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	envConfigPrefix = "PINGER_IDENTITY_"

	DisableAirdropConfigEnvName = envConfigPrefix + "DISABLE_AIRDROP"
	defaultDisableAirdrop       = false

	AirdropLamportsConfigEnvName = envConfigPrefix + "AIRDROP_LAMPORTS"
	defaultAirdropLamports       = solana.LamportsPerSol

	MinBalanceConfigEnvName = envConfigPrefix + "MIN_BALANCE"
	defaultMinBalance       = solana.LamportsPerSol / 10

	AirdropCommitmentConfigEnvName = envConfigPrefix + "AIRDROP_COMMITMENT"
	defaultAirdropCommitment       = "finalized"
)

type conf struct {
	disableAirdrop    config.Bool
	airdropLamports   config.Uint64
	minBalance        config.Uint64
	airdropCommitment config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			disableAirdrop:    env.NewBoolConfig(DisableAirdropConfigEnvName, defaultDisableAirdrop),
			airdropLamports:   env.NewUint64Config(AirdropLamportsConfigEnvName, defaultAirdropLamports),
			minBalance:        env.NewUint64Config(MinBalanceConfigEnvName, defaultMinBalance),
			airdropCommitment: env.NewStringConfig(AirdropCommitmentConfigEnvName, defaultAirdropCommitment),
		}
	}
}

type testOverrides struct {
	disableAirdrop  bool
	airdropLamports uint64
	minBalance      uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			disableAirdrop:    wrapper.NewBoolConfig(memory.NewConfig(overrides.disableAirdrop), defaultDisableAirdrop),
			airdropLamports:   wrapper.NewUint64Config(memory.NewConfig(overrides.airdropLamports), defaultAirdropLamports),
			minBalance:        wrapper.NewUint64Config(memory.NewConfig(overrides.minBalance), defaultMinBalance),
			airdropCommitment: wrapper.NewStringConfig(memory.NewConfig(nil), defaultAirdropCommitment),
		}
	}
}
