package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/program-pinger/pkg/identity"
	"github.com/code-payments/program-pinger/pkg/pinger"
	"github.com/code-payments/program-pinger/pkg/solana"
)

// Config is the command line configuration. Values are read, in order of
// precedence, from flags, the environment, and an optional config file.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// SolanaConfig is the Solana CLI config locating the identity keypair. It
	// defaults to the Solana CLI's own location.
	SolanaConfig string `mapstructure:"solana_config"`

	// Endpoint is the JSON-RPC endpoint or a cluster moniker. When empty, the json_rpc_url of the
	// Solana CLI config is used, then devnet.
	Endpoint string `mapstructure:"endpoint"`

	ProgramDir string `mapstructure:"program_dir"`
	Seed       string `mapstructure:"seed"`
	Space      uint32 `mapstructure:"space"`

	EtcdEndpoints string        `mapstructure:"etcd_endpoints"`
	EtcdLockTTL   time.Duration `mapstructure:"etcd_lock_ttl"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
	AppName            string `mapstructure:"app_name"`
}

var defaultConfig = Config{
	LogLevel: "info",

	ProgramDir: "./dist/program",
	Seed:       pinger.DefaultSeed,
	Space:      4,

	EtcdLockTTL: 10 * time.Second,

	AppName: "program-pinger",
}

var envBindings = map[string]string{
	"log_level": "PINGER_LOG_LEVEL",

	"solana_config": "PINGER_SOLANA_CONFIG",
	"endpoint":      "PINGER_ENDPOINT",

	"program_dir": "PINGER_PROGRAM_DIR",
	"seed":        "PINGER_SEED",
	"space":       "PINGER_SPACE",

	"etcd_endpoints": "PINGER_ETCD_ENDPOINTS",
	"etcd_lock_ttl":  "PINGER_ETCD_LOCK_TTL",

	"new_relic_license_key": "NEW_RELIC_LICENSE_KEY",
	"app_name":              "PINGER_APP_NAME",
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// loadConfig resolves Config from v, reading configFile first when set.
func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, errors.Wrapf(err, "config file %s", configFile)
		}

		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if config.SolanaConfig == "" {
		path, err := identity.DefaultCLIConfigPath()
		if err != nil {
			return nil, err
		}
		config.SolanaConfig = path
	}

	return &config, nil
}

// resolveEndpoint picks the JSON-RPC endpoint for config.
func resolveEndpoint(config *Config) string {
	if config.Endpoint != "" {
		return solana.ResolveEnvironment(config.Endpoint)
	}

	// A missing or invalid CLI config surfaces later, when the identity loads.
	cliConfig, err := identity.LoadCLIConfig(config.SolanaConfig)
	if err == nil && cliConfig.JSONRPCURL != "" {
		return cliConfig.JSONRPCURL
	}

	return string(solana.EnvironmentDev)
}

func (c *Config) etcdEndpoints() []string {
	var endpoints []string
	for _, endpoint := range strings.Split(c.EtcdEndpoints, ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}
