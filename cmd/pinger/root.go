package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/program-pinger/pkg/dispatch"
	"github.com/code-payments/program-pinger/pkg/gateway"
	"github.com/code-payments/program-pinger/pkg/identity"
	"github.com/code-payments/program-pinger/pkg/lock"
	etcdlock "github.com/code-payments/program-pinger/pkg/lock/etcd"
	"github.com/code-payments/program-pinger/pkg/metrics"
	"github.com/code-payments/program-pinger/pkg/pinger"
	"github.com/code-payments/program-pinger/pkg/program"
	"github.com/code-payments/program-pinger/pkg/provision"
	"github.com/code-payments/program-pinger/pkg/solana"
)

const (
	etcdLockRoot = "/pinger/locks"

	defaultDialTimeout     = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

var configFile string

// newRootCmd builds the command tree around a fresh viper instance.
func newRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:   "pinger",
		Short: "Provision a program-owned account and ping the program",
		Long: "pinger derives an account from the Solana CLI identity and a program id, " +
			"creates it when missing, and sends the program a finalized instruction.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("solana-config", "", "Solana CLI config (default ~/.config/solana/cli/config.yml)")
	flags.String("endpoint", "", "JSON-RPC endpoint or cluster moniker: devnet, testnet, mainnet-beta, localhost (default json_rpc_url from the Solana CLI config, then devnet)")
	flags.String("program-dir", defaultConfig.ProgramDir, "directory holding <program>-keypair.json artifacts")
	flags.String("seed", defaultConfig.Seed, "seed for the derived account")
	flags.String("log-level", defaultConfig.LogLevel, "log level")

	_ = v.BindPFlag("solana_config", flags.Lookup("solana-config"))
	_ = v.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = v.BindPFlag("program_dir", flags.Lookup("program-dir"))
	_ = v.BindPFlag("seed", flags.Lookup("seed"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(newPingCmd(v), newDeriveCmd(v))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log := logrus.StandardLogger().WithError(err)

		var stageErr *pinger.StageError
		if errors.As(err, &stageErr) {
			log = log.WithField("stage", stageErr.Stage)
		}

		log.Error("command failed")
		os.Exit(1)
	}
}

// app holds the wired components for a single command invocation.
type app struct {
	config  *Config
	pinger  *pinger.Pinger
	metrics *newrelic.Application
	closers []func()
}

func newApp(v *viper.Viper) (*app, error) {
	config, err := loadConfig(v, configFile)
	if err != nil {
		return nil, err
	}

	a := &app{config: config}

	if config.NewRelicLicenseKey != "" {
		a.metrics, err = newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return nil, errors.Wrap(err, "error connecting to new relic")
		}
		a.closers = append(a.closers, func() { a.metrics.Shutdown(defaultShutdownTimeout) })
	}

	configureLogger(config, a.metrics)

	var locks lock.Manager
	if endpoints := config.etcdEndpoints(); len(endpoints) > 0 {
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   endpoints,
			DialTimeout: defaultDialTimeout,
		})
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "error connecting to etcd")
		}
		a.closers = append(a.closers, func() { _ = client.Close() })

		manager, err := etcdlock.NewLockManager(client, etcdLockRoot, config.EtcdLockTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, manager.Close)
		locks = manager
	}

	a.pinger = newPinger(config, locks)

	return a, nil
}

// newPinger wires a Pinger for config. Construction performs no network
// access.
func newPinger(config *Config, locks lock.Manager) *pinger.Pinger {
	endpoint := resolveEndpoint(config)
	logrus.StandardLogger().WithField("endpoint", endpoint).Debug("using json-rpc endpoint")

	g := gateway.NewSolanaGateway(solana.New(endpoint), gateway.WithEnvConfigs())

	return pinger.New(
		g,
		identity.NewProvider(g, config.SolanaConfig, identity.WithEnvConfigs()),
		program.NewLocator(config.ProgramDir),
		provision.NewProvisioner(g, locks, provision.WithEnvConfigs()),
		dispatch.NewDispatcher(g),
		config.Seed,
	)
}

func (a *app) Context(ctx context.Context) context.Context {
	return metrics.NewContext(ctx, a.metrics)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func configureLogger(config *Config, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stderr)
}
