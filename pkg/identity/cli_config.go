package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CLIConfig is the subset of the Solana CLI config file used to locate the
// identity keypair and cluster.
type CLIConfig struct {
	JSONRPCURL   string `yaml:"json_rpc_url"`
	WebsocketURL string `yaml:"websocket_url"`
	KeypairPath  string `yaml:"keypair_path"`
	Commitment   string `yaml:"commitment"`
}

// DefaultCLIConfigPath returns the location the Solana CLI writes its config to.
func DefaultCLIConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "error resolving home directory")
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml"), nil
}

// LoadCLIConfig reads and validates the Solana CLI config at path.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	var config CLIConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	config.KeypairPath = strings.TrimSpace(config.KeypairPath)
	if config.KeypairPath == "" {
		return nil, errors.Wrapf(ErrConfig, "%s: keypair_path not set", path)
	}

	config.KeypairPath, err = expandHome(config.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return &config, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
