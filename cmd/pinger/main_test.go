package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/program-pinger/pkg/common"
	"github.com/code-payments/program-pinger/pkg/pinger"
	"github.com/code-payments/program-pinger/pkg/solana"
	"github.com/code-payments/program-pinger/pkg/testutil"
)

func writeCLIConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func writeProgramArtifact(t *testing.T, name string, account *common.Account) string {
	dir := t.TempDir()
	raw, err := os.ReadFile(testutil.WriteKeygenFile(t, account))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+"-keypair.json"), raw, 0600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PINGER_SOLANA_CONFIG", "/tmp/solana.yml")

	config, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "/tmp/solana.yml", config.SolanaConfig)
	assert.Empty(t, config.Endpoint)
	assert.Equal(t, "./dist/program", config.ProgramDir)
	assert.Equal(t, pinger.DefaultSeed, config.Seed)
	assert.EqualValues(t, 4, config.Space)
	assert.Equal(t, 10*time.Second, config.EtcdLockTTL)
	assert.Empty(t, config.etcdEndpoints())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinger.yaml")
	contents := "seed: fromfile\nspace: 16\nprogram_dir: /srv/programs\netcd_endpoints: a:2379, b:2379\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	t.Setenv("PINGER_SEED", "fromenv")
	t.Setenv("PINGER_ETCD_LOCK_TTL", "30s")

	config, err := loadConfig(newViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "fromenv", config.Seed)
	assert.EqualValues(t, 16, config.Space)
	assert.Equal(t, "/srv/programs", config.ProgramDir)
	assert.Equal(t, 30*time.Second, config.EtcdLockTTL)
	assert.Equal(t, []string{"a:2379", "b:2379"}, config.etcdEndpoints())

	_, err = loadConfig(newViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveEndpoint(t *testing.T) {
	keypair := testutil.WriteKeygenFile(t, testutil.NewRandomAccount(t))

	config := &Config{
		Endpoint:     "http://localhost:1234",
		SolanaConfig: writeCLIConfig(t, "json_rpc_url: http://cli:8899\nkeypair_path: "+keypair+"\n"),
	}
	assert.Equal(t, "http://localhost:1234", resolveEndpoint(config))

	config.Endpoint = "localhost"
	assert.Equal(t, string(solana.EnvironmentLocal), resolveEndpoint(config))

	config.Endpoint = "m"
	assert.Equal(t, string(solana.EnvironmentProd), resolveEndpoint(config))

	config.Endpoint = ""
	assert.Equal(t, "http://cli:8899", resolveEndpoint(config))

	config.SolanaConfig = writeCLIConfig(t, "keypair_path: "+keypair+"\n")
	assert.Equal(t, string(solana.EnvironmentDev), resolveEndpoint(config))

	config.SolanaConfig = filepath.Join(t.TempDir(), "missing.yml")
	assert.Equal(t, string(solana.EnvironmentDev), resolveEndpoint(config))
}

func TestDeriveCommand(t *testing.T) {
	identity := testutil.NewRandomAccount(t)
	program := testutil.NewRandomAccount(t)

	solanaConfig := writeCLIConfig(t, "keypair_path: "+testutil.WriteKeygenFile(t, identity)+"\n")
	programDir := writeProgramArtifact(t, "square", program)

	expected, err := identity.ToDerivedAccount(pinger.DefaultSeed, program)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"derive", "square", "--solana-config", solanaConfig, "--program-dir", programDir})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, expected.String()+"\n", out.String())

	other, err := identity.ToDerivedAccount("other", program)
	require.NoError(t, err)

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"derive", "square", "--solana-config", solanaConfig, "--program-dir", programDir, "--seed", "other"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, other.String()+"\n", out.String())
}

func TestDeriveCommand_Errors(t *testing.T) {
	identity := testutil.NewRandomAccount(t)
	solanaConfig := writeCLIConfig(t, "keypair_path: "+testutil.WriteKeygenFile(t, identity)+"\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"derive", "square", "--solana-config", solanaConfig, "--program-dir", t.TempDir()})

	var stageErr *pinger.StageError
	require.True(t, errors.As(cmd.Execute(), &stageErr))
	assert.Equal(t, pinger.StageProgram, stageErr.Stage)

	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"derive"})
	assert.Error(t, cmd.Execute())
}
