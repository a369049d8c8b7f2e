package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/program-pinger/pkg/config"
)

func TestConfig(t *testing.T) {
	const env = "PINGER_ENV_CONFIG_TEST"
	ctx := context.Background()

	t.Setenv(env, "finalized")
	v, err := NewConfig(env).Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte("finalized"), v)

	// The value is captured at construction
	captured := NewConfig(env)
	t.Setenv(env, "")

	v, err = captured.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte("finalized"), v)

	v, err = NewConfig(env).Get(ctx)
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	t.Setenv("ENV_CONFIG_TEST_TIMEOUT", "90s")
	t.Setenv("ENV_CONFIG_TEST_SPACE", "16")

	ctx := context.Background()
	assert.Equal(t, 90*time.Second, NewDurationConfig("ENV_CONFIG_TEST_TIMEOUT", time.Second).Get(ctx))
	assert.EqualValues(t, 16, NewUint64Config("ENV_CONFIG_TEST_SPACE", 4).Get(ctx))
	assert.Equal(t, "fallback", NewStringConfig("ENV_CONFIG_TEST_MISSING", "fallback").Get(ctx))
	assert.Equal(t, 0.5, NewFloat64Config("ENV_CONFIG_TEST_MISSING", 0.5).Get(ctx))

	// Keys are upper-cased before lookup
	t.Setenv("ENV_CONFIG_TEST_ENABLED", "true")
	assert.True(t, NewBoolConfig("env_config_test_enabled", false).Get(ctx))
}
