package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		"STEP_TOKEN", "STEP_CHALLENGE_TOKEN", "STEP_CHALLENGE_URL", "STEP_BASE_URL",
		"STEP_ENDPOINT_PATH", "STEP_TOKEN_IN_PARAMS", "STEP_TOOLS_SOURCE", "STEP_TIMEOUT", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultEndpointPath, cfg.EndpointPath)
	assert.Equal(t, ToolsSourceStatic, cfg.ToolsSource)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.False(t, cfg.TokenInParams)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STEP_CHALLENGE_TOKEN", " tok ")
	t.Setenv("STEP_CHALLENGE_URL", "http://localhost:8080/")
	t.Setenv("STEP_ENDPOINT_PATH", "mcp/rpc")
	t.Setenv("STEP_TOKEN_IN_PARAMS", "true")
	t.Setenv("STEP_TOOLS_SOURCE", "Remote")
	t.Setenv("STEP_TIMEOUT", "5s")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "/mcp/rpc", cfg.EndpointPath)
	assert.Equal(t, "http://localhost:8080/mcp/rpc", cfg.Endpoint())
	assert.True(t, cfg.TokenInParams)
	assert.Equal(t, ToolsSourceRemote, cfg.ToolsSource)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestStepTokenWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("STEP_TOKEN", "primary")
	t.Setenv("STEP_CHALLENGE_TOKEN", "secondary")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Token)
}

func TestSaveAndReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ntoken: old\n"), 0600))

	require.NoError(t, Save(path, &Config{
		Token:        "new",
		BaseURL:      DefaultBaseURL,
		EndpointPath: "/mcp/rpc",
	}))

	v := New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "new", cfg.Token)
	assert.Equal(t, "/mcp/rpc", cfg.EndpointPath)
	assert.Equal(t, "debug", cfg.LogLevel, "existing keys are kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "base_url", "defaults are not written")
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed\n"), 0600))

	v := New()
	v.SetConfigFile(path)
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
