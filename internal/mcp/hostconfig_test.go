package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPath(t *testing.T) {
	tests := []struct {
		host    Host
		goos    string
		appData string
		want    string
	}{
		{HostClaudeDesktop, "darwin", "", "/home/u/Library/Application Support/Claude/claude_desktop_config.json"},
		{HostClaudeDesktop, "linux", "", "/home/u/.config/Claude/claude_desktop_config.json"},
		{HostClaudeDesktop, "windows", "/appdata", "/appdata/Claude/claude_desktop_config.json"},
		{HostCursor, "linux", "", "/home/u/.cursor/mcp.json"},
		{HostClaudeCode, "darwin", "", "/home/u/.claude.json"},
	}

	for _, tt := range tests {
		t.Run(string(tt.host)+"/"+tt.goos, func(t *testing.T) {
			got, err := hostPath(tt.host, tt.goos, "/home/u", tt.appData)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}

	_, err := hostPath(HostClaudeDesktop, "windows", "/home/u", "")
	assert.Error(t, err)
	_, err = hostPath("vim", "linux", "/home/u", "")
	assert.Error(t, err)
}

func TestParseHost(t *testing.T) {
	h, err := ParseHost("cursor")
	require.NoError(t, err)
	assert.Equal(t, HostCursor, h)

	_, err = ParseHost("emacs")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	c, err := LoadHostConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, c.ServerNames())
	assert.Empty(t, c.BackupPath)
}

func TestUpsertPreservesUnrelatedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "theme": "dark",
  "mcpServers": {
    "files": {"command": "npx", "args": ["-y", "files"]},
    "remote": {"type": "sse", "url": "https://example.com/sse"}
  }
}`), 0o644))

	c, err := LoadHostConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Upsert("step-challenge", ServerConfig{
		Command: "/usr/local/bin/step-bridge",
		Args:    []string{"bridge"},
		Env:     map[string]string{"STEP_TOKEN": "tok"},
	}))
	require.NoError(t, c.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc["theme"])

	servers := doc["mcpServers"].(map[string]any)
	assert.Len(t, servers, 3)
	assert.Equal(t, map[string]any{"type": "sse", "url": "https://example.com/sse"}, servers["remote"])
	assert.Equal(t, map[string]any{
		"command": "/usr/local/bin/step-bridge",
		"args":    []any{"bridge"},
		"env":     map[string]any{"STEP_TOKEN": "tok"},
	}, servers["step-challenge"])

	reloaded, err := LoadHostConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "remote", "step-challenge"}, reloaded.ServerNames())
	s, ok, err := reloaded.Server("step-challenge")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", s.Env["STEP_TOKEN"])
}

func TestInvalidJSONIsBackedUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {`), 0o644))

	c, err := LoadHostConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path+".backup", c.BackupPath)

	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, `{"mcpServers": {`, string(backup))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Upsert("step-challenge", ServerConfig{Command: "step-bridge"}))
	require.NoError(t, c.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"step-challenge":{"command":"step-bridge"}}}`, string(data))
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "mcp.json")
	c, err := LoadHostConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{}}`, string(data))
}

func TestRemove(t *testing.T) {
	c, err := LoadHostConfig(filepath.Join(t.TempDir(), "mcp.json"))
	require.NoError(t, err)
	require.NoError(t, c.Upsert("x", ServerConfig{Command: "x"}))
	assert.True(t, c.Remove("x"))
	assert.False(t, c.Remove("x"))
}
