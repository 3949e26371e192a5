package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"step-bridge/internal/config"
	"step-bridge/internal/rpc"
)

func init() {
	color.NoColor = true
}

// isolate keeps the user's config and environment out of a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"STEP_TOKEN", "STEP_CHALLENGE_TOKEN", "STEP_CHALLENGE_URL", "STEP_BASE_URL", "STEP_ENDPOINT_PATH", "STEP_TOOLS_SOURCE"} {
		t.Setenv(k, "")
	}
	return home
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// stepServer answers the step methods the CLI uses.
func stepServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "invalid token")
			return
		}
		var req rpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var result string
		switch req.Method {
		case "get_user_profile":
			result = `{"user":{"name":"Ada","email":"ada@example.com"}}`
		case "add_steps":
			result = `{"success":true,"date":"2025-07-30","count":12000}`
		default:
			result = `{"ok":true}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","id":`+string(req.ID)+`,"result":`+result+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBridgeRequiresToken(t *testing.T) {
	isolate(t)

	stdout, stderr, err := execute(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n", "bridge")
	require.ErrorIs(t, err, config.ErrMissingToken)
	assert.Empty(t, stdout, "nothing may reach stdout without a token")
	assert.Contains(t, stderr, "STEP_TOKEN=your_token")
}

func TestBridgeServesStdin(t *testing.T) {
	isolate(t)
	srv := stepServer(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_user_profile","arguments":{}}}`,
	}, "\n") + "\n"

	stdout, _, err := execute(t, in, "bridge", "--token", "good", "--base-url", srv.URL, "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"protocolVersion":"2025-03-26"`)
	assert.Contains(t, lines[1], `"id":2`)
	assert.Contains(t, lines[1], `"result":{"ok":true}`)
}

func TestProfileCommand(t *testing.T) {
	isolate(t)
	srv := stepServer(t)
	t.Setenv("STEP_TOKEN", "good")
	t.Setenv("STEP_CHALLENGE_URL", srv.URL)

	stdout, _, err := execute(t, "", "profile")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Ada")
}

func TestAddRejectsBadCount(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "add", "today", "lots", "--token", "good")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid step count "lots"`)
}

func TestInstallWritesEntry(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"theme":"dark","mcpServers":{"other":{"command":"x"}}}`), 0644))

	stdout, _, err := execute(t, "", "install",
		"--file", file,
		"--token", "secret",
		"--base-url", "https://steps.example.com",
		"--command", "/usr/local/bin/step-bridge",
		"--no-verify",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "claude-desktop")

	var doc struct {
		Theme   string                     `json:"theme"`
		Servers map[string]json.RawMessage `json:"mcpServers"`
	}
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc.Theme)
	assert.Contains(t, doc.Servers, "other")
	assert.JSONEq(t, `{
		"command": "/usr/local/bin/step-bridge",
		"args": ["bridge"],
		"env": {"STEP_TOKEN": "secret", "STEP_CHALLENGE_URL": "https://steps.example.com"}
	}`, string(doc.Servers[defaultServerName]))

	_, _, err = execute(t, "", "install", "--file", file, "--remove")
	require.NoError(t, err)
	data, err = os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), defaultServerName)
	assert.Contains(t, string(data), `"other"`)
}

func TestInstallErrors(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "install", "--host", "claude-desktop", "--host", "cursor", "--file", "x.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single --host")

	_, _, err = execute(t, "", "install", "--host", "vim", "--token", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown host "vim"`)
}

func TestInstallEveryHost(t *testing.T) {
	home := isolate(t)
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))

	_, _, err := execute(t, "", "install",
		"--host", "cursor", "--host", "claude-code",
		"--token", "secret", "--command", "step-bridge", "--no-verify",
	)
	require.NoError(t, err)

	for _, p := range []string{
		filepath.Join(home, ".cursor", "mcp.json"),
		filepath.Join(home, ".claude.json"),
	} {
		data, err := os.ReadFile(p)
		require.NoError(t, err, p)
		assert.Contains(t, string(data), `"STEP_TOKEN": "secret"`)
	}
}

func TestReadBatchMergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "june.yaml"), []byte("2025-06-30: 100\n2025-07-01: 200\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "july.yaml"), []byte("2025-07-01: 300\n2025-07-02: 400\n"), 0644))

	entries, err := readBatch([]string{filepath.Join(dir, "**", "*.yaml")})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2025-06-30", entries[0].Date)
	assert.Equal(t, "2025-07-02", entries[2].Date)

	_, err = readBatch([]string{filepath.Join(dir, "*.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}

func TestLoginSavesConfig(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "cfg", "config.yaml")

	_, _, err := execute(t, "", "login", "--token", "tok", "--endpoint", "/mcp/rpc", "--file", file, "--no-verify")
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token: tok")
	assert.Contains(t, string(data), "endpoint_path: /mcp/rpc")

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInstallDoesNotPromptOnInjectedStdin(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "claude_desktop_config.json")

	_, _, err := execute(t, "typed-token\n", "install", "--file", file, "--no-verify")
	require.ErrorIs(t, err, config.ErrMissingToken)
	assert.NoFileExists(t, file)
}

func TestShellReadsInjectedStdin(t *testing.T) {
	isolate(t)
	srv := stepServer(t)

	stdout, _, err := execute(t, "profile\nexit\nprofile\n", "shell", "--token", "good", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "Ada"))
}
