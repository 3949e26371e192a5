package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"step-bridge/internal/bridge"
	"step-bridge/internal/logging"
)

type echoRemote struct{}

func (echoRemote) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	raw, _ := json.Marshal(params)
	text, _ := json.Marshal(method + " " + string(raw))
	return json.RawMessage(`{"content":[{"type":"text","text":` + string(text) + `}]}`), nil
}

// TestHelperProcess is not a real test. It runs a bridge over the process
// stdio when launched by helperClient.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("STEP_BRIDGE_HELPER") != "1" {
		return
	}
	os.Stderr.WriteString("helper ready\n")
	b := bridge.New(os.Stdin, os.Stdout, bridge.Config{
		Remote: echoRemote{},
		Logger: logging.New(io.Discard, logging.ERROR, "helper", logging.FormatJSON),
	})
	b.Serve(context.Background())
	os.Exit(0)
}

func helperClient(t *testing.T) *Client {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
	cmd.Env = append(os.Environ(), "STEP_BRIDGE_HELPER=1")
	c, err := start("helper", cmd)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientAgainstBridge(t *testing.T) {
	c := helperClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := c.Initialize(ctx, "step-bridge-doctor", "test")
	require.NoError(t, err)
	assert.Equal(t, bridge.DefaultServerName, res.ServerInfo.Name)
	assert.Equal(t, bridge.DefaultServerName, c.ServerInfo().Name)
	require.NotNil(t, res.Capabilities.Tools)
	require.NotNil(t, res.Capabilities.Resources)

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "add_steps", tools[0].Name)

	require.NoError(t, c.Ping(ctx))

	out, err := c.CallTool(ctx, "get_user_profile", nil)
	require.NoError(t, err)
	assert.Equal(t, `tools/call {"name":"get_user_profile","arguments":{}}`, out.Text())

	assert.Contains(t, c.Stderr(), "helper ready")
}

func TestClientReportsRPCErrors(t *testing.T) {
	c := helperClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.CallTool(ctx, "", nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, -32000, rpcErr.Code)
	assert.Equal(t, "Tool name is required", rpcErr.Data)
}

func TestCallToolResultText(t *testing.T) {
	r := CallToolResult{Content: []ContentBlock{
		{Type: "text", Text: "one"},
		{Type: "image"},
		{Type: "text", Text: "two"},
	}}
	assert.Equal(t, "one\ntwo", r.Text())
}
