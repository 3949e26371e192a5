package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"step-bridge/internal/bridge"
	"step-bridge/internal/config"
	"step-bridge/internal/tool"
	"step-bridge/internal/version"
)

func newBridgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "bridge",
		Aliases: []string{"serve", "mcp"},
		Short:   "Run the MCP stdio bridge",
		Long: `Run the MCP bridge on stdin and stdout.

Each line on stdin is one JSON-RPC 2.0 request. MCP lifecycle methods are
answered locally and the step tools are forwarded to the Step Challenge
service. Logs go to stderr; stdout carries only responses.

Add to your Claude Desktop config:

{
  "mcpServers": {
    "step-challenge": {
      "command": "step-bridge",
      "args": ["bridge"],
      "env": {
        "STEP_TOKEN": "your_token"
      }
    }
  }
}

or let "step-bridge install" write it for you.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBridge(cmd.Context())
		},
	}
}

func (a *app) runBridge(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			fmt.Fprintln(a.stderr, "Usage: STEP_TOKEN=your_token step-bridge bridge")
		}
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger.WithComponent("bridge")
	logger.Info("forwarding to remote",
		"endpoint", a.cfg.Endpoint(),
		"tools_source", a.cfg.ToolsSource,
		"timeout", a.cfg.Timeout.String(),
	)

	b := bridge.New(a.stdin, a.stdout, bridge.Config{
		Remote:        a.apiClient(),
		Tools:         tool.Default(),
		Logger:        logger,
		ServerVersion: version.Version,
		RemoteTools:   a.cfg.ToolsSource == config.ToolsSourceRemote,
		CallTimeout:   a.cfg.Timeout,
	})

	err := b.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
