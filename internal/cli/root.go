// Package cli is the step-bridge command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"step-bridge/internal/client"
	"step-bridge/internal/config"
	"step-bridge/internal/logging"
	"step-bridge/internal/repl"
	"step-bridge/internal/version"
)

// app carries what every command needs once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *logging.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
}

// NewRootCommand builds the full command tree on the given streams.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      config.New(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootCmd := &cobra.Command{
		Use:   "step-bridge",
		Short: "Step Challenge MCP bridge and tools",
		Long: `Connect LLM hosts (Claude Desktop, Claude Code, Cursor) to the Step Challenge
service over the Model Context Protocol, and manage your steps from the
command line.

The token is read from STEP_TOKEN or STEP_CHALLENGE_TOKEN, the --token flag,
or the config file written by "step-bridge login".`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default "+config.DefaultFile()+")")
	flags.String("token", "", "Step Challenge bearer token")
	flags.String("base-url", "", "Step Challenge base URL (default "+config.DefaultBaseURL+")")
	flags.String("endpoint", "", "JSON-RPC endpoint path, /mcp or /mcp/rpc")
	flags.Bool("token-in-params", false, "also send the token as params.token")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	a.v.BindPFlag("token", flags.Lookup("token"))
	a.v.BindPFlag("base_url", flags.Lookup("base-url"))
	a.v.BindPFlag("endpoint_path", flags.Lookup("endpoint"))
	a.v.BindPFlag("token_in_params", flags.Lookup("token-in-params"))
	a.v.BindPFlag("timeout", flags.Lookup("timeout"))
	a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newBridgeCmd(a),
		newInstallCmd(a),
		newDoctorCmd(a),
		newTestCmd(a),
		newShellCmd(a),
		newProfileCmd(a),
		newStepsCmd(a),
		newAddCmd(a),
		newBatchCmd(a),
		newSummaryCmd(a),
		newGoalCmd(a),
		newCapabilitiesCmd(a),
		newToolsCmd(a),
		newLoginCmd(a),
		newTokenCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(a.stderr, logging.ParseLevel(cfg.LogLevel), "step-bridge", logging.ParseFormat(cfg.LogFormat))
	if cfg.File != "" {
		a.logger.Debug("config loaded", "file", cfg.File)
	}
	return nil
}

// apiClient builds the remote client from the loaded config.
func (a *app) apiClient() *client.Client {
	return client.New(a.cfg.Token,
		client.WithBaseURL(a.cfg.BaseURL),
		client.WithEndpointPath(a.cfg.EndpointPath),
		client.WithTokenInParams(a.cfg.TokenInParams),
		client.WithTimeout(a.cfg.Timeout),
		client.WithUserAgent("step-bridge/"+version.Version),
	)
}

// actions returns a token-checked action runner printing to stdout.
func (a *app) actions() (*repl.Actions, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return repl.NewActions(a.apiClient(), repl.NewOutput(a.stdout)), nil
}

// interactive reports whether prompts can be shown on the command's stdin.
func (a *app) interactive() bool {
	f, ok := a.stdin.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}
