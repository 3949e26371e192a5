package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"step-bridge/internal/config"
	"step-bridge/internal/mcp"
	"step-bridge/internal/repl"
)

const defaultServerName = "step-challenge"

type installOptions struct {
	hosts    []string
	name     string
	command  string
	file     string
	remove   bool
	noVerify bool
}

func newInstallCmd(a *app) *cobra.Command {
	opts := &installOptions{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the bridge with Claude Desktop, Cursor or Claude Code",
		Long: `Write a "step-challenge" entry under mcpServers in each host's config file.

Other keys and other servers in the file are left untouched. A file that is
not valid JSON is renamed to <file>.backup before a fresh one is written.
Restart the host afterwards so it picks up the new server.`,
		Example: `  step-bridge install
  step-bridge install --host claude-desktop --host cursor
  step-bridge install --host claude-code --remove`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInstall(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.hosts, "host", []string{string(mcp.HostClaudeDesktop)}, "host to configure (claude-desktop, cursor, claude-code); repeatable")
	cmd.Flags().StringVar(&opts.name, "name", defaultServerName, "server name under mcpServers")
	cmd.Flags().StringVar(&opts.command, "command", "", "command the host runs (default: this executable)")
	cmd.Flags().StringVar(&opts.file, "file", "", "config file to edit instead of the host default (single host only)")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "remove the server entry instead of writing it")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "skip checking the token against the service")
	return cmd
}

func (a *app) runInstall(ctx context.Context, opts *installOptions) error {
	out := repl.NewOutput(a.stdout)

	if opts.file != "" && len(opts.hosts) > 1 {
		return fmt.Errorf("--file can only be used with a single --host")
	}
	hosts := make([]mcp.Host, 0, len(opts.hosts))
	for _, h := range opts.hosts {
		host, err := mcp.ParseHost(h)
		if err != nil {
			return err
		}
		hosts = append(hosts, host)
	}

	var entry mcp.ServerConfig
	if !opts.remove {
		if a.cfg.Token == "" && a.interactive() {
			token, err := repl.AskSecret(a.stdin, a.stdout, "Step Challenge token: ")
			if err != nil {
				return err
			}
			a.cfg.Token = token
		}
		if err := a.cfg.Validate(); err != nil {
			return err
		}

		if !opts.noVerify {
			actions := repl.NewActions(a.apiClient(), out)
			if err := actions.Verify(ctx); err != nil {
				out.Warning("The token could not be verified; installing anyway.")
			}
		}

		command := opts.command
		if command == "" {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}
			command = exe
		}
		entry = serverEntry(a.cfg, command)
	}

	var result *multierror.Error
	for _, host := range hosts {
		path := opts.file
		if path == "" {
			p, err := mcp.HostPath(host, runtime.GOOS)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", host, err))
				continue
			}
			path = p
		}

		var err error
		if opts.remove {
			err = a.uninstallFrom(out, host, path, opts.name)
		} else {
			err = a.installInto(out, host, path, opts.name, entry)
		}
		if err != nil {
			out.Check(string(host), false, err.Error())
			result = multierror.Append(result, fmt.Errorf("%s: %w", host, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	if !opts.remove {
		out.Println()
		out.Info("Restart the host application to load the %q server.", opts.name)
	}
	return nil
}

func (a *app) installInto(out *repl.Output, host mcp.Host, path, name string, entry mcp.ServerConfig) error {
	hc, err := mcp.LoadHostConfig(path)
	if err != nil {
		return err
	}
	if hc.BackupPath != "" {
		out.Warning("%s was not valid JSON; moved to %s", path, hc.BackupPath)
	}
	if err := hc.Upsert(name, entry); err != nil {
		return err
	}
	if err := hc.Save(); err != nil {
		return err
	}
	a.logger.Debug("host config written", "host", string(host), "path", path)
	out.Check(string(host), true, path)
	return nil
}

func (a *app) uninstallFrom(out *repl.Output, host mcp.Host, path, name string) error {
	hc, err := mcp.LoadHostConfig(path)
	if err != nil {
		return err
	}
	if !hc.Remove(name) {
		out.Check(string(host), true, "not installed")
		return nil
	}
	if err := hc.Save(); err != nil {
		return err
	}
	out.Check(string(host), true, "removed from "+path)
	return nil
}

// serverEntry is the mcpServers entry that runs this binary as a bridge.
// Only settings that differ from the defaults are written to env.
func serverEntry(cfg *config.Config, command string) mcp.ServerConfig {
	env := map[string]string{"STEP_TOKEN": cfg.Token}
	if cfg.BaseURL != config.DefaultBaseURL {
		env["STEP_CHALLENGE_URL"] = cfg.BaseURL
	}
	if cfg.EndpointPath != config.DefaultEndpointPath {
		env["STEP_ENDPOINT_PATH"] = cfg.EndpointPath
	}
	if cfg.TokenInParams {
		env["STEP_TOKEN_IN_PARAMS"] = strconv.FormatBool(true)
	}
	if cfg.ToolsSource == config.ToolsSourceRemote {
		env["STEP_TOOLS_SOURCE"] = cfg.ToolsSource
	}
	return mcp.ServerConfig{
		Command: command,
		Args:    []string{"bridge"},
		Env:     env,
	}
}
