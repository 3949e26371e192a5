package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"step-bridge/internal/mcp"
	"step-bridge/internal/repl"
	"step-bridge/internal/version"
)

type doctorOptions struct {
	host string
	name string
	file string
	call string
}

func newDoctorCmd(a *app) *cobra.Command {
	opts := &doctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Launch the installed server the way a host would and check it",
		Long: `Read the host's config file, start the configured server over stdio and
run the MCP handshake against it: initialize, tools/list and ping.
With --call, one tool is invoked as well.`,
		Example: `  step-bridge doctor
  step-bridge doctor --host cursor --call get_user_profile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDoctor(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", string(mcp.HostClaudeDesktop), "host whose config to read")
	cmd.Flags().StringVar(&opts.name, "name", defaultServerName, "server name under mcpServers")
	cmd.Flags().StringVar(&opts.file, "file", "", "config file to read instead of the host default")
	cmd.Flags().StringVar(&opts.call, "call", "", "also call this tool with no arguments")
	return cmd
}

func (a *app) runDoctor(ctx context.Context, opts *doctorOptions) error {
	out := repl.NewOutput(a.stdout)
	out.Heading("Step Challenge MCP doctor")

	path := opts.file
	if path == "" {
		host, err := mcp.ParseHost(opts.host)
		if err != nil {
			return err
		}
		if path, err = mcp.HostPath(host, runtime.GOOS); err != nil {
			return err
		}
	}

	hc, err := mcp.LoadHostConfig(path)
	if err != nil {
		out.Check("config file", false, err.Error())
		return err
	}
	sc, ok, err := hc.Server(opts.name)
	switch {
	case err != nil:
		out.Check("config file", false, err.Error())
		return err
	case !ok:
		out.Check("config file", false, fmt.Sprintf("no %q server in %s", opts.name, path))
		return fmt.Errorf("server %q is not installed; run step-bridge install", opts.name)
	}
	out.Check("config file", true, path)

	c, err := mcp.Start(opts.name, sc)
	if err != nil {
		out.Check("start", false, err.Error())
		return err
	}
	out.Check("start", true, strings.TrimSpace(sc.Command+" "+strings.Join(sc.Args, " ")))
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*a.cfg.Timeout)
	defer cancel()

	if err := checkServer(ctx, out, c, opts.call); err != nil {
		c.Kill()
		if tail := strings.TrimSpace(c.Stderr()); tail != "" {
			out.Println()
			out.Warning("Server stderr:")
			out.Muted("%s", tail)
		}
		return err
	}

	out.Println()
	out.Success("%s is ready", opts.name)
	return nil
}

func checkServer(ctx context.Context, out *repl.Output, c *mcp.Client, call string) error {
	info, err := c.Initialize(ctx, "step-bridge-doctor", version.Version)
	if err != nil {
		out.Check("initialize", false, err.Error())
		return err
	}
	out.Check("initialize", true, fmt.Sprintf("%s %s (protocol %s)", info.ServerInfo.Name, info.ServerInfo.Version, info.ProtocolVersion))

	tools, err := c.ListTools(ctx)
	if err != nil {
		out.Check("tools/list", false, err.Error())
		return err
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	out.Check("tools/list", true, strings.Join(names, ", "))

	if err := c.Ping(ctx); err != nil {
		out.Check("ping", false, err.Error())
		return err
	}
	out.Check("ping", true, "")

	if call == "" {
		return nil
	}
	res, err := c.CallTool(ctx, call, nil)
	if err != nil {
		out.Check(call, false, err.Error())
		return err
	}
	if res.IsError {
		out.Check(call, false, res.Text())
		return errors.New(res.Text())
	}
	out.Check(call, true, "")
	out.JSON(json.RawMessage(res.Text()))
	return nil
}
