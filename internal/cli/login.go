package cli

import (
	"context"

	"github.com/spf13/cobra"

	"step-bridge/internal/config"
	"step-bridge/internal/repl"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		file     string
		noVerify bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token to the config file",
		Long: `Store the Step Challenge token, and any non-default --base-url or
--endpoint, in the config file so later commands need no environment.
The token is prompted for when --token and STEP_TOKEN are both unset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.DefaultFile()
			}
			return a.runLogin(cmd.Context(), file, !noVerify)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file to write (default "+config.DefaultFile()+")")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "save without checking the token")
	return cmd
}

func (a *app) runLogin(ctx context.Context, file string, verify bool) error {
	out := repl.NewOutput(a.stdout)

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

	if verify {
		if err := repl.NewActions(a.apiClient(), out).Verify(ctx); err != nil {
			return err
		}
	}

	if err := config.Save(file, a.cfg); err != nil {
		return err
	}
	out.Success("Saved to %s", file)
	return nil
}
