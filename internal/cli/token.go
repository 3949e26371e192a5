package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"step-bridge/internal/admin"
	"step-bridge/internal/repl"
)

func newTokenCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage MCP tokens through the admin API",
		Long: `List and create MCP tokens. Both sign in with a magic link: the link is
mailed to --email and you paste it back at the prompt.`,
	}
	cmd.PersistentFlags().StringVar(&email, "email", "", "admin email address")

	list := &cobra.Command{
		Use:   "list",
		Short: "List MCP tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := a.adminLogin(cmd.Context(), email)
			if err != nil {
				return err
			}
			tokens, err := ac.ListTokens(cmd.Context())
			if err != nil {
				return err
			}
			out := repl.NewOutput(a.stdout)
			out.Heading(fmt.Sprintf("MCP tokens (%d)", len(tokens)))
			for _, t := range tokens {
				out.Printf("  %-24s %-24s %-20s %-12s %s\n", t.Name, t.Masked(), t.UserName, t.Permissions, t.ExpiresAt)
			}
			return nil
		},
	}

	var req admin.CreateTokenRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an MCP token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTokenCreate(cmd.Context(), email, req)
		},
	}
	create.Flags().Int64Var(&req.UserID, "user-id", 0, "user to mint the token for (prompted when unset)")
	create.Flags().StringVar(&req.Name, "name", "", "token name (default \"Claude Desktop\")")
	create.Flags().StringVar(&req.Permissions, "permissions", admin.DefaultPermissions, "token permissions")
	create.Flags().StringVar(&req.Scopes, "scopes", admin.DefaultScopes, "comma separated scopes")
	create.Flags().IntVar(&req.ExpiresDays, "days", admin.DefaultExpiryDays, "days until the token expires")

	cmd.AddCommand(list, create)
	return cmd
}

// adminLogin signs in with a magic link. It needs a terminal for the prompts.
func (a *app) adminLogin(ctx context.Context, email string) (*admin.Client, error) {
	if !a.interactive() {
		return nil, fmt.Errorf("token commands need an interactive terminal")
	}
	ac, err := admin.New(a.cfg.BaseURL, a.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	out := repl.NewOutput(a.stdout)

	if email == "" {
		if email, err = repl.Ask(a.stdin, a.stdout, "Admin email: ", ""); err != nil {
			return nil, err
		}
	}
	if err := ac.SendMagicLink(ctx, email); err != nil {
		return nil, err
	}
	out.Info("Magic link sent to %s", email)

	link, err := repl.Ask(a.stdin, a.stdout, "Paste the magic link here: ", "")
	if err != nil {
		return nil, err
	}
	if err := ac.Authenticate(ctx, link); err != nil {
		return nil, err
	}
	out.Success("Signed in")
	return ac, nil
}

func (a *app) runTokenCreate(ctx context.Context, email string, req admin.CreateTokenRequest) error {
	ac, err := a.adminLogin(ctx, email)
	if err != nil {
		return err
	}
	out := repl.NewOutput(a.stdout)

	if req.UserID == 0 {
		users, err := ac.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return fmt.Errorf("no users found")
		}
		out.Heading("Users")
		for i, u := range users {
			out.Printf("  %d. %s (%s)\n", i+1, u.Name, u.Email)
		}
		answer, err := repl.Ask(a.stdin, a.stdout, "Select user number: ", "1")
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(users) {
			return fmt.Errorf("invalid selection %q", answer)
		}
		req.UserID = users[n-1].ID
	}
	if req.Name == "" {
		if req.Name, err = repl.Ask(a.stdin, a.stdout, "Token name [Claude Desktop]: ", "Claude Desktop"); err != nil {
			return err
		}
	}

	tok, err := ac.CreateToken(ctx, req)
	if err != nil {
		return err
	}
	out.Success("Created token %q", tok.Name)
	out.Printf("\n  %s\n\n", tok.Token)
	out.Warning("This is the only time the full token is shown.")
	out.Muted("Save it with: step-bridge login")
	return nil
}
