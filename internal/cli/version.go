package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"step-bridge/internal/repl"
	"step-bridge/internal/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := repl.NewOutput(a.stdout)
			info := version.Get()
			if asJSON {
				data, err := json.Marshal(info)
				if err != nil {
					return err
				}
				out.JSON(data)
				return nil
			}
			out.Printf("step-bridge %s\n", version.String())
			out.Printf("  go:     %s\n", info.GoVersion)
			if info.Date != "" {
				out.Printf("  built:  %s\n", info.Date)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
