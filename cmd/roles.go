package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maesker/Master-Thesis/harness"
)

// rolesCmd prints the resolved role → address mapping.
var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Print the resolved node roles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		roles, err := cfg.resolveRoles()
		if err != nil {
			return err
		}
		return printRoles(cmd.OutOrStdout(), roles)
	},
}

func printRoles(w io.Writer, roles map[int]harness.NodeRole) error {
	for _, r := range sortedRoles(roles) {
		if _, err := fmt.Fprintf(w, "ds%d\t%s\n", r.ID, r.Address); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
