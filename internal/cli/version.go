package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lostlink/matcher/internal/version"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "lostfound-matcher "+version.String())
			return err
		},
	})
}
