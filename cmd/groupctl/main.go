// Command groupctl groups a roster file without the server.
//
//	groupctl group classe.csv --group-size 3 --max-spread 8 --out classe_groupes.csv
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "groupctl",
		Short:        "Split a student roster into weight-banded groups",
		SilenceUsage: true,
	}
	root.AddCommand(newGroupCmd())
	return root
}
