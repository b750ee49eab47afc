package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLanguagesCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported target languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := deps.Languages()
			if err != nil {
				return fmt.Errorf("failed to load language table: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			def := table.Default()
			for _, l := range table.Languages() {
				marker := ""
				if l.Name == def.Name {
					marker = "(default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Name, l.Code, marker)
			}
			return w.Flush()
		},
	}
}
