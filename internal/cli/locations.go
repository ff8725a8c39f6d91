package cli

import (
	"fmt"
	"strings"

	"careerlaunch/internal/types"

	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations [country]",
	Short: "List the countries, or one country's states, available for job search",
	Args:  cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return types.Countries(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, country := range types.Countries() {
				states, _ := types.StatesOf(country)
				_, _ = fmt.Fprintf(out, "%s (%d)\n", country, len(states))
			}
			return nil
		}

		states, ok := types.StatesOf(args[0])
		if !ok {
			return fmt.Errorf("unknown country %q, known countries: %s", args[0], strings.Join(types.Countries(), ", "))
		}
		for _, state := range states {
			_, _ = fmt.Fprintln(out, state)
		}
		return nil
	},
}
