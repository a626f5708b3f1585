package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// stepsCmd lists the catalog in execution order with the current result of each check.
var stepsCmd = &cobra.Command{
	Use:                "steps",
	Short:              "List provisioning steps and whether each is already satisfied",
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver(cmd)
		if err != nil {
			return err
		}
		// Step checks may log at debug level; the table goes to stdout on its own.
		d.Stdout = cmd.ErrOrStderr()

		statuses, err := d.Describe(cmd.Context())
		if err != nil {
			return err
		}

		ok := color.New(color.FgGreen).SprintFunc()
		missing := color.New(color.FgYellow).SprintFunc()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tPOLICY\tSTATE")
		for _, s := range statuses {
			state := missing("missing")
			if s.Satisfied {
				state = ok("satisfied")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Policy, state)
		}
		return w.Flush()
	},
}
