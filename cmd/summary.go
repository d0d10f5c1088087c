package cmd

import (
	"github.com/spf13/cobra"
)

var summaryFlags = newFilterFlags()

// summaryCmd prints the aggregation histograms of a collection
var summaryCmd = &cobra.Command{
	Use:   "summary <kind>",
	Short: "Print summary and breakdown histograms of a collection",
	Long: `Summary counts the whole collection per category (the header statistics)
and, separately, the subset matching the given filters (the breakdown).
The summary never depends on the filters.

Examples:
  secboard summary threats
  secboard summary tickets --priority Critical,High`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryFlags.register(summaryCmd, false)
	summaryCmd.Flags().StringVarP(&summaryFlags.output, "output", "o", outputText, "Output format (text, json)")
}

func runSummary(cmd *cobra.Command, args []string) error {
	c, err := collectionFor(args[0])
	if err != nil {
		return err
	}
	if err := checkOutput(summaryFlags.output); err != nil {
		return err
	}
	rt := newRuntime(cmd)
	defer rt.Close()
	return c.summary(cmd.Context(), rt, summaryFlags, cmd.OutOrStdout())
}
