package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listFlags = newFilterFlags()

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List a collection with filters, sorting and paging",
	Long: `List prints one page of a collection: the range label, the items and the
breakdown of the filtered subset.

Kinds: tickets, threats, vulnerabilities, artifacts, members (singular works too).

Examples:
  # Tickets being processed, highest priority first
  secboard list tickets --status Processing --sort priority

  # Second page of threats matching "session"
  secboard list threats --search session --page 2

  # Vulnerabilities from an export file, as JSON
  secboard list vulnerabilities --file vulns.json --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags.register(listCmd, true)
	listCmd.Flags().StringVarP(&listFlags.output, "output", "o", outputText, "Output format (text, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := collectionFor(args[0])
	if err != nil {
		return err
	}
	if err := checkOutput(listFlags.output); err != nil {
		return err
	}
	rt := newRuntime(cmd)
	defer rt.Close()
	return c.list(cmd.Context(), rt, listFlags, cmd.OutOrStdout())
}

func checkOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text or json)", format)
}
