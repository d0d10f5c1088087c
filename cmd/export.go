package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportFlags = newFilterFlags()
	exportOut   string
	exportAll   bool
)

// exportCmd writes a derived view as JSON
var exportCmd = &cobra.Command{
	Use:   "export <kind>",
	Short: "Write a filtered view of a collection as JSON",
	Long: `Export writes the derived view (items, range label, summary and breakdown)
as JSON. Files are replaced atomically.

Examples:
  # Every open critical vulnerability
  secboard export vulnerabilities --severity Critical --status Open --all --out critical.json

  # Current page to stdout
  secboard export tickets --page 3`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportFlags.register(exportCmd, true)
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "Output file (- for stdout)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every matching item instead of one page")
}

func runExport(cmd *cobra.Command, args []string) error {
	c, err := collectionFor(args[0])
	if err != nil {
		return err
	}
	rt := newRuntime(cmd)
	defer rt.Close()

	n, err := c.export(cmd.Context(), rt, exportFlags, exportOut, exportAll, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if exportOut != "" && exportOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d %s to %s\n", n, c.Kind(), exportOut)
	}
	return nil
}
