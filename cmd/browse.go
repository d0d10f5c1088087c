package cmd

import (
	"github.com/spf13/cobra"
)

var browseFlags = newFilterFlags()

// browseCmd opens the interactive browser
var browseCmd = &cobra.Command{
	Use:   "browse <kind>",
	Short: "Browse a collection in the terminal UI",
	Long: `Browse opens an interactive list over one collection. Flags set the
initial filters; everything can be changed from the keyboard.

Keys:
  /          search                 s / S      next / previous sort key
  n p g G    next, previous, first and last page
  Tab        next category field    [ ]        move between values
  Space      toggle value           a          reset field to All
  c / Esc    clear filters          t          cycle theme
  r          reload                 q          quit

Vulnerabilities and artifacts resolve their referenced threats in the
background; the status bar shows "loading N/M" until it finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseFlags.register(browseCmd, true)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	c, err := collectionFor(args[0])
	if err != nil {
		return err
	}
	rt := newRuntime(cmd)
	defer rt.Close()
	return c.browse(cmd.Context(), rt, browseFlags)
}
