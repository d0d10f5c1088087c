package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	snapshotsHistory int
	snapshotsOutput  string
)

// snapshotsCmd shows what the snapshot store holds
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Show stored snapshots and recent changes",
	RunE:  runSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.Flags().IntVar(&snapshotsHistory, "history", 10, "Number of recent changes to show (0 to hide)")
	snapshotsCmd.Flags().StringVarP(&snapshotsOutput, "output", "o", outputText, "Output format (text, json)")
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	if err := checkOutput(snapshotsOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rt := newRuntime(cmd)
	defer rt.Close()
	store, err := rt.snapshotStore()
	if err != nil {
		return err
	}
	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	history, err := store.History(ctx, snapshotsHistory)
	if err != nil {
		return err
	}

	if snapshotsOutput == outputJSON {
		return writeJSON(out, map[string]any{"collections": info, "history": history})
	}

	fmt.Fprintf(out, "Snapshot store: %s\n\n", rt.cfg.Snapshot.Path)
	if len(info) == 0 {
		fmt.Fprintln(out, "No snapshots yet; run 'secboard sync', 'secboard import' or 'secboard seed'")
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tITEMS\tSOURCE\tFETCHED")
		for _, c := range info {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Kind, c.Count, c.Source, c.FetchedAt.Local().Format("2006-01-02 15:04:05"))
		}
		tw.Flush()
	}

	if snapshotsHistory <= 0 || len(history) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent changes:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, h := range history {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%s\n", h.CreatedAt.Local().Format("2006-01-02 15:04:05"), h.Action, h.Kind, h.Count, h.Source)
	}
	return tw.Flush()
}
