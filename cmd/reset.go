package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secboard/internal/bus"
	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
	"github.com/Ashfaaq98/secboard/internal/snapshot"
)

var (
	confirmReset  bool
	resetCache    bool
	resetSnapshot bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset [kind...]",
	Short: "Delete snapshots and/or the shared threat cache",
	Long: `Reset deletes stored snapshots (all of them, or the named collections) and
the threat entries cached in Redis.

By default both are reset. Use --snapshots-only or --cache-only to limit it.

WARNING: deleted snapshots can only be restored with sync or import.

Examples:
  # Reset everything (asks for confirmation)
  secboard reset

  # Drop the tickets snapshot without asking
  secboard reset tickets --snapshots-only --yes`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetCache, "cache-only", false, "Reset only the Redis threat cache")
	resetCmd.Flags().BoolVar(&resetSnapshot, "snapshots-only", false, "Reset only snapshots")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	doCache, doSnapshots := !resetSnapshot, !resetCache
	if resetCache && resetSnapshot {
		doCache, doSnapshots = true, true
	}

	kinds := model.Kinds
	if len(args) > 0 {
		kinds = make([]model.Kind, 0, len(args))
		for _, a := range args {
			k, err := model.ParseKind(a)
			if err != nil {
				return err
			}
			kinds = append(kinds, k)
		}
	}

	rt := newRuntime(cmd)
	defer rt.Close()
	if doCache && rt.cfg.Redis.URL == "" {
		if !doSnapshots {
			return fmt.Errorf("redis.url is not set; there is no cache to reset")
		}
		doCache = false
	}

	var targets []string
	if doSnapshots {
		targets = append(targets, "snapshots of "+joinKinds(kinds))
	}
	if doCache {
		targets = append(targets, "cached threats in "+rt.cfg.Redis.URL)
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset && !confirm(cmd.InOrStdin(), out, "Are you sure you want to continue? (y/N): ") {
		fmt.Fprintln(out, "Reset operation cancelled.")
		return nil
	}

	if doCache {
		if err := resetThreatCache(ctx, rt, out); err != nil {
			if !doSnapshots {
				return err
			}
			fmt.Fprintf(out, "Warning: %v\n", err)
		}
	}
	if doSnapshots {
		store, err := rt.snapshotStore()
		if err != nil {
			return err
		}
		deleted, err := resetSnapshots(ctx, store, kinds, out)
		if err != nil {
			return err
		}
		for _, k := range deleted {
			rt.publish(ctx, k, bus.ActionDeleted, 0, "")
		}
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	var response string
	fmt.Fscanln(in, &response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func resetThreatCache(ctx context.Context, rt *runtimeEnv, out io.Writer) error {
	rl, err := enrich.NewRedisLookaside(rt.cfg.Redis.URL, "secboard:threat:", rt.cfg.Redis.TTL, rt.logger("[Enrich] "))
	if err != nil {
		return fmt.Errorf("failed to reset threat cache: %w", err)
	}
	defer rl.Close()
	n, err := rl.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset threat cache: %w", err)
	}
	fmt.Fprintf(out, "✓ Removed %d cached threats\n", n)
	return nil
}

func resetSnapshots(ctx context.Context, store *snapshot.Store, kinds []model.Kind, out io.Writer) ([]model.Kind, error) {
	info, err := store.Info(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[model.Kind]bool, len(info))
	for _, c := range info {
		stored[c.Kind] = true
	}
	var removed []model.Kind
	for _, k := range kinds {
		if !stored[k] {
			continue
		}
		if err := store.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed = append(removed, k)
		fmt.Fprintf(out, "✓ Deleted %s snapshot\n", k)
	}
	if len(removed) == 0 {
		fmt.Fprintln(out, "No snapshots found to remove")
	}
	return removed, nil
}

func joinKinds(kinds []model.Kind) string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
