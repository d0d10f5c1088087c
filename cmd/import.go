package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secboard/internal/bus"
	"github.com/Ashfaaq98/secboard/internal/model"
	"github.com/Ashfaaq98/secboard/internal/snapshot"
)

var (
	importKind     string
	importWatchDir string
	importNoScan   bool
	importDebounce time.Duration
)

// importCmd loads export files into the snapshot store
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import export files into the snapshot store",
	Long: `Import loads a dashboard export (.json array, .jsonl or .yaml) and stores
it as the snapshot of its collection. The collection is taken from --kind or
from the file name prefix (threats.json, vulnerabilities-2024.jsonl).

With --watch, every matching file already in the directory is imported and the
directory is watched for new or rewritten files until interrupted.

Examples:
  secboard import ./exports/tickets.json
  secboard import dump.yaml --kind members
  secboard import --watch ./exports`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importKind, "kind", "", "Collection of the file (default from the file name)")
	importCmd.Flags().StringVar(&importWatchDir, "watch", "", "Directory to watch for export files")
	importCmd.Flags().BoolVar(&importNoScan, "no-scan", false, "With --watch, skip files already in the directory")
	importCmd.Flags().DurationVar(&importDebounce, "debounce", 250*time.Millisecond, "With --watch, wait this long after the last write before importing")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importWatchDir == "" && len(args) == 0 {
		return errors.New("pass a file to import or --watch <dir>")
	}
	if importWatchDir != "" && len(args) > 0 {
		return errors.New("pass either a file or --watch, not both")
	}

	rt := newRuntime(cmd)
	defer rt.Close()
	store, err := rt.snapshotStore()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if importWatchDir != "" {
		return watchImports(cmd, rt, store)
	}

	path := args[0]
	var kind model.Kind
	if importKind != "" {
		kind, err = model.ParseKind(importKind)
	} else {
		kind, err = snapshot.KindFromFilename(path)
	}
	if err != nil {
		return fmt.Errorf("cannot tell the collection of %s (use --kind): %w", path, err)
	}
	raw, err := snapshot.LoadFile(path)
	if err != nil {
		return err
	}
	source := "file:" + filepath.Base(path)
	if err := store.SaveRaw(cmd.Context(), kind, raw, source); err != nil {
		return err
	}
	rt.publish(cmd.Context(), kind, bus.ActionSaved, len(raw), source)
	fmt.Fprintf(out, "✓ Imported %d %s from %s\n", len(raw), kind, path)
	return nil
}

func watchImports(cmd *cobra.Command, rt *runtimeEnv, store *snapshot.Store) error {
	out := cmd.OutOrStdout()
	importer := store.Importer(func(ctx context.Context, kind model.Kind, count int, source string) {
		rt.publish(ctx, kind, bus.ActionSaved, count, source)
		fmt.Fprintf(out, "✓ Imported %d %s from %s\n", count, kind, source)
	})
	w := snapshot.NewWatcher(snapshot.WatchOptions{
		Dir:      importWatchDir,
		Scan:     !importNoScan,
		Debounce: importDebounce,
		Logger:   rt.logger("[Import] "),
	}, func(ctx context.Context, kind model.Kind, path string) error {
		if err := importer(ctx, kind, path); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			return err
		}
		return nil
	})

	fmt.Fprintf(out, "Watching %s for %v (Ctrl+C to stop)\n", importWatchDir, snapshot.Patterns)
	err := w.Run(cmd.Context())
	imported, failed := w.Stats()
	fmt.Fprintf(out, "Imported %d files, %d failed\n", imported, failed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
