package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
)

var (
	enrichIDs         []string
	enrichFromRefs    bool
	enrichLoad        loadOptions
	enrichMetricsAddr string
	enrichWait        bool
	enrichOutput      string
)

// enrichCmd resolves threat ids concurrently
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve referenced threats concurrently",
	Long: `Enrich resolves threat ids through the dashboard API (with the optional
Redis cache in front) or the threats snapshot when no API is configured.

Ids are de-duplicated and capped at --ceiling; at most --workers fetches run at
once and each is bounded by --timeout. A failed fetch is counted and never
aborts the run.

Examples:
  # Every threat referenced by vulnerabilities and artifacts
  secboard enrich --from-vulnerabilities

  # Specific ids, with metrics on :9090 kept up after the run
  secboard enrich --ids th-1,th-2 --metrics-addr :9090 --wait`,
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	fs := enrichCmd.Flags()
	fs.StringSliceVar(&enrichIDs, "ids", nil, "Threat ids to resolve")
	fs.BoolVar(&enrichFromRefs, "from-vulnerabilities", false, "Resolve the threats referenced by vulnerabilities and artifacts")
	fs.StringVar(&enrichLoad.source, "source", sourceAuto, "Where to read vulnerabilities and artifacts: api, snapshot or auto")
	fs.Int("ceiling", 50, "Maximum number of ids resolved per run")
	fs.Int("workers", 8, "Concurrent fetches")
	fs.Duration("timeout", 10*time.Second, "Timeout per fetch")
	fs.StringVar(&enrichMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.BoolVar(&enrichWait, "wait", false, "Keep serving metrics after the run until interrupted")
	fs.StringVarP(&enrichOutput, "output", "o", outputText, "Output format (text, json)")

	viper.BindPFlag("enrich.ceiling", fs.Lookup("ceiling"))
	viper.BindPFlag("enrich.workers", fs.Lookup("workers"))
	viper.BindPFlag("enrich.timeout", fs.Lookup("timeout"))
}

func runEnrich(cmd *cobra.Command, args []string) error {
	if err := checkOutput(enrichOutput); err != nil {
		return err
	}
	if len(enrichIDs) == 0 && !enrichFromRefs {
		return errors.New("nothing to resolve: pass --ids or --from-vulnerabilities")
	}
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	rt := newRuntime(cmd)
	defer rt.Close()
	logger := rt.logger("[Enrich] ")

	ids, err := enrichTargets(ctx, rt)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No threat ids to resolve")
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics, err := enrich.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if enrichMetricsAddr != "" {
		stop, err := serveMetrics(enrichMetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Fprintf(errOut, "Serving metrics on %s/metrics\n", enrichMetricsAddr)
	}

	src, closer, err := rt.threatSource(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	var mu sync.Mutex
	fetcher := enrich.NewFetcher[model.Threat](src, enrich.Options{
		Ceiling: rt.cfg.Enrich.Ceiling,
		Workers: rt.cfg.Enrich.Workers,
		Timeout: rt.cfg.Enrich.Timeout,
		Metrics: metrics,
		Logger:  logger,
		OnProgress: func(p enrich.Progress) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(errOut, "\r%s", p)
		},
	})

	res, err := fetcher.Enrich(ctx, ids)
	fmt.Fprintln(errOut)
	if err != nil {
		return fmt.Errorf("failed to resolve threats: %w", err)
	}

	if enrichOutput == outputJSON {
		err = writeJSON(out, enrichReport(res))
	} else {
		writeEnrichResult(out, res)
	}
	if err != nil {
		return err
	}

	if enrichMetricsAddr != "" && enrichWait {
		fmt.Fprintln(errOut, "Run finished; serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}

// enrichTargets collects the ids to resolve: explicit ids first, then references.
func enrichTargets(ctx context.Context, rt *runtimeEnv) ([]string, error) {
	ids := append([]string(nil), enrichIDs...)
	if !enrichFromRefs {
		return ids, nil
	}
	src := enrichLoad.resolved(rt.cfg)
	vulns, err := collections[model.KindVulnerability].(collection[model.Vulnerability]).load(ctx, rt, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load vulnerabilities: %w", err)
	}
	artifacts, err := collections[model.KindArtifact].(collection[model.Artifact]).load(ctx, rt, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	return append(ids, model.ThreatRefs(vulns, artifacts)...), nil
}

type enrichJSON struct {
	Requested int                     `json:"requested"`
	Processed int                     `json:"processed"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Memoized  bool                    `json:"memoized"`
	Threats   map[string]model.Threat `json:"threats"`
	Errors    map[string]string       `json:"errors,omitempty"`
}

func enrichReport(res enrich.Result[model.Threat]) enrichJSON {
	report := enrichJSON{
		Requested: res.Requested,
		Processed: res.ProcessedCount,
		Succeeded: res.SuccessCount,
		Failed:    res.ErrorCount,
		Memoized:  res.Memoized,
		Threats:   res.Cache,
	}
	if len(res.Errors) > 0 {
		report.Errors = make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			report.Errors[id] = err.Error()
		}
	}
	return report
}

func writeEnrichResult(w io.Writer, res enrich.Result[model.Threat]) {
	fmt.Fprintf(w, "Resolved %d/%d threats (%d failed, %d requested)\n",
		res.SuccessCount, res.ProcessedCount, res.ErrorCount, res.Requested)
	if skipped := res.Requested - res.ProcessedCount; skipped > 0 {
		fmt.Fprintf(w, "%d ids over the ceiling or repeated were skipped\n", skipped)
	}

	ids := make([]string, 0, len(res.Cache))
	for id := range res.Cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := res.Cache[id]
		fmt.Fprintf(w, "  %s  %s  %s\n", id, t.Name, t.Severity)
	}

	if len(res.Errors) == 0 {
		return
	}
	failed := make([]string, 0, len(res.Errors))
	for id := range res.Errors {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	fmt.Fprintln(w, "Failed:")
	for _, id := range failed {
		fmt.Fprintf(w, "  %s: %v\n", id, res.Errors[id])
	}
}

// serveMetrics exposes reg on addr/metrics and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
