package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultCeiling = 50
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
)

// ErrSuperseded is returned by a run that was replaced by a newer Enrich call.
// Its partial results are returned but never committed.
var ErrSuperseded = errors.New("enrichment superseded by a newer request")

// ErrFetchTimeout marks a fetch that exceeded Options.Timeout
var ErrFetchTimeout = errors.New("fetch timed out")

// Source resolves one id to its referenced entity
type Source[T any] interface {
	Fetch(ctx context.Context, id string) (T, error)
}

// SourceFunc adapts a function to Source
type SourceFunc[T any] func(ctx context.Context, id string) (T, error)

func (f SourceFunc[T]) Fetch(ctx context.Context, id string) (T, error) { return f(ctx, id) }

// Options controls a Fetcher
type Options struct {
	// Ceiling caps the number of ids processed per run; the rest are ignored.
	Ceiling int
	// Workers bounds concurrent fetches.
	Workers int
	// Timeout applies to each fetch; an expired fetch counts as an error.
	Timeout time.Duration
	// OnProgress is called from worker goroutines after every completed fetch,
	// then once with Done set when a run commits or is served from the memo.
	OnProgress func(Progress)
	Metrics    *Metrics
	Logger     *log.Logger
}

// Progress is a point-in-time view of a run, for "loading N/M" indicators
type Progress struct {
	Generation uint64 `json:"generation"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Done       bool   `json:"done"`
}

func (p Progress) String() string {
	return fmt.Sprintf("loading %d/%d", p.Processed, p.Total)
}

// Result is the outcome of one enrichment run. Cache only holds ids that were
// fetched successfully; failures are listed in Errors.
type Result[T any] struct {
	Generation     uint64           `json:"generation"`
	Requested      int              `json:"requested"`
	Cache          map[string]T     `json:"cache"`
	Errors         map[string]error `json:"-"`
	SuccessCount   int              `json:"successCount"`
	ErrorCount     int              `json:"errorCount"`
	ProcessedCount int              `json:"processedCount"`
	Memoized       bool             `json:"memoized"`
}

func (r Result[T]) clone() Result[T] {
	out := r
	out.Cache = make(map[string]T, len(r.Cache))
	for k, v := range r.Cache {
		out.Cache[k] = v
	}
	out.Errors = make(map[string]error, len(r.Errors))
	for k, v := range r.Errors {
		out.Errors[k] = v
	}
	return out
}

// run holds the state of one generation. Workers only ever write to their own
// run, so a superseded run cannot touch a newer cache.
type run[T any] struct {
	gen       uint64
	total     int
	mu        sync.Mutex
	cache     map[string]T
	errs      map[string]error
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	done      atomic.Bool
}

func (r *run[T]) progress() Progress {
	return Progress{
		Generation: r.gen,
		Processed:  int(r.processed.Load()),
		Total:      r.total,
		Succeeded:  int(r.succeeded.Load()),
		Failed:     int(r.failed.Load()),
		Done:       r.done.Load(),
	}
}

// Fetcher resolves id lists through a Source with bounded concurrency,
// memoization of the last committed id set and cancel-on-supersede.
type Fetcher[T any] struct {
	src    Source[T]
	opts   Options
	logger *log.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *run[T]
	memoKey    string
	memo       *Result[T]
}

// NewFetcher creates a fetcher over src, filling in defaults for zero options.
func NewFetcher[T any](src Source[T], opts Options) *Fetcher[T] {
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Fetcher[T]{src: src, opts: opts, logger: logger}
}

// Batch dedupes ids (first occurrence wins, blanks dropped) and applies the ceiling.
func (f *Fetcher[T]) Batch(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, min(len(ids), f.opts.Ceiling))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if len(out) == f.opts.Ceiling {
			break
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func memoKey(batch []string) string {
	sorted := slices.Clone(batch)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

// Enrich fetches every id in the capped batch. A failed or timed-out fetch is
// counted and never aborts the run. If the same id set was already committed,
// the memoized result is returned without refetching. Starting a new Enrich
// cancels the one in flight; that older call returns ErrSuperseded.
func (f *Fetcher[T]) Enrich(ctx context.Context, ids []string) (Result[T], error) {
	batch := f.Batch(ids)
	key := memoKey(batch)

	f.mu.Lock()
	if f.memo != nil && f.memoKey == key {
		res := f.memo.clone()
		res.Memoized = true
		if f.cancel != nil {
			// An in-flight run for another id set is now stale.
			f.generation++
			f.cancel()
			f.cancel = nil
		}
		hit := finishedRun[T](f.generation, res)
		f.current = hit
		f.mu.Unlock()
		f.report(hit)
		f.opts.Metrics.memoHit()
		f.logger.Printf("Enrichment for %d ids served from memo (generation %d)", len(batch), res.Generation)
		return res, nil
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	r := &run[T]{
		gen:   f.generation,
		total: len(batch),
		cache: make(map[string]T, len(batch)),
		errs:  make(map[string]error),
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.current = r
	f.mu.Unlock()
	defer cancel()

	f.logger.Printf("Enrichment generation %d started: %d ids (requested %d, ceiling %d, workers %d)",
		r.gen, len(batch), len(ids), f.opts.Ceiling, f.opts.Workers)
	started := time.Now()

	var zero T
	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for _, id := range batch {
		if runCtx.Err() != nil {
			// Not launched; count it so processed always reaches total.
			r.record(id, zero, runCtx.Err())
			f.report(r)
			continue
		}
		id := id
		g.Go(func() error {
			v, err := f.fetch(runCtx, id)
			r.record(id, v, err)
			f.report(r)
			return nil
		})
	}
	_ = g.Wait()
	r.done.Store(true)

	res := r.result(len(ids))

	f.mu.Lock()
	if f.generation != r.gen {
		newer := f.generation
		f.mu.Unlock()
		f.logger.Printf("Enrichment generation %d superseded by %d; discarding %d results", r.gen, newer, res.ProcessedCount)
		return res, ErrSuperseded
	}
	f.cancel = nil
	if err := ctx.Err(); err != nil {
		f.mu.Unlock()
		return res, fmt.Errorf("enrichment cancelled: %w", err)
	}
	committed := res.clone()
	f.memo = &committed
	f.memoKey = key
	f.mu.Unlock()

	// Outside the lock: OnProgress may call back into the fetcher.
	f.report(r)
	f.logger.Printf("Enrichment generation %d finished in %v: success=%d errors=%d",
		r.gen, time.Since(started).Round(time.Millisecond), res.SuccessCount, res.ErrorCount)
	return res, nil
}

func (f *Fetcher[T]) fetch(ctx context.Context, id string) (T, error) {
	var zero T
	fctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)

	f.opts.Metrics.begin()
	start := time.Now()
	go func() {
		v, err := f.src.Fetch(fctx, id)
		ch <- outcome{v, err}
	}()

	// A Source that ignores ctx must still not stall the batch.
	select {
	case o := <-ch:
		f.opts.Metrics.end(start, o.err)
		if o.err != nil && errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %v: %s", ErrFetchTimeout, f.opts.Timeout, id)
		}
		return o.v, o.err
	case <-fctx.Done():
		err := fctx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %v: %s", ErrFetchTimeout, f.opts.Timeout, id)
		}
		f.opts.Metrics.end(start, err)
		return zero, err
	}
}

func (r *run[T]) record(id string, v T, err error) {
	r.mu.Lock()
	if err != nil {
		r.errs[id] = err
		r.failed.Add(1)
	} else {
		r.cache[id] = v
		r.succeeded.Add(1)
	}
	r.mu.Unlock()
	r.processed.Add(1)
}

func (r *run[T]) result(requested int) Result[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := Result[T]{
		Generation:     r.gen,
		Requested:      requested,
		Cache:          r.cache,
		Errors:         r.errs,
		SuccessCount:   len(r.cache),
		ErrorCount:     len(r.errs),
		ProcessedCount: len(r.cache) + len(r.errs),
	}
	return res.clone()
}

// finishedRun describes a memoized result as a completed run of generation gen.
func finishedRun[T any](gen uint64, res Result[T]) *run[T] {
	r := &run[T]{gen: gen, total: res.ProcessedCount}
	r.processed.Store(int64(res.ProcessedCount))
	r.succeeded.Store(int64(res.SuccessCount))
	r.failed.Store(int64(res.ErrorCount))
	r.done.Store(true)
	return r
}

func (f *Fetcher[T]) report(r *run[T]) {
	if f.opts.OnProgress != nil {
		f.opts.OnProgress(r.progress())
	}
}

// Progress returns the progress of the latest run (zero before the first run).
func (f *Fetcher[T]) Progress() Progress {
	f.mu.Lock()
	r := f.current
	f.mu.Unlock()
	if r == nil {
		return Progress{}
	}
	return r.progress()
}

// Current returns the last committed result, if any.
func (f *Fetcher[T]) Current() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memo == nil {
		return Result[T]{}, false
	}
	return f.memo.clone(), true
}

// Reset cancels any run in flight and drops the memoized result, like a remount.
func (f *Fetcher[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	f.memo = nil
	f.memoKey = ""
}
