package snapshot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// HandlerFunc is called with the collection kind and the changed file
type HandlerFunc func(ctx context.Context, kind model.Kind, path string) error

// WatchOptions controls a Watcher
type WatchOptions struct {
	Dir string
	// Scan processes files already present before watching.
	Scan bool
	// Debounce coalesces bursts of writes to the same file.
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher imports export files dropped into a directory
type Watcher struct {
	opts    WatchOptions
	handle  HandlerFunc
	mu      sync.Mutex
	pending map[string]time.Time

	imported int
	errors   int
}

func NewWatcher(opts WatchOptions, handle HandlerFunc) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	return &Watcher{opts: opts, handle: handle, pending: make(map[string]time.Time)}
}

// Stats returns how many files were handled and how many failed
func (w *Watcher) Stats() (imported, errors int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imported, w.errors
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	if w.opts.Scan {
		if err := w.scanOnce(ctx); err != nil {
			return err
		}
	}

	w.opts.Logger.Printf("Watching directory: %s", w.opts.Dir)
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			imported, errs := w.Stats()
			w.opts.Logger.Printf("Watch stopping: imported=%d errors=%d", imported, errs)
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !matches(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.mu.Lock()
				w.pending[ev.Name] = time.Now()
				w.mu.Unlock()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.mu.Lock()
				delete(w.pending, ev.Name)
				w.mu.Unlock()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Printf("watch error: %v", err)
		case <-ticker.C:
			for _, path := range w.due(time.Now()) {
				w.process(ctx, path)
			}
		}
	}
}

// due pops files whose last change is older than the debounce window
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !matches(e.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.opts.Dir, e.Name()))
	}
	return nil
}

func (w *Watcher) process(ctx context.Context, path string) {
	kind, err := KindFromFilename(path)
	if err == nil {
		err = w.handle(ctx, kind, path)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.opts.Logger.Printf("error processing %s: %v", path, err)
		w.errors++
		return
	}
	w.imported++
}

// Importer returns a HandlerFunc that loads a file and saves it as the kind's
// snapshot. onSaved, when set, is called after each committed save.
func (s *Store) Importer(onSaved func(ctx context.Context, kind model.Kind, count int, source string)) HandlerFunc {
	return func(ctx context.Context, kind model.Kind, path string) error {
		raw, err := LoadFile(path)
		if err != nil {
			return err
		}
		source := "file:" + filepath.Base(path)
		if err := s.SaveRaw(ctx, kind, raw, source); err != nil {
			return err
		}
		if onSaved != nil {
			onSaved(ctx, kind, len(raw), source)
		}
		return nil
	}
}
