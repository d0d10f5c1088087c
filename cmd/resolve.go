package cmd

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
)

// threatResolver resolves referenced threat ids in the background and serves
// names to detail renderers while the run is still in flight.
type threatResolver struct {
	fetcher *enrich.Fetcher[model.Threat]
	logger  *log.Logger

	mu    sync.RWMutex
	names map[string]string
}

func newThreatResolver(src enrich.Source[model.Threat], cfg EnrichConfig, onProgress func(enrich.Progress), logger *log.Logger) *threatResolver {
	return &threatResolver{
		fetcher: enrich.NewFetcher[model.Threat](src, enrich.Options{
			Ceiling:    cfg.Ceiling,
			Workers:    cfg.Workers,
			Timeout:    cfg.Timeout,
			OnProgress: onProgress,
			Logger:     logger,
		}),
		logger: logger,
		names:  make(map[string]string),
	}
}

// Lookup returns the resolved name of id.
func (r *threatResolver) Lookup(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// Resolve runs one enrichment pass. A superseded pass is not an error: the
// newer pass owns the result.
func (r *threatResolver) Resolve(ctx context.Context, ids []string) (enrich.Result[model.Threat], bool, error) {
	res, err := r.fetcher.Enrich(ctx, ids)
	if errors.Is(err, enrich.ErrSuperseded) {
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}
	// Each committed run replaces the names: ids that failed this time must
	// not keep a name from an earlier run.
	names := make(map[string]string, len(res.Cache))
	for id, t := range res.Cache {
		names[id] = t.Name
	}
	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	for id, ferr := range res.Errors {
		r.logger.Printf("Threat %s unresolved: %v", id, ferr)
	}
	return res, true, nil
}
