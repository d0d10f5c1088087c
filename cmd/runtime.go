package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secboard/internal/api"
	"github.com/Ashfaaq98/secboard/internal/bus"
	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
	"github.com/Ashfaaq98/secboard/internal/snapshot"
)

// errNoAPI is returned by commands that need the dashboard API when none is configured.
var errNoAPI = errors.New("api.url is not set (use --api-url, SECBOARD_API_URL or .secboard.yaml)")

// runtimeEnv lazily opens the collaborators a command needs and closes them on exit.
type runtimeEnv struct {
	cfg       Config
	logOut    io.Writer
	client    *api.Client
	store     *snapshot.Store
	changeBus bus.Bus
}

func newRuntime(cmd *cobra.Command) *runtimeEnv {
	return &runtimeEnv{cfg: GetConfig(), logOut: cmd.ErrOrStderr()}
}

func (rt *runtimeEnv) logger(prefix string) *log.Logger {
	return newLogger(rt.cfg, rt.logOut, prefix)
}

func (rt *runtimeEnv) apiClient() (*api.Client, error) {
	if rt.client != nil {
		return rt.client, nil
	}
	if rt.cfg.API.URL == "" {
		return nil, errNoAPI
	}
	client, err := api.NewClient(api.Options{
		BaseURL: rt.cfg.API.URL,
		Token:   rt.cfg.API.Token,
		Timeout: rt.cfg.API.Timeout,
		Logger:  rt.logger("[API] "),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	rt.client = client
	return client, nil
}

func (rt *runtimeEnv) snapshotStore() (*snapshot.Store, error) {
	if rt.store != nil {
		return rt.store, nil
	}
	store, err := snapshot.NewStore(rt.cfg.Snapshot.Path, rt.logger("[Snapshot] "))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	rt.store = store
	return store, nil
}

// threatSource resolves threats from the API through the Redis lookaside, or
// from the threats snapshot when no API is configured. The returned closer
// releases the lookaside.
func (rt *runtimeEnv) threatSource(ctx context.Context) (enrich.Source[model.Threat], io.Closer, error) {
	if rt.cfg.API.URL != "" {
		client, err := rt.apiClient()
		if err != nil {
			return nil, nil, err
		}
		logger := rt.logger("[Enrich] ")
		cache := enrich.NewLookaside(rt.cfg.Redis.URL, "secboard:threat:", rt.cfg.Redis.TTL, logger)
		return enrich.NewCachedSource[model.Threat](api.ThreatSource{Client: client}, cache, logger), cache, nil
	}

	store, err := rt.snapshotStore()
	if err != nil {
		return nil, nil, err
	}
	var threats []model.Threat
	if err := store.Load(ctx, model.KindThreat, &threats); err != nil {
		return nil, nil, fmt.Errorf("failed to load threats snapshot: %w", err)
	}
	byID := make(map[string]model.Threat, len(threats))
	for _, t := range threats {
		byID[t.ID] = t
	}
	src := enrich.SourceFunc[model.Threat](func(_ context.Context, id string) (model.Threat, error) {
		t, ok := byID[id]
		if !ok {
			return model.Threat{}, fmt.Errorf("threat %s: %w", id, api.ErrNotFound)
		}
		return t, nil
	})
	return src, enrich.NullLookaside{}, nil
}

// changes returns the snapshot change bus (Redis when configured, a no-op otherwise).
func (rt *runtimeEnv) changes() bus.Bus {
	if rt.changeBus == nil {
		rt.changeBus = bus.NewBus(rt.cfg.Redis.URL, rt.logger("[Bus] "))
	}
	return rt.changeBus
}

// publish announces a snapshot change. Failures only reach the debug log:
// the snapshot itself is already committed.
func (rt *runtimeEnv) publish(ctx context.Context, kind model.Kind, action string, count int, source string) {
	err := rt.changes().PublishChange(ctx, bus.Change{Kind: kind, Action: action, Count: count, Source: source})
	if err != nil {
		rt.logger("[Bus] ").Printf("Failed to publish %s %s: %v", kind, action, err)
	}
}

func (rt *runtimeEnv) Close() {
	if rt.changeBus != nil {
		rt.changeBus.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

// setupFileLogger opens logs/secboard-<name>.log for components that cannot
// write to stderr while the terminal UI owns the screen.
func setupFileLogger(name string) *os.File {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil
	}
	logPath := filepath.Join(logDir, "secboard-"+name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return logFile
}
