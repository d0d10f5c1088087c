package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/natefinch/atomic"

	"github.com/Ashfaaq98/secboard/internal/api"
	"github.com/Ashfaaq98/secboard/internal/bus"
	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
	"github.com/Ashfaaq98/secboard/internal/snapshot"
	"github.com/Ashfaaq98/secboard/internal/ui"
	"github.com/Ashfaaq98/secboard/internal/view"
)

// collectionOps is what the commands need from a collection, independent of its item type.
type collectionOps interface {
	Kind() model.Kind
	list(ctx context.Context, rt *runtimeEnv, f *filterFlags, w io.Writer) error
	summary(ctx context.Context, rt *runtimeEnv, f *filterFlags, w io.Writer) error
	export(ctx context.Context, rt *runtimeEnv, f *filterFlags, out string, all bool, stdout io.Writer) (int, error)
	browse(ctx context.Context, rt *runtimeEnv, f *filterFlags) error
}

// collection binds one item type to its profile, API call and renderers
type collection[T any] struct {
	kind    model.Kind
	profile func() *view.Profile[T]
	fetch   func(c *api.Client, ctx context.Context) ([]T, error)
	columns func() []ui.Column[T]
	detail  func(lookup ui.ThreatLookup) func(T) string
	// refs lists referenced threat ids; nil for collections without references.
	refs func(items []T) []string
}

var collections = map[model.Kind]collectionOps{
	model.KindTicket: collection[model.Ticket]{
		kind:    model.KindTicket,
		profile: view.TicketProfile,
		fetch:   (*api.Client).ListTickets,
		columns: ui.TicketColumns,
		detail:  func(ui.ThreatLookup) func(model.Ticket) string { return ui.TicketDetail },
	},
	model.KindThreat: collection[model.Threat]{
		kind:    model.KindThreat,
		profile: view.ThreatProfile,
		fetch:   (*api.Client).ListThreats,
		columns: ui.ThreatColumns,
		detail:  func(ui.ThreatLookup) func(model.Threat) string { return ui.ThreatDetail },
	},
	model.KindVulnerability: collection[model.Vulnerability]{
		kind:    model.KindVulnerability,
		profile: view.VulnerabilityProfile,
		fetch:   (*api.Client).ListVulnerabilities,
		columns: ui.VulnerabilityColumns,
		detail:  ui.VulnerabilityDetail,
		refs:    func(items []model.Vulnerability) []string { return model.ThreatRefs(items, nil) },
	},
	model.KindArtifact: collection[model.Artifact]{
		kind:    model.KindArtifact,
		profile: view.ArtifactProfile,
		fetch:   (*api.Client).ListArtifacts,
		columns: ui.ArtifactColumns,
		detail:  ui.ArtifactDetail,
		refs:    func(items []model.Artifact) []string { return model.ThreatRefs(nil, items) },
	},
	model.KindMember: collection[model.Member]{
		kind:    model.KindMember,
		profile: view.MemberProfile,
		fetch:   (*api.Client).ListMembers,
		columns: ui.MemberColumns,
		detail:  func(ui.ThreatLookup) func(model.Member) string { return ui.MemberDetail },
	},
}

func collectionFor(name string) (collectionOps, error) {
	kind, err := model.ParseKind(name)
	if err != nil {
		return nil, err
	}
	c, ok := collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownKind, name)
	}
	return c, nil
}

func (c collection[T]) Kind() model.Kind { return c.kind }

// load reads the raw collection from the selected source.
func (c collection[T]) load(ctx context.Context, rt *runtimeEnv, src loadOptions) ([]T, error) {
	switch src.source {
	case sourceAPI:
		client, err := rt.apiClient()
		if err != nil {
			return nil, err
		}
		return c.fetch(client, ctx)

	case sourceSnapshot:
		store, err := rt.snapshotStore()
		if err != nil {
			return nil, err
		}
		var items []T
		if err := store.Load(ctx, c.kind, &items); err != nil {
			if errors.Is(err, snapshot.ErrNoSnapshot) {
				return nil, fmt.Errorf("no %s snapshot in %s; run 'secboard sync' or 'secboard import' first: %w", c.kind, rt.cfg.Snapshot.Path, err)
			}
			return nil, err
		}
		return items, nil

	case sourceFile:
		if src.file == "" {
			return nil, errors.New("--file is required with --source file")
		}
		return decodeFile[T](src.file)
	}
	return nil, fmt.Errorf("unknown source %q (want api, snapshot, file or auto)", src.source)
}

func decodeFile[T any](path string) ([]T, error) {
	raw, err := snapshot.LoadFile(path)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raw))
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("failed to decode item %d of %s: %w", i+1, path, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (c collection[T]) engine(rt *runtimeEnv, items []T) *view.Engine[T] {
	e := view.NewEngine(c.profile(), rt.cfg.View.Locale)
	e.Load(items)
	return e
}

// derive loads the collection and derives the view selected by f.
func (c collection[T]) derive(ctx context.Context, rt *runtimeEnv, f *filterFlags) (view.DerivedView[T], *view.FilterState, error) {
	st, err := buildState(c.profile(), f, rt.cfg.View.PageSize)
	if err != nil {
		return view.DerivedView[T]{}, nil, err
	}
	items, err := c.load(ctx, rt, f.resolved(rt.cfg))
	if err != nil {
		return view.DerivedView[T]{}, nil, err
	}
	return c.engine(rt, items).Derive(st), st, nil
}

func (c collection[T]) list(ctx context.Context, rt *runtimeEnv, f *filterFlags, w io.Writer) error {
	v, st, err := c.derive(ctx, rt, f)
	if err != nil {
		return err
	}
	if f.output == outputJSON {
		return writeJSON(w, v)
	}
	return writeView(w, v, c.columns(), st.Active(), terminalWidth())
}

func (c collection[T]) summary(ctx context.Context, rt *runtimeEnv, f *filterFlags, w io.Writer) error {
	v, st, err := c.derive(ctx, rt, f)
	if err != nil {
		return err
	}
	if f.output == outputJSON {
		return writeJSON(w, struct {
			Kind          model.Kind      `json:"kind"`
			Total         int             `json:"total"`
			TotalMatching int             `json:"totalMatching"`
			Summary       view.Aggregates `json:"summary"`
			Breakdown     view.Aggregates `json:"breakdown"`
		}{c.kind, v.Total, v.TotalMatching, v.Summary, v.Breakdown})
	}
	fmt.Fprintf(w, "%s summary (%d items):\n", c.kind, v.Total)
	writeHistograms(w, v.Summary)
	if len(v.Breakdown.Histograms) > 0 {
		if st.Active() {
			fmt.Fprintf(w, "\nBreakdown (%d matching filters):\n", v.TotalMatching)
		} else {
			fmt.Fprintf(w, "\nBreakdown (all %d items):\n", v.TotalMatching)
		}
		writeHistograms(w, v.Breakdown)
	}
	return nil
}

// export writes the derived view as JSON to out ("-" for stdout). The file is
// replaced atomically so readers never see a partial export.
func (c collection[T]) export(ctx context.Context, rt *runtimeEnv, f *filterFlags, out string, all bool, stdout io.Writer) (int, error) {
	st, err := buildState(c.profile(), f, rt.cfg.View.PageSize)
	if err != nil {
		return 0, err
	}
	items, err := c.load(ctx, rt, f.resolved(rt.cfg))
	if err != nil {
		return 0, err
	}
	if all {
		st.PageSize = max(len(items), 1)
		st.SetPage(0)
	}
	v := c.engine(rt, items).Derive(st)

	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return 0, fmt.Errorf("failed to encode export: %w", err)
	}
	if out == "" || out == "-" {
		_, err := stdout.Write(buf.Bytes())
		return len(v.Items), err
	}
	if err := atomic.WriteFile(out, &buf); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return len(v.Items), nil
}

func (c collection[T]) browse(ctx context.Context, rt *runtimeEnv, f *filterFlags) error {
	if !isTerminal() || !canInitializeTUI() {
		return errors.New("browse needs an interactive terminal; use 'secboard list' instead")
	}
	// The screen owns stderr; component logs go to a file in debug mode.
	rt.logOut = io.Discard
	if rt.cfg.Log.Debug() {
		if logFile := setupFileLogger("browse"); logFile != nil {
			defer logFile.Close()
			rt.logOut = logFile
		}
	}

	st, err := buildState(c.profile(), f, rt.cfg.View.PageSize)
	if err != nil {
		return err
	}
	src := f.resolved(rt.cfg)
	items, err := c.load(ctx, rt, src)
	if err != nil {
		return err
	}

	logger := rt.logger("[UI] ")
	opts := ui.Options[T]{
		Title:    string(c.kind),
		Columns:  c.columns(),
		PageSize: st.PageSize,
		State:    st,
		Logger:   logger,
		Detail:   c.detail(nil),
	}

	var browser *ui.Browser[T]
	resolve := func(context.Context, []T) {}
	if c.refs != nil {
		threats, closer, err := rt.threatSource(ctx)
		if err != nil {
			logger.Printf("Threat resolution disabled: %v", err)
		} else {
			defer closer.Close()
			enrichLogger := rt.logger("[Enrich] ")
			resolver := newThreatResolver(threats, rt.cfg.Enrich, func(p enrich.Progress) {
				browser.SetProgress(p)
			}, enrichLogger)
			opts.Detail = c.detail(resolver.Lookup)
			resolve = func(ctx context.Context, items []T) {
				if _, committed, err := resolver.Resolve(ctx, c.refs(items)); err != nil {
					enrichLogger.Printf("Threat resolution failed: %v", err)
				} else if committed {
					browser.Redraw()
				}
			}
		}
	}

	opts.Reload = func(ctx context.Context) ([]T, error) {
		fresh, err := c.load(ctx, rt, src)
		if err == nil {
			go resolve(ctx, fresh)
		}
		return fresh, err
	}

	// Snapshot views follow changes published by sync, import and reset.
	var changes bus.Bus
	if src.source == sourceSnapshot {
		changes = rt.changes()
	}
	opts.OnStart = func(ctx context.Context) {
		go resolve(ctx, items)
		if changes == nil {
			return
		}
		err := changes.WatchChanges(ctx, func(ctx context.Context, ch bus.Change) error {
			if ch.Kind != c.kind {
				return nil
			}
			logger.Printf("%s %s (%d items from %s); reloading", ch.Kind, ch.Action, ch.Count, ch.Source)
			if ch.Action == bus.ActionDeleted {
				browser.Load(nil)
				return nil
			}
			fresh, err := c.load(ctx, rt, src)
			if err != nil {
				return err
			}
			browser.Load(fresh)
			go resolve(ctx, fresh)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Change watcher stopped: %v", err)
		}
	}

	browser = ui.NewBrowser(c.engine(rt, items), opts)
	return browser.Run(ctx)
}
