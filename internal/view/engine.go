package view

import (
	"slices"
	"sync"
)

// Category binds a CategoryField to an accessor and its closed enumeration
type Category[T any] struct {
	Get   func(T) string
	Known []string
}

// Profile configures the view engine for one collection kind
type Profile[T any] struct {
	Name         string
	ID           func(T) string
	SearchFields []func(T) string
	Categories   map[CategoryField]Category[T]
	Sorts        map[SortKey]SortPolicy[T]
	Summary      AggregationProfile
	Breakdown    AggregationProfile
}

// SortKeys lists the keys the profile understands, sorted by name.
func (p *Profile[T]) SortKeys() []SortKey {
	keys := make([]SortKey, 0, len(p.Sorts))
	for k := range p.Sorts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Fields lists the category fields the profile can filter on, sorted by name.
func (p *Profile[T]) Fields() []CategoryField {
	fields := make([]CategoryField, 0, len(p.Categories))
	for f := range p.Categories {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// DerivedView is what the view layer renders for one FilterState
type DerivedView[T any] struct {
	Generation    uint64     `json:"generation"`
	Items         []T        `json:"items"`
	Total         int        `json:"total"`
	TotalMatching int        `json:"totalMatching"`
	Page          int        `json:"page"`
	PageSize      int        `json:"pageSize"`
	PageCount     int        `json:"pageCount"`
	RangeLabel    string     `json:"rangeLabel"`
	Summary       Aggregates `json:"summary"`
	Breakdown     Aggregates `json:"breakdown"`
}

// Derive computes the view of raw under st. It clamps st.Page to the last
// valid page so the caller never stays on an out-of-range page.
func Derive[T any](raw []T, p *Profile[T], st *FilterState, locale string) DerivedView[T] {
	size := st.pageSize()
	matching := Filter(raw, p, st)
	if _, ok := p.Sorts[st.SortKey]; ok {
		slices.SortStableFunc(matching, p.Comparator(st.SortKey, NewCollator(locale)))
	}
	count := PageCount(len(matching), size)
	st.Page = ClampPage(st.Page, count)
	page := Paginate(matching, st.Page, size)

	return DerivedView[T]{
		Items:         page.Items,
		Total:         len(raw),
		TotalMatching: len(matching),
		Page:          st.Page,
		PageSize:      size,
		PageCount:     count,
		RangeLabel:    RangeLabel(st.Page, size, len(matching)),
		Summary:       Summarize(raw, p),
		Breakdown:     Breakdown(matching, p),
	}
}

// Engine holds one raw collection snapshot and derives views from it.
// Every Load starts a new generation; a DerivedView is always computed from a
// single generation, so summary and breakdown never mix fetches.
type Engine[T any] struct {
	mu         sync.RWMutex
	profile    *Profile[T]
	locale     string
	items      []T
	generation uint64
}

// NewEngine creates an empty engine for profile. locale is a BCP 47 tag used for text sorts.
func NewEngine[T any](p *Profile[T], locale string) *Engine[T] {
	if locale == "" {
		locale = "en"
	}
	return &Engine[T]{profile: p, locale: locale}
}

// Profile returns the engine's profile
func (e *Engine[T]) Profile() *Profile[T] { return e.profile }

// Load replaces the snapshot with a copy of items and returns the new generation.
func (e *Engine[T]) Load(items []T) uint64 {
	cp := slices.Clone(items)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = cp
	e.generation++
	return e.generation
}

// Generation returns the current snapshot generation (0 before the first Load).
func (e *Engine[T]) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Snapshot returns a copy of the current raw collection with its generation.
func (e *Engine[T]) Snapshot() ([]T, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.items), e.generation
}

// Derive computes the view of the current snapshot under st.
func (e *Engine[T]) Derive(st *FilterState) DerivedView[T] {
	e.mu.RLock()
	items, gen := e.items, e.generation
	e.mu.RUnlock()

	// Load swaps the slice header and never writes into a published slice, so
	// reading items outside the lock is safe.
	v := Derive(items, e.profile, st, e.locale)
	v.Generation = gen
	return v
}
