package view

import (
	"strings"

	"golang.org/x/text/cases"
)

// matcher is a FilterState compiled against one Profile
type matcher[T any] struct {
	fold   cases.Caser
	term   string
	search []func(T) string
	cats   []compiledCategory[T]
}

type compiledCategory[T any] struct {
	get     func(T) string
	allowed map[string]bool // case-folded
}

func compile[T any](p *Profile[T], st *FilterState) matcher[T] {
	// A Caser keeps state, so every compiled matcher owns one.
	fold := cases.Fold()
	m := matcher[T]{
		fold:   fold,
		term:   fold.String(st.SearchTerm),
		search: p.SearchFields,
	}
	for field, set := range st.Selected {
		if len(set) == 0 {
			continue
		}
		// Fields the profile does not define cannot be rendered, so they never restrict.
		cat, ok := p.Categories[field]
		if !ok || cat.Get == nil {
			continue
		}
		allowed := make(map[string]bool, len(set))
		for v, on := range set {
			if on {
				allowed[fold.String(strings.TrimSpace(v))] = true
			}
		}
		if len(allowed) == 0 {
			continue
		}
		m.cats = append(m.cats, compiledCategory[T]{get: cat.Get, allowed: allowed})
	}
	return m
}

func (m matcher[T]) match(item T) bool {
	if m.term != "" {
		found := false
		for _, f := range m.search {
			if f == nil {
				continue
			}
			if strings.Contains(m.fold.String(f(item)), m.term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, c := range m.cats {
		if !c.allowed[m.fold.String(strings.TrimSpace(c.get(item)))] {
			return false
		}
	}
	return true
}

// Matches reports whether item passes the search term and every active category filter.
func Matches[T any](item T, p *Profile[T], st *FilterState) bool {
	return compile(p, st).match(item)
}

// Filter returns the matching items in input order. The input is not modified.
func Filter[T any](items []T, p *Profile[T], st *FilterState) []T {
	m := compile(p, st)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if m.match(it) {
			out = append(out, it)
		}
	}
	return out
}
