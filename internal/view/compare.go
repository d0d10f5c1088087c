package view

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names an ordering offered by a view
type SortKey string

const (
	SortDefault  SortKey = ""
	SortName     SortKey = "name"
	SortType     SortKey = "type"
	SortRisk     SortKey = "risk"
	SortSeverity SortKey = "severity"
	SortPriority SortKey = "priority"
	SortUpdated  SortKey = "updated"
)

// PolicyKind fixes the direction of a sort policy.
// Text keys sort ascending, numeric keys (risk, severity rank, recency) sort
// descending so the most urgent rows come first.
type PolicyKind int

const (
	TextAscending PolicyKind = iota
	NumericDescending
)

func (k PolicyKind) String() string {
	switch k {
	case TextAscending:
		return "text-asc"
	case NumericDescending:
		return "numeric-desc"
	default:
		return "unknown"
	}
}

// SortPolicy binds a SortKey to a field of T
type SortPolicy[T any] struct {
	Kind   PolicyKind
	Text   func(T) string
	Number func(T) float64
}

// TextPolicy sorts by a string field, locale-aware, ascending.
func TextPolicy[T any](f func(T) string) SortPolicy[T] {
	return SortPolicy[T]{Kind: TextAscending, Text: f}
}

// NumericPolicy sorts by a numeric field, descending.
func NumericPolicy[T any](f func(T) float64) SortPolicy[T] {
	return SortPolicy[T]{Kind: NumericDescending, Number: f}
}

// NewCollator builds a collator for a BCP 47 tag, falling back to English.
// Collators are not safe for concurrent use; build one per sort.
func NewCollator(locale string) *collate.Collator {
	tag, err := language.Parse(locale)
	if err != nil || tag == language.Und {
		tag = language.English
	}
	return collate.New(tag)
}

// Comparator returns the ordering function for key. Unknown keys yield a
// comparator that treats every pair as equal, so a stable sort keeps input order.
func (p *Profile[T]) Comparator(key SortKey, col *collate.Collator) func(a, b T) int {
	pol, ok := p.Sorts[key]
	if !ok {
		return func(a, b T) int { return 0 }
	}
	switch {
	case pol.Kind == TextAscending && pol.Text != nil:
		if col == nil {
			return func(a, b T) int { return strings.Compare(pol.Text(a), pol.Text(b)) }
		}
		return func(a, b T) int { return col.CompareString(pol.Text(a), pol.Text(b)) }
	case pol.Kind == NumericDescending && pol.Number != nil:
		return func(a, b T) int { return cmp.Compare(pol.Number(b), pol.Number(a)) }
	}
	return func(a, b T) int { return 0 }
}

// Compare orders a and b under key using the profile's policies.
func Compare[T any](a, b T, key SortKey, p *Profile[T], col *collate.Collator) int {
	return p.Comparator(key, col)(a, b)
}

// Sort returns a stably sorted copy of items; ties keep their input order.
func Sort[T any](items []T, key SortKey, p *Profile[T], col *collate.Collator) []T {
	out := slices.Clone(items)
	if _, ok := p.Sorts[key]; !ok {
		return out
	}
	slices.SortStableFunc(out, p.Comparator(key, col))
	return out
}

// rank maps a value to its 1-based position in ladder (case-insensitive), 0 when absent.
func rank(value string, ladder []string) float64 {
	value = strings.TrimSpace(value)
	for i, v := range ladder {
		if strings.EqualFold(v, value) {
			return float64(i + 1)
		}
	}
	return 0
}
