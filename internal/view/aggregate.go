package view

import (
	"strings"

	"golang.org/x/text/cases"
)

// UnknownBucket collects values outside a field's known enumeration
const UnknownBucket = "Unknown"

// Bucket is one histogram entry
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Histogram counts items per category value
type Histogram struct {
	Field   CategoryField `json:"field"`
	Buckets []Bucket      `json:"buckets"`
	Total   int           `json:"total"`
}

// Count returns the count for a bucket name, 0 when absent.
func (h Histogram) Count(name string) int {
	for _, b := range h.Buckets {
		if b.Name == name {
			return b.Count
		}
	}
	return 0
}

// Map returns bucket name to count.
func (h Histogram) Map() map[string]int {
	m := make(map[string]int, len(h.Buckets))
	for _, b := range h.Buckets {
		m[b.Name] = b.Count
	}
	return m
}

// Aggregate counts items by get in a single pass. Every known value gets a bucket
// (zero when unseen); anything else, including the empty string, goes to Unknown,
// which only appears when non-zero. Values match known entries under Unicode case folding.
func Aggregate[T any](items []T, field CategoryField, get func(T) string, known []string) Histogram {
	fold := cases.Fold()
	index := make(map[string]int, len(known))
	h := Histogram{Field: field, Buckets: make([]Bucket, len(known), len(known)+1)}
	for i, k := range known {
		h.Buckets[i] = Bucket{Name: k}
		index[fold.String(k)] = i
	}
	unknown := 0
	for _, it := range items {
		h.Total++
		if i, ok := index[fold.String(strings.TrimSpace(get(it)))]; ok {
			h.Buckets[i].Count++
			continue
		}
		unknown++
	}
	if unknown > 0 {
		h.Buckets = append(h.Buckets, Bucket{Name: UnknownBucket, Count: unknown})
	}
	return h
}

// AggregationProfile is a named list of fields to histogram together
type AggregationProfile struct {
	Name   string          `json:"name"`
	Fields []CategoryField `json:"fields"`
}

// Aggregates is an ordered set of histograms produced by one profile
type Aggregates struct {
	Profile    string      `json:"profile"`
	Histograms []Histogram `json:"histograms"`
}

// Get returns the histogram for field.
func (a Aggregates) Get(field CategoryField) (Histogram, bool) {
	for _, h := range a.Histograms {
		if h.Field == field {
			return h, true
		}
	}
	return Histogram{}, false
}

func aggregateProfile[T any](items []T, p *Profile[T], ap AggregationProfile) Aggregates {
	out := Aggregates{Profile: ap.Name}
	for _, f := range ap.Fields {
		cat, ok := p.Categories[f]
		if !ok || cat.Get == nil {
			continue
		}
		out.Histograms = append(out.Histograms, Aggregate(items, f, cat.Get, cat.Known))
	}
	return out
}

// Summarize aggregates the full raw collection for header statistics.
// The result does not depend on any active filter.
func Summarize[T any](raw []T, p *Profile[T]) Aggregates {
	return aggregateProfile(raw, p, p.Summary)
}

// Breakdown aggregates a filtered subset for the chips shown next to the list.
func Breakdown[T any](filtered []T, p *Profile[T]) Aggregates {
	return aggregateProfile(filtered, p, p.Breakdown)
}
