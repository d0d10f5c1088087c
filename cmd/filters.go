package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secboard/internal/view"
)

const (
	sourceAuto     = "auto"
	sourceAPI      = "api"
	sourceSnapshot = "snapshot"
	sourceFile     = "file"
)

// loadOptions selects where a collection is read from
type loadOptions struct {
	source string
	file   string
}

// filterFlags are the view flags shared by list, summary, export and browse
type filterFlags struct {
	loadOptions
	search     string
	categories map[view.CategoryField]*[]string
	sort       string
	page       int
	pageSize   int
	output     string
}

var categoryFlags = []view.CategoryField{
	view.FieldStatus,
	view.FieldPriority,
	view.FieldType,
	view.FieldSeverity,
	view.FieldStage,
	view.FieldMitigation,
	view.FieldRole,
}

func newFilterFlags() *filterFlags {
	f := &filterFlags{categories: make(map[view.CategoryField]*[]string, len(categoryFlags))}
	for _, field := range categoryFlags {
		f.categories[field] = new([]string)
	}
	return f
}

// register adds the flags to c. withPaging is false for commands that always
// consider the whole filtered set.
func (f *filterFlags) register(c *cobra.Command, withPaging bool) {
	fs := c.Flags()
	fs.StringVar(&f.source, "source", sourceAuto, "Where to read the collection: api, snapshot, file or auto (api when configured)")
	fs.StringVar(&f.file, "file", "", "Export file to read with --source file (.json, .jsonl, .yaml)")
	fs.StringVar(&f.search, "search", "", "Case-insensitive text search")
	for _, field := range categoryFlags {
		fs.StringSliceVar(f.categories[field], string(field), nil,
			fmt.Sprintf("Only show items whose %s is one of these values", field))
	}
	fs.StringVar(&f.sort, "sort", "", "Sort key (default keeps the fetched order)")
	if withPaging {
		fs.IntVar(&f.page, "page", 1, "Page to show, starting at 1")
		fs.IntVar(&f.pageSize, "page-size", 0, "Items per page (default view.page_size)")
	}
}

// resolved resolves auto against the configuration. An explicit --file implies file.
func (o loadOptions) resolved(cfg Config) loadOptions {
	opts := o
	if opts.source == "" || opts.source == sourceAuto {
		switch {
		case opts.file != "":
			opts.source = sourceFile
		case cfg.API.URL != "":
			opts.source = sourceAPI
		default:
			opts.source = sourceSnapshot
		}
	}
	return opts
}

// buildState converts flags into a FilterState for p. Filters on fields the
// profile does not define and unknown sort keys are rejected.
func buildState[T any](p *view.Profile[T], f *filterFlags, defaultPageSize int) (*view.FilterState, error) {
	size := f.pageSize
	if size <= 0 {
		size = defaultPageSize
	}
	st := view.NewFilterState(size)
	st.SetSearchTerm(f.search)

	for _, field := range categoryFlags {
		values := *f.categories[field]
		if len(values) == 0 {
			continue
		}
		if _, ok := p.Categories[field]; !ok {
			return nil, fmt.Errorf("%s cannot be filtered by %s (available: %s)", p.Name, field, joinFields(p.Fields()))
		}
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || strings.EqualFold(v, view.AllCategories) {
				st.SelectCategory(field, view.AllCategories)
				continue
			}
			if !contains(st.Selection(field), v) {
				st.ToggleCategory(field, v)
			}
		}
	}

	if f.sort != "" {
		key := view.SortKey(strings.ToLower(f.sort))
		if _, ok := p.Sorts[key]; !ok {
			return nil, fmt.Errorf("%s cannot be sorted by %q (available: %s)", p.Name, f.sort, joinSortKeys(p.SortKeys()))
		}
		st.SetSortKey(key)
	}

	if f.page > 1 {
		st.SetPage(f.page - 1)
	}
	return st, nil
}

func contains(values []string, v string) bool {
	for _, have := range values {
		if strings.EqualFold(have, v) {
			return true
		}
	}
	return false
}

func joinFields(fields []view.CategoryField) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func joinSortKeys(keys []view.SortKey) string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
