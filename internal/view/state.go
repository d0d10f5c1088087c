package view

import (
	"sort"
	"strings"
)

// CategoryField selects which categorical attribute a filter or histogram reads.
// Each Profile binds the fields it supports to accessors.
type CategoryField string

const (
	FieldStatus     CategoryField = "status"
	FieldPriority   CategoryField = "priority"
	FieldType       CategoryField = "type"
	FieldSeverity   CategoryField = "severity"
	FieldStage      CategoryField = "stage"
	FieldMitigation CategoryField = "mitigation"
	FieldRole       CategoryField = "role"
)

// AllCategories is the single-select sentinel meaning "no restriction"
const AllCategories = "All"

// DefaultPageSize applies when a state carries a non-positive page size
const DefaultPageSize = 10

// FilterState is the user-controlled input of a collection view.
// Page is reset to 0 whenever SearchTerm, Selected or SortKey changes.
type FilterState struct {
	SearchTerm string                            `json:"searchTerm"`
	Selected   map[CategoryField]map[string]bool `json:"selected,omitempty"`
	SortKey    SortKey                           `json:"sortKey,omitempty"`
	Page       int                               `json:"page"`
	PageSize   int                               `json:"pageSize"`
}

// NewFilterState returns the mount-time defaults.
func NewFilterState(pageSize int) *FilterState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FilterState{
		Selected: make(map[CategoryField]map[string]bool),
		PageSize: pageSize,
	}
}

// SetSearchTerm updates the free-text term.
func (s *FilterState) SetSearchTerm(term string) {
	if term == s.SearchTerm {
		return
	}
	s.SearchTerm = term
	s.Page = 0
}

// ToggleCategory adds value to the field's selection, or removes it if already present.
// Toggling the All sentinel clears the field.
func (s *FilterState) ToggleCategory(field CategoryField, value string) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, AllCategories) {
		s.clearField(field)
		return
	}
	if s.Selected == nil {
		s.Selected = make(map[CategoryField]map[string]bool)
	}
	set := s.Selected[field]
	if set == nil {
		set = make(map[string]bool)
		s.Selected[field] = set
	}
	if set[value] {
		delete(set, value)
		if len(set) == 0 {
			delete(s.Selected, field)
		}
	} else {
		set[value] = true
	}
	s.Page = 0
}

// SelectCategory replaces the field's selection with a single value (radio-like views).
// An empty value or the All sentinel clears the field.
func (s *FilterState) SelectCategory(field CategoryField, value string) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, AllCategories) {
		s.clearField(field)
		return
	}
	if cur := s.Selected[field]; len(cur) == 1 && cur[value] {
		return
	}
	if s.Selected == nil {
		s.Selected = make(map[CategoryField]map[string]bool)
	}
	s.Selected[field] = map[string]bool{value: true}
	s.Page = 0
}

func (s *FilterState) clearField(field CategoryField) {
	if len(s.Selected[field]) == 0 {
		return
	}
	delete(s.Selected, field)
	s.Page = 0
}

// SetSortKey changes the ordering.
func (s *FilterState) SetSortKey(key SortKey) {
	if key == s.SortKey {
		return
	}
	s.SortKey = key
	s.Page = 0
}

// SetPage stores the requested page. Upper-bound clamping happens on derive,
// once the matching count is known.
func (s *FilterState) SetPage(n int) {
	if n < 0 {
		n = 0
	}
	s.Page = n
}

// ClearFilters restores the mount-time defaults, keeping the page size.
func (s *FilterState) ClearFilters() {
	s.SearchTerm = ""
	s.Selected = make(map[CategoryField]map[string]bool)
	s.SortKey = SortDefault
	s.Page = 0
}

// Selection returns the selected values of a field, sorted.
func (s *FilterState) Selection(field CategoryField) []string {
	set := s.Selected[field]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v, on := range set {
		if on {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Active reports whether any search term or category filter is set.
func (s *FilterState) Active() bool {
	if s.SearchTerm != "" {
		return true
	}
	for _, set := range s.Selected {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

func (s *FilterState) pageSize() int {
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}
