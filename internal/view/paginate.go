package view

import "fmt"

// Page is one slice of a derived sequence
type Page[T any] struct {
	Items     []T `json:"items"`
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}

// PageCount is max(1, ceil(total/pageSize)).
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	n := total / pageSize
	if total%pageSize != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ClampPage bounds page into [0, pageCount-1].
func ClampPage(page, pageCount int) int {
	if pageCount < 1 {
		pageCount = 1
	}
	if page >= pageCount {
		page = pageCount - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Paginate slices items for page. Out-of-range pages yield an empty slice.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	res := Page[T]{
		Page:      page,
		PageCount: PageCount(len(items), pageSize),
	}
	// Compare page numbers before multiplying so a huge page cannot overflow.
	if len(items) == 0 || page > (len(items)-1)/pageSize {
		res.Items = []T{}
		return res
	}
	start := page * pageSize
	end := start + min(pageSize, len(items)-start)
	res.Items = items[start:end:end]
	return res
}

// RangeLabel renders "X-Y of Z" for the rows visible on page.
func RangeLabel(page, pageSize, total int) string {
	if total <= 0 {
		return "0-0 of 0"
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	if page > (total-1)/pageSize {
		return fmt.Sprintf("%d-%d of %d", total, total, total)
	}
	start := page*pageSize + 1
	end := start - 1 + min(pageSize, total-start+1)
	return fmt.Sprintf("%d-%d of %d", start, end, total)
}
