package pagination

import (
	"net/http"
	"strconv"
)

// Params holds zero-based paging parameters taken from ?page=&size=.
type Params struct {
	Page   int `json:"page"`
	Size   int `json:"size"`
	Offset int `json:"-"`
}

// Limits bounds the page size a caller may request.
type Limits struct {
	DefaultSize int
	MaxSize     int
}

// DefaultLimits mirrors the feed defaults: 10 per page, at most 100.
func DefaultLimits() Limits {
	return Limits{DefaultSize: 10, MaxSize: 100}
}

// FromRequest extracts paging parameters. Invalid or out-of-range values fall
// back to page 0 and the default size.
func FromRequest(r *http.Request, lim Limits) Params {
	p := Params{Page: 0, Size: lim.DefaultSize}

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v >= 0 {
			p.Page = v
		}
	}
	if size := r.URL.Query().Get("size"); size != "" {
		if v, err := strconv.Atoi(size); err == nil && v > 0 && v <= lim.MaxSize {
			p.Size = v
		}
	}

	p.Offset = p.Page * p.Size
	return p
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

// NewPage builds a Page, computing TotalPages from total and the page size.
func NewPage[T any](content []T, total int, p Params) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if p.Size > 0 {
		totalPages = total / p.Size
		if total%p.Size > 0 {
			totalPages++
		}
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Number:        p.Page,
		Size:          p.Size,
	}
}

// Empty returns a page with no content.
func Empty[T any](p Params) Page[T] {
	return NewPage[T](nil, 0, p)
}

// HasNext reports whether another page follows this one.
func (pg Page[T]) HasNext() bool {
	return pg.Number+1 < pg.TotalPages
}
