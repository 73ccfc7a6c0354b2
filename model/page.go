package model

// Page is one slice of an offset-paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPage assembles a page and derives the page count from total.
func NewPage[T any](items []T, page, size int, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &Page[T]{Items: items, Page: page, Size: size, Total: total, TotalPages: pages}
}
