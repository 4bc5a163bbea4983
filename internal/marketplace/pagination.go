package marketplace

import "github.com/sudo-init-do/quickquid/internal/apperr"

// Page describes one page of items
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"`
}

// Paginate slices items for the 1-based page. Callers normalize page and
// pageSize first; out-of-range pages come back empty.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	// compare before multiplying so huge page numbers cannot overflow
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := total
	if pageSize < total-start {
		end = start + pageSize
	}

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:    pageItems,
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

func (b *base) normalizePage(page, pageSize int) (int, int, error) {
	if page < 0 {
		return 0, 0, apperr.InvalidField("page", "must be 1 or greater")
	}
	if pageSize < 0 {
		return 0, 0, apperr.InvalidField("page_size", "must be positive")
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = b.pageSize
	}
	if pageSize > b.maxPageSize {
		pageSize = b.maxPageSize
	}
	return page, pageSize, nil
}
