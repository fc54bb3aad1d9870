package models

// DefaultPageSize matches the admin and storefront listings.
const DefaultPageSize = 25

// ListQuery is the transient pagination/filter context of one listing request.
type ListQuery struct {
	Limit      int
	Offset     int
	Search     string
	CategoryID string
	IsAdmin    *bool
}

// Page is one slice of a listing together with the unpaginated total.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize fills a missing limit and clamps a negative offset.
func (q ListQuery) Normalize() ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ClampPage keeps a 1-based page inside [1, totalPages]. An empty listing still has page 1.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// OffsetFor converts a 1-based page into a store offset.
func OffsetFor(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
