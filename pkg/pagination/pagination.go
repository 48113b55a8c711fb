package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
	// DefaultPage is the first page number; pages are 1-based.
	DefaultPage = 1
)

// Params holds page/limit inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize returns a copy of p with defaults and caps applied.
func (p Params) Normalize() Params {
	page := p.Page
	if page < DefaultPage {
		page = DefaultPage
	}
	return Params{Page: page, Limit: NormalizeLimit(p.Limit)}
}

// Offset is the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Meta describes the page returned to clients.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Page is a generic list result.
type Page[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"pagination"`
}

// NewMeta computes page metadata for total rows under params.
func NewMeta(params Params, total int64) Meta {
	n := params.Normalize()
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(n.Limit) - 1) / int64(n.Limit))
	}
	return Meta{
		Page:       n.Page,
		Limit:      n.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    n.Page < totalPages,
		HasPrev:    n.Page > 1,
	}
}

// NewPage wraps items with computed metadata. A nil slice is returned as empty.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewMeta(params, total)}
}
