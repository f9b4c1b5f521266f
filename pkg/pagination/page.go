package pagination

// Page is offset pagination for catalog browsing, where customers jump to a
// numbered page. Order feeds use cursors instead.
type Page struct {
	Page  int
	Limit int
}

// PageMeta is returned next to a page of results.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Normalize clamps the page to >= 1 and the limit to the configured bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Meta describes the page given the total row count.
func (p Page) Meta(total int64) PageMeta {
	n := p.Normalize()
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	return PageMeta{Page: n.Page, Limit: n.Limit, Total: total, TotalPages: pages}
}
