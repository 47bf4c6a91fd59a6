package domain

// Filter types accepted in list queries.
const (
	FilterLike = "like"
	FilterEq   = "eq"
	FilterGeq  = "geq"
	FilterLeq  = "leq"
)

type Filter struct {
	Column string `json:"column"`
	Type   string `json:"type"`
	Value  any    `json:"value"`
}

type Order struct {
	Column string `json:"column"`
	Dir    string `json:"dir"`
}

// ListQuery is the paged, filtered and sorted listing request. It arrives as
// a JSON document in the "filter" query parameter.
type ListQuery struct {
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Filters []Filter `json:"filters"`
	Order   *Order   `json:"order"`
}

// Normalize fills defaults: first page, 10 per page, ordered by id ascending.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 10
	}
	if q.Order == nil {
		q.Order = &Order{Column: "id", Dir: "asc"}
	}
}

type Page[T any] struct {
	EntityList []T  `json:"entity_list"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Pages      int  `json:"pages"`
	Total      int  `json:"total"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
	NextNum    *int `json:"next_num"`
	PrevNum    *int `json:"prev_num"`
}

// NewPage computes the pagination bookkeeping for a page of items.
func NewPage[T any](items []T, page, perPage, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	p := &Page[T]{
		EntityList: items,
		Page:       page,
		PerPage:    perPage,
		Pages:      pages,
		Total:      total,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
	if p.HasNext {
		next := page + 1
		p.NextNum = &next
	}
	if p.HasPrev {
		prev := page - 1
		p.PrevNum = &prev
	}
	return p
}

// MapPage converts the items of a page, keeping its bookkeeping.
func MapPage[T, U any](p *Page[T], fn func(T) U) *Page[U] {
	out := make([]U, len(p.EntityList))
	for i, item := range p.EntityList {
		out[i] = fn(item)
	}
	return &Page[U]{
		EntityList: out,
		Page:       p.Page,
		PerPage:    p.PerPage,
		Pages:      p.Pages,
		Total:      p.Total,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
		NextNum:    p.NextNum,
		PrevNum:    p.PrevNum,
	}
}
