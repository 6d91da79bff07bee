package pagination

const (
	DefaultSize = 20
	MaxSize     = 200
)

// Request is a zero-based page request.
type Request struct {
	Page int `form:"page" json:"page"`
	Size int `form:"size" json:"size"`
}

// Normalize clamps page to >= 0 and size to 1..MaxSize, defaulting an unset size.
func (r Request) Normalize() Request {
	if r.Page < 0 {
		r.Page = 0
	}
	switch {
	case r.Size <= 0:
		r.Size = DefaultSize
	case r.Size > MaxSize:
		r.Size = MaxSize
	}
	return r
}

func (r Request) Offset() int {
	n := r.Normalize()
	return n.Page * n.Size
}

func (r Request) Limit() int {
	return r.Normalize().Size
}

type Result[T any] struct {
	Items         []T   `json:"items"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func NewResult[T any](items []T, req Request, total int64) Result[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(req.Size) - 1) / int64(req.Size))
	return Result[T]{
		Items:         items,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

// Map converts the items of a page while keeping its paging metadata.
func Map[T, U any](in Result[T], fn func(T) U) Result[U] {
	out := make([]U, len(in.Items))
	for i, item := range in.Items {
		out[i] = fn(item)
	}
	return Result[U]{
		Items:         out,
		Page:          in.Page,
		Size:          in.Size,
		TotalElements: in.TotalElements,
		TotalPages:    in.TotalPages,
	}
}

// Clamp bounds n to 1..max, substituting def for non-positive values.
func Clamp(n, def, max int) int {
	if n <= 0 {
		n = def
	}
	if n > max {
		return max
	}
	if n < 1 {
		return 1
	}
	return n
}
