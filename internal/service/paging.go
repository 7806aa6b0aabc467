package service

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page 分页参数（page 从 1 开始）
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// OffsetLimit 转换为 SQL offset/limit
func (p Page) OffsetLimit() (uint, uint) {
	p = p.normalize()
	return uint((p.Page - 1) * p.PageSize), uint(p.PageSize)
}

// PageResult 分页结果
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func newPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	p = p.normalize()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}
