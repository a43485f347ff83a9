package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageMeta описывает одну страницу списка.
type pageMeta struct {
	Page     int   `json:"page"` // номер страницы (с 1)
	PageSize int   `json:"page_size"`
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
	Total    int64 `json:"total"`
}

// pageParams читает page/page_size. При пустых значениях — дефолты.
func pageParams(c *gin.Context) (page, size int, err error) {
	page, _, err = queryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	size, _, err = queryInt(c, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		return 0, 0, fmt.Errorf("%w: page_size must be at most %d", errBadRequest, maxPageSize)
	}
	return page, size, nil
}

func newPageMeta(page, size int, total int64) pageMeta {
	end := int64(page * size)
	return pageMeta{
		Page:     page,
		PageSize: size,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
