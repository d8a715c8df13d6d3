package pagination

import (
	"github.com/gin-gonic/gin"
)

// 分页默认值
const (
	DefaultCurrent = 1
	DefaultSize    = 10
	MaxSize        = 100
)

// PageParams 分页查询参数，current 从1开始
type PageParams struct {
	Current int `form:"current" json:"current"`
	Size    int `form:"size" json:"size"`
}

// Page 分页结果
type Page[T any] struct {
	Current int   `json:"current"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	Records []T   `json:"records"`
}

// Parse 从查询串读取 current/size，非法值回落到默认值，size 不超过 MaxSize
func Parse(c *gin.Context) *PageParams {
	var p PageParams
	_ = c.ShouldBindQuery(&p)
	return p.normalize()
}

func (p PageParams) normalize() *PageParams {
	if p.Current < 1 {
		p.Current = DefaultCurrent
	}
	if p.Size < 1 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return &p
}

// Offset 跳过的记录数
func (p *PageParams) Offset() int {
	return (p.Current - 1) * p.Size
}

// Limit 本页记录数
func (p *PageParams) Limit() int {
	return p.Size
}

// NewPage 组装分页结果，records 为 nil 时返回空数组
func NewPage[T any](params *PageParams, total int64, records []T) *Page[T] {
	if records == nil {
		records = []T{}
	}
	return &Page[T]{
		Current: params.Current,
		Size:    params.Size,
		Total:   total,
		Records: records,
	}
}
