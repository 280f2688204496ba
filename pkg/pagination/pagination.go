package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trustx/pkg/common"
)

const (
	// DefaultLimit is the page size when the caller supplies none
	DefaultLimit = 10
	// MaxLimit caps the page size
	MaxLimit = 100
	// DefaultOffset is the starting offset
	DefaultOffset = 0
)

// Params holds a limit/offset window.
type Params struct {
	Limit  int
	Offset int
}

// ParseParams reads limit and offset from the query string. Invalid values
// fall back to defaults and limits above MaxLimit are capped.
func ParseParams(c *gin.Context) Params {
	return Normalize(atoi(c.Query("limit")), atoi(c.Query("offset")))
}

// Normalize applies defaults and bounds to a raw limit/offset pair.
func Normalize(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = DefaultOffset
	}
	return Params{Limit: limit, Offset: offset}
}

// BuildMeta creates the response metadata for a page.
func BuildMeta(limit, offset int, total int64) *common.Meta {
	return &common.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
}

// HasMore reports whether rows remain after this page.
func HasMore(offset, limit int, total int64) bool {
	return int64(offset+limit) < total
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
