package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) *PageParams {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	p := parseQuery("current=3&size=20")
	assert.Equal(t, &PageParams{Current: 3, Size: 20}, p)
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 20, p.Limit())

	assert.Equal(t, &PageParams{Current: DefaultCurrent, Size: DefaultSize}, parseQuery(""))
	assert.Equal(t, &PageParams{Current: DefaultCurrent, Size: DefaultSize}, parseQuery("current=abc&size=-1"))
	assert.Equal(t, MaxSize, parseQuery("size=1000").Size)
}

func TestNewPage(t *testing.T) {
	page := NewPage[string](&PageParams{Current: 2, Size: 5}, 7, nil)
	assert.Equal(t, 2, page.Current)
	assert.Equal(t, 5, page.Size)
	assert.Equal(t, int64(7), page.Total)
	assert.NotNil(t, page.Records)
	assert.Empty(t, page.Records)
}
