package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareReusesWellFormedID(t *testing.T) {
	rec, seen := serve("run-42.a_b")
	assert.Equal(t, "run-42.a_b", seen)
	assert.Equal(t, "run-42.a_b", rec.Header().Get(headerKey))
}

func TestMiddlewareReplacesMissingOrMalformedID(t *testing.T) {
	for _, header := range []string{"", "bad id", "x\r\ny", strings.Repeat("a", 65)} {
		rec, seen := serve(header)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, header)
		assert.Equal(t, seen, rec.Header().Get(headerKey))
	}
}
