package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/service"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
)

type stubVerifier map[string]*models.JWTClaims

func (v stubVerifier) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := stubVerifier{
		"reader": {Scopes: []string{"runs:read"}},
		"writer": {Scopes: []string{"runs:read", "runs:write"}},
	}
	r := gin.New()
	r.POST("/runs", JWT(verifier), RequireScope("runs:write"), func(c *gin.Context) { c.Status(http.StatusAccepted) })
	return r
}

func TestJWTAndRequireScope(t *testing.T) {
	r := newAuthRouter()
	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token writer", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer reader", http.StatusForbidden},
		{"bearer writer", http.StatusAccepted},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/runs", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.header)
	}
}

func TestRequireScopeWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireScope("runs:read"), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
	}
	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
}

func TestMetricsMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scan/%d", i), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()

	assert.NotContains(t, body, "/scan/")
	var series int
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "http_requests_total{") && strings.Contains(line, `path="unmatched"`) {
			series++
			assert.True(t, strings.HasSuffix(line, " 50"), line)
		}
	}
	assert.Equal(t, 1, series)
}

func TestMetricsMiddlewareWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetMeta(c, "terminal", true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta["terminal"])
	assert.Contains(t, meta, "processing_time_ms")
}
