package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
)

func TestWithCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	h := middleware.WithCORS(r, []string{"https://travelbid.example"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/ping", nil)
	req.Header.Set("Origin", "https://travelbid.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://travelbid.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
