package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polos-ead/academic-records/pkg/logger"
)

func TestRequestLogger_StoresScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(&buf)))
	r.GET("/ping", func(c *gin.Context) {
		logger.FromContext(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"inside handler"`)
	assert.Contains(t, lines[0], `"request_id":"req-42"`)
	assert.Contains(t, lines[1], `"message":"http request"`)
	assert.Contains(t, lines[1], `"status":204`)
}
