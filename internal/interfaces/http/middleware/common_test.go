package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	return r
}

func TestCORSWithConfig(t *testing.T) {
	tests := []struct {
		name          string
		allowOrigins  []string
		origin        string
		method        string
		expectedCode  int
		expectedAllow string
	}{
		{"empty whitelist rejects", nil, "http://evil.com", http.MethodGet, http.StatusOK, ""},
		{"whitelisted origin", []string{"http://bi.local"}, "http://bi.local", http.MethodGet, http.StatusOK, "http://bi.local"},
		{"other origin", []string{"http://bi.local"}, "http://evil.com", http.MethodGet, http.StatusOK, ""},
		{"wildcard", []string{"*"}, "http://any.com", http.MethodGet, http.StatusOK, "*"},
		{"preflight allowed", []string{"http://bi.local"}, "http://bi.local", http.MethodOptions, http.StatusNoContent, "http://bi.local"},
		{"preflight rejected", []string{"http://bi.local"}, "http://evil.com", http.MethodOptions, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowOrigins = tt.allowOrigins
			r := newTestEngine(CORSWithConfig(cfg))
			r.OPTIONS("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.expectedAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectedAllow != "" {
				assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newTestEngine(RequestID())

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 32)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("propagates", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("truncates long ids", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		r.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), MaxRequestIDLength)
	})
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := generateRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSecure(t *testing.T) {
	r := newTestEngine(Secure())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
