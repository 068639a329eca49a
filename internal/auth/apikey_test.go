package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newEngine(keys map[string]string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(keys))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, Principal(c))
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := newEngine(map[string]string{"k-alice": "alice", "k-bob": "bob"})

	cases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{"api key header", "X-API-Key", "k-alice", http.StatusOK, "alice"},
		{"bearer token", "Authorization", "Bearer k-bob", http.StatusOK, "bob"},
		{"bearer lowercase", "Authorization", "bearer k-bob", http.StatusOK, "bob"},
		{"unknown key", "X-API-Key", "nope", http.StatusUnauthorized, ""},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Authorization", "Basic k-alice", http.StatusUnauthorized, ""},
		{"prefix of key", "X-API-Key", "k-ali", http.StatusUnauthorized, ""},
	}

	var unauthorizedBody string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK {
				if w.Body.String() != tc.wantBody {
					t.Errorf("principal = %q, want %q", w.Body.String(), tc.wantBody)
				}
				return
			}
			if unauthorizedBody == "" {
				unauthorizedBody = w.Body.String()
			} else if w.Body.String() != unauthorizedBody {
				t.Errorf("401 body %q differs from %q", w.Body.String(), unauthorizedBody)
			}
		})
	}
}

func TestAPIKeyMiddlewareNoKeysConfigured(t *testing.T) {
	r := newEngine(nil)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-API-Key", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
