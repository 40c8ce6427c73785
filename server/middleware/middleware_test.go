package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/taskgraph/logger"
)

func newEngine(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter(buf, &logger.Config{Level: "debug", Format: logger.FormatJSON}, "test")
	r := gin.New()
	r.Use(Recovery(log), RequestID(), RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })
	return r
}

func serve(r http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		logged bool
	}{
		{"success at debug", "/ok", `"level":"debug"`, true},
		{"client error at warn", "/missing", `"level":"warn"`, true},
		{"probe skipped", "/health", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			serve(newEngine(&buf), tt.path, HeaderRequestID, "req-1")
			out := buf.String()
			if !tt.logged {
				if out != "" {
					t.Fatalf("expected no log output, got %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %s in %s", tt.want, out)
			}
			if !strings.Contains(out, `"request_id":"req-1"`) {
				t.Errorf("expected request id in log, got %s", out)
			}
			if !strings.Contains(out, `"path":"`+tt.path+`"`) {
				t.Errorf("expected path in log, got %s", out)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(&buf)

	first := serve(r, "/ok").Header().Get(HeaderRequestID)
	second := serve(r, "/ok").Header().Get(HeaderRequestID)
	if first == "" || second == "" || first == second {
		t.Errorf("expected distinct generated ids, got %q and %q", first, second)
	}

	if got := serve(r, "/ok", HeaderRequestID, "abc").Header().Get(HeaderRequestID); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	rr := serve(newEngine(&buf), "/panic")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"INTERNAL_ERROR"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("expected panic value in log, got %s", buf.String())
	}
}
