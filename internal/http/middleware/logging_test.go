package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// swapGlobalLogger points the zerolog global logger at a buffer for the
// duration of the test so assertions can inspect emitted JSON lines.
func swapGlobalLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func newLoggingRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	r := newLoggingRouter(RequestID())
	r.GET("/probe", func(c *gin.Context) {
		v, ok := c.Get(requestIDKey)
		if !ok || v == "" {
			t.Error("request id missing from context")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated %s response header", requestIDHeader)
	}
}

func TestRequestID_PropagatesClientValue(t *testing.T) {
	r := newLoggingRouter(RequestID())
	r.GET("/probe", func(c *gin.Context) {
		if v, _ := c.Get(requestIDKey); v != "msg-trace-77" {
			t.Errorf("context request id = %v, want msg-trace-77", v)
		}
		c.Status(http.StatusNoContent)
	})

	for _, header := range []string{requestIDHeader, strings.ToLower(requestIDHeader)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set(header, "msg-trace-77")
		r.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "msg-trace-77" {
			t.Fatalf("header %q: response id = %q, want msg-trace-77", header, got)
		}
	}
}

type stubErr struct{}

func (stubErr) Error() string { return "send failed" }

func TestLogger_LevelTracksOutcome(t *testing.T) {
	buf := swapGlobalLogger(t)

	r := newLoggingRouter(RequestID(), Logger())
	r.GET("/conversations", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(stubErr{})
		c.Status(http.StatusBadRequest)
	})

	hit := func(path string) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	hit("/conversations") // 200 -> info, route pattern logged
	hit("/gone")          // 404 -> warn, raw URL path logged
	hit("/broken")        // c.Errors set -> error level

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"path":"/conversations"`) {
		t.Errorf("missing info line for matched route:\n%s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"path":"/gone"`) {
		t.Errorf("missing warn line with raw-path fallback:\n%s", out)
	}
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, "send failed") {
		t.Errorf("missing error line for request with gin errors:\n%s", out)
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	buf := swapGlobalLogger(t)

	r := newLoggingRouter(RequestID(), Logger(), Recovery())
	r.GET("/explode", func(c *gin.Context) { panic("unreachable state") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["code"] != "internal_error" || body["message"] != "internal server error" {
		t.Errorf("unexpected error body: %v", body)
	}
	if body["request_id"] == "" {
		t.Error("error body missing request_id")
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic log line:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteSkipsBody(t *testing.T) {
	buf := swapGlobalLogger(t)

	r := newLoggingRouter(RequestID(), Logger(), Recovery())
	r.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/half", nil))

	// The handler already wrote, so Recovery must not append the JSON error
	// body. The status code itself may have been flushed as 200.
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error body written after partial response: %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic log line:\n%s", buf.String())
	}
}

func TestLoggerFrom(t *testing.T) {
	// Without Logger() the fallback carries no request fields.
	buf := swapGlobalLogger(t)
	r := newLoggingRouter(RequestID())
	r.GET("/lg", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("bare")
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lg", nil))
	if !strings.Contains(buf.String(), `"message":"bare"`) {
		t.Fatal("fallback logger did not emit")
	}
	if strings.Contains(buf.String(), `"request_id"`) {
		t.Error("fallback logger should not carry request_id")
	}

	// With Logger() the scoped logger carries correlation fields.
	buf2 := swapGlobalLogger(t)
	r2 := newLoggingRouter(RequestID(), Logger())
	r2.GET("/lg", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusOK)
	})
	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/lg", nil))
	if !strings.Contains(buf2.String(), `"message":"scoped"`) || !strings.Contains(buf2.String(), `"request_id"`) {
		t.Errorf("scoped logger missing request_id:\n%s", buf2.String())
	}
}

func TestAsStringAndTruncate(t *testing.T) {
	if asString("conv-1") != "conv-1" {
		t.Error("string value should pass through")
	}
	if asString(42) != "" || asString(nil) != "" {
		t.Error("non-string values should collapse to empty")
	}

	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Errorf("truncate = %q, want %q", got, "abcde…")
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Errorf("max<=0 should disable truncation, got %q", got)
	}
}
