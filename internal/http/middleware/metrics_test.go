package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RequestCountersAndInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/conversations", func(c *gin.Context) {
		c.String(http.StatusOK, `{"success":true}`)
	})
	r.GET("/nobody", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Counters are package globals, so snapshot before serving in case other
	// tests in the package already bumped them.
	beforeOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/conversations", "200"))
	before404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/no-such-route", "404"))

	serve := func(path string, want int) {
		t.Helper()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("GET %s = %d, want %d", path, w.Code, want)
		}
	}

	serve("/conversations", http.StatusOK)
	// Unmatched routes are labeled by raw URL path.
	serve("/no-such-route", http.StatusNotFound)
	// 204 leaves the writer size at -1, exercising the skip in the size histogram.
	serve("/nobody", http.StatusNoContent)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/conversations", "200")); got != beforeOK+1 {
		t.Errorf("request counter for /conversations = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/no-such-route", "404")); got != before404+1 {
		t.Errorf("request counter for unmatched route = %v, want %v", got, before404+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Errorf("in-flight gauge after requests drained = %v, want 0", got)
	}
}
