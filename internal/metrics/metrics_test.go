package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePrediction(t *testing.T) {
	r := New()

	r.ObservePrediction(3, 20*time.Millisecond, nil)
	r.ObservePrediction(5, 10*time.Millisecond, nil)
	r.ObservePrediction(0, 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestObserveCache(t *testing.T) {
	r := New()

	r.ObserveCache(true)
	r.ObserveCache(false)
	r.ObserveCache(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObservePrediction(1, time.Second, nil)
		r.ObserveCache(true)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New()

	router := gin.New()
	router.Use(r.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(r.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/ping", http.MethodGet, "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
