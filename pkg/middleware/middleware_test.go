package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
)

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestRateLimitPerClient(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	now := time.Unix(100, 0)
	l.now = func() time.Time { return now }

	h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	do := func(path, addr string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/match", "10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, do("/api/v1/match", "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/match", "10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, do("/api/v1/match", "10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, do("/health/ready", "10.0.0.1:5003"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, do("/api/v1/match", "10.0.0.1:5004"))

	now = now.Add(time.Hour)
	assert.Equal(t, 2, l.Sweep(time.Minute))
}

func TestMetricsNormalizesFragmentPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/fragments/BM.11/match", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/fragments/X.1/match", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() != "http_requests_total" {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
		for _, lp := range f.GetMetric()[0].GetLabel() {
			switch lp.GetName() {
			case "path":
				assert.Equal(t, "/api/v1/fragments/{id}/match", lp.GetValue())
			case "status":
				assert.Equal(t, "404", lp.GetValue())
			}
		}
		found = true
	}
	assert.True(t, found)
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/match", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestCORS(t *testing.T) {
	reached := 0
	h := CORS(config.CORSConfig{
		AllowOrigins: []string{"https://www.ebl.lmu.de"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
	}))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/lemmas/search", nil)
	preflight.Header.Set("Origin", "https://www.ebl.lmu.de")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://www.ebl.lmu.de", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Zero(t, reached)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/match", nil)
	other.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, reached)
}
