package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetClientFromContext(r.Context())))
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"ci": "s3cret"})(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/status/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"missing Authorization header"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/status/x", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ci", rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuthDisabledWithoutKeys(t *testing.T) {
	h := APIKeyAuth(nil)(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/analyze-pr", nil)).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(0.001, 2)(okHandler)

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		codes = append(codes, serve(h, req).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	other.RemoteAddr = "203.0.113.8:5000"
	assert.Equal(t, http.StatusOK, serve(h, other).Code)

	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	health.RemoteAddr = "203.0.113.7:5000"
	assert.Equal(t, http.StatusOK, serve(h, health).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimitMiddleware(0, 1)(okHandler)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	serve(h, httptest.NewRequest(http.MethodGet, "/good", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/bad", nil))

	m.JobSubmitted()
	m.JobStarted()
	m.JobStarted()
	m.JobFinished(analysis.StatusSucceeded)
	m.JobFinished(analysis.StatusFailed)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap["requests_total"])
	assert.Equal(t, uint64(1), snap["requests_success"])
	assert.Equal(t, uint64(1), snap["requests_failed"])
	assert.Equal(t, uint64(1), snap["jobs_submitted"])
	assert.Equal(t, int64(0), snap["jobs_running"])
	assert.Equal(t, uint64(1), snap["jobs_succeeded"])
	assert.Equal(t, uint64(1), snap["jobs_failed"])

	rec := serve(http.HandlerFunc(m.Handler), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `"jobs_submitted":1`)
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"db":    CheckFunc(func(context.Context) error { return nil }),
		"queue": CheckFunc(func(context.Context) error { return errors.New("down") }),
	})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"down"`)

	rec = serve(HealthHandler(nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingMiddlewarePassesStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestValidateRepoURL(t *testing.T) {
	cases := []struct {
		url     string
		private bool
		ok      bool
	}{
		{"https://github.com/acme/widgets.git", false, true},
		{"http://gitlab.example.com/a/b", false, true},
		{"", false, false},
		{"ftp://github.com/a/b", false, false},
		{"git@github.com:a/b.git", false, false},
		{"https://localhost/a/b", false, false},
		{"https://127.0.0.1/a/b", false, false},
		{"https://10.1.2.3/a/b", false, false},
		{"https://172.20.0.1/a/b", false, false},
		{"https://192.168.1.1/a/b", false, false},
		{"https://[::1]/a/b", false, false},
		{"https://169.254.169.254/latest", false, false},
		{"https://10.1.2.3/a/b", true, true},
	}
	for _, tc := range cases {
		err := ValidateRepoURL(tc.url, tc.private)
		if tc.ok {
			assert.NoError(t, err, tc.url)
		} else {
			assert.Error(t, err, tc.url)
		}
	}
}

func TestValidators(t *testing.T) {
	assert.Error(t, ValidatePRNumber(0))
	assert.Error(t, ValidatePRNumber(-4))
	assert.NoError(t, ValidatePRNumber(12))

	assert.Error(t, ValidateJobID(""))
	assert.Error(t, ValidateJobID("not-a-uuid"))
	require.NoError(t, ValidateJobID("2f1c7a3e-9d5b-4c1a-8e2f-0b6d7a9c1e34"))

	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 7, ValidateLimit(7))

	assert.Equal(t, "abc", SanitizeString(" a\x00b\x07c "))
}
