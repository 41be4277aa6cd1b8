package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func doLimited(t *testing.T, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()

	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	handler := newRateLimiter(10, 3, nil)(okHandler)

	for range 3 {
		rec := doLimited(t, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	handler := newRateLimiter(0.01, 1, m)(okHandler)

	rec := doLimited(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doLimited(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, "too many connection attempts", resp.Error)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Rejected.WithLabelValues(rejectRate)), 0)
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	handler := newRateLimiter(0.01, 1, nil)(okHandler)

	assert.Equal(t, http.StatusOK, doLimited(t, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, doLimited(t, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLimited(t, handler, testRemoteAddr).Code)
}

func TestConnectionSlots_AcquireRelease(t *testing.T) {
	slots := newConnectionSlots(2)

	assert.True(t, slots.acquire())
	assert.True(t, slots.acquire())
	assert.False(t, slots.acquire())
	assert.Equal(t, int64(2), slots.current())

	slots.release()
	assert.True(t, slots.acquire())
}

func TestConnectionSlots_ConcurrentAcquireNeverExceedsMax(t *testing.T) {
	slots := newConnectionSlots(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if slots.acquire() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, int64(10), slots.current())
}
