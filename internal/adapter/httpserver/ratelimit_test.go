package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedRequest(t *testing.T, handler echo.HandlerFunc, remoteAddr, session string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session+"/voice", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(session)

	require.NoError(t, handler(c))
	return rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimiter_AllowsRequestsUnderLimit(t *testing.T) {
	handler := newRateLimiter(10, 3)(okHandler)

	for range 3 {
		rec := limitedRequest(t, handler, testRemoteAddr, "a")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_BlocksExcessiveRequests(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr, "a").Code)

	rec := limitedRequest(t, handler, testRemoteAddr, "a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestRateLimiter_DifferentIPsAreIndependent(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr, "a").Code)
	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, "5.6.7.8:5678", "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, testRemoteAddr, "a").Code)
}

func TestRateLimiter_SessionsAreIndependent(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr, "a").Code)
	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, testRemoteAddr, "b").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, testRemoteAddr, "b").Code)
}
