package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-insights/internal/common"
)

func TestUserContextMiddleware_Headers(t *testing.T) {
	var got *common.UserContext
	handler := userContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = common.UserContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
	req.Header.Set(HeaderUserID, " alice ")
	req.Header.Set(HeaderSessionID, "tab-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "tab-1", got.SessionID)
}

func TestUserContextMiddleware_NoHeaders(t *testing.T) {
	handler := userContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, common.UserContextFromContext(r.Context()))
		assert.Equal(t, common.DefaultUserID, common.ResolveUserID(r.Context()))
		assert.Equal(t, common.DefaultUserID, common.ResolveSessionID(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
}

func TestUserContextMiddleware_SessionDefaultsToUser(t *testing.T) {
	handler := userContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bob", common.ResolveSessionID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/trace", nil)
	req.Header.Set(HeaderUserID, "bob")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get("X-Correlation-ID"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rr.Header().Get("X-Correlation-ID"), 8)
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/insights", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), HeaderUserID)
	assert.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), HeaderTraceID)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Internal server error")
}

func TestLoggingMiddleware_LogsErrorsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("info", &buf)
	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderTraceID, "trace-9")
		WriteError(w, http.StatusBadRequest, "nope")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/insights?horizon_months=x", nil))

	assert.Contains(t, buf.String(), "HTTP request")
	assert.Contains(t, buf.String(), "trace-9")
	assert.Contains(t, buf.String(), "400")
}

func TestLoggingMiddleware_SuccessBelowInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLoggerWithOutput("info", &buf)
	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Empty(t, buf.String())
}
