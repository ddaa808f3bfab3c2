package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLogsMutations(t *testing.T) {
	sink := &memLogger{}
	mw := NewMiddleware(sink, false)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/v1/folders", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, sink.count())
}

func TestMiddlewareSkipsQuietReads(t *testing.T) {
	sink := &memLogger{}
	mw := NewMiddleware(sink, false)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/folders", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 0, sink.count())
}

func TestMiddlewareLogsDenials(t *testing.T) {
	sink := &memLogger{}
	mw := NewMiddleware(sink, false)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest("GET", "/api/v1/folders/7", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, sink.count())
}

func TestMiddlewareLogsSensitivePaths(t *testing.T) {
	sink := &memLogger{}
	mw := NewMiddleware(sink, false)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/auth/sso/saml/login", "/admin/users", "/audit/events"} {
		req := httptest.NewRequest("GET", path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 3, sink.count())
}

func TestMiddlewarePlacesLoggerInContext(t *testing.T) {
	sink := &memLogger{}
	mw := NewMiddleware(sink, false)

	var sawLogger bool
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = FromContext(r.Context()).(*memLogger)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, sawLogger)
}
