package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/config"
)

type upstreamCall struct {
	method string
	uri    string
	header http.Header
	body   string
}

func newUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, chan upstreamCall) {
	t.Helper()
	calls := make(chan upstreamCall, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- upstreamCall{method: r.Method, uri: r.URL.RequestURI(), header: r.Header.Clone(), body: string(body)}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newProxy(t *testing.T, upstream string, opts ...Option) http.Handler {
	t.Helper()
	s, err := New(config.ProxyConfig{Upstream: upstream, APIKey: "sk-proxy"}, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func TestForwardsPostWithKey(t *testing.T) {
	upstream, calls := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Upstream-Secret", "hidden")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {}\n\ndata: [DONE]\n\n")
	})
	h := newProxy(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/chat/completions?beta=1", strings.NewReader(`{"model":"deepseek-chat"}`))
	req.Header.Set("Authorization", "Bearer client-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("X-Upstream-Secret"))
	assert.Equal(t, "data: {}\n\ndata: [DONE]\n\n", rec.Body.String())

	call := <-calls
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/chat/completions?beta=1", call.uri)
	assert.Equal(t, "Bearer sk-proxy", call.header.Get("Authorization"))
	assert.Equal(t, "application/json", call.header.Get("Content-Type"))
	assert.Equal(t, `{"model":"deepseek-chat"}`, call.body)
}

func TestForwardsGetAndDelete(t *testing.T) {
	upstream, calls := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list"}`)
	})
	h := newProxy(t, upstream.URL)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/models", nil))

		assert.Equal(t, http.StatusOK, rec.Code, method)
		assert.JSONEq(t, `{"object":"list"}`, rec.Body.String())
		call := <-calls
		assert.Equal(t, method, call.method)
		assert.Equal(t, "/models", call.uri)
	}
}

func TestRejectsInvalidJSON(t *testing.T) {
	upstream, calls := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	h := newProxy(t, upstream.URL)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/chat/completions", strings.NewReader("{oops")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON body")
	assert.Empty(t, calls)
}

func TestCopiesUpstreamStatus(t *testing.T) {
	upstream, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	})
	h := newProxy(t, upstream.URL)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"bad key"}`, rec.Body.String())
}

func TestUpstreamTimeout(t *testing.T) {
	upstream, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	h := newProxy(t, upstream.URL, WithTimeout(50*time.Millisecond))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestUpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()
	h := newProxy(t, url)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotForwarded(t *testing.T) {
	upstream, calls := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	h := newProxy(t, upstream.URL)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/models", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, calls)
}

func TestNewDefaultsAndValidation(t *testing.T) {
	s, err := New(config.ProxyConfig{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProxyListen, s.Addr())
	assert.Equal(t, config.DefaultProxyUpstream, s.upstream)
	assert.Equal(t, 60*time.Second, s.timeout)

	_, err = New(config.ProxyConfig{Upstream: "not a url"})
	assert.Error(t, err)
}
