package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiHost     = "api.test"
	bigBodySize = maxStoredBytes + 4096
)

// switchTransport forwards to http.DefaultTransport until taken offline.
// Requests for apiHost are routed to the origin server.
type switchTransport struct {
	origin  string
	offline atomic.Bool
	calls   atomic.Int32
}

func (s *switchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	if s.offline.Load() {
		return nil, errors.New("network unreachable")
	}
	if req.URL.Host == apiHost {
		req = req.Clone(req.Context())
		req.URL.Host = s.origin
		req.Host = s.origin
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>home</html>")
	})
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<html>index</html>")
	})
	mux.HandleFunc("/js/app.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		io.WriteString(w, "console.log('app')")
	})
	mux.HandleFunc("/css/extra.css", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "body{}")
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"q":"`+r.URL.Query().Get("what")+`"}]}`)
	})
	mux.HandleFunc("/big.bin", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), bigBodySize))
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestProxy serves the origin as both the front-end and, through apiHost,
// the API so one httptest server covers both policies.
func newTestProxy(t *testing.T, storage Storage) (*Proxy, *switchTransport, *httptest.Server, string) {
	t.Helper()
	srv := newOrigin(t)
	u, _ := url.Parse(srv.URL)
	link := &switchTransport{origin: u.Host}
	apiBase := "http://" + apiHost
	p, err := New(Options{
		Origin:    srv.URL,
		APIHosts:  []string{apiHost},
		Version:   "v1.2",
		Manifest:  []string{"/", "/index.html", "/js/app.js"},
		Storage:   storage,
		Transport: link,
	})
	require.NoError(t, err)
	return p, link, srv, apiBase
}

func get(t *testing.T, rt http.RoundTripper, rawURL string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Origin: "not a url", Version: "v1"})
	assert.Error(t, err)
	_, err = New(Options{Origin: "http://localhost:8080"})
	assert.Error(t, err)
}

func TestInstallStoresManifest(t *testing.T) {
	p, _, _, _ := newTestProxy(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Install(ctx))
	assert.Equal(t, StateInstalled, p.State())

	keys, err := p.storage.Keys(ctx, p.StaticPartition())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/", "/index.html", "/js/app.js"}, keys)
}

func TestInstallFailureStoresNothing(t *testing.T) {
	srv := newOrigin(t)
	storage := NewMemoryStorage()
	p, err := New(Options{
		Origin:   srv.URL,
		Version:  "v1.2",
		Manifest: []string{"/", "/missing.png"},
		Storage:  storage,
	})
	require.NoError(t, err)

	err = p.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.png")
	assert.Equal(t, StateRedundant, p.State())

	parts, _ := storage.Partitions(context.Background())
	assert.Empty(t, parts)

	assert.ErrorIs(t, p.Install(context.Background()), ErrInvalidTransition)
}

func TestInstallKeepsPersistedVersionWhenOriginDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.db")
	ctx := context.Background()

	p, link, srv, _ := newTestProxy(t, newSQLStorage(t, path))
	require.NoError(t, p.Start(ctx))
	get(t, p, srv.URL+"/css/extra.css", nil)

	link.offline.Store(true)
	restarted, err := New(Options{
		Origin:    srv.URL,
		APIHosts:  []string{apiHost},
		Version:   "v1.2",
		Manifest:  []string{"/", "/index.html", "/js/app.js"},
		Storage:   newSQLStorage(t, path),
		Transport: link,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.Start(ctx))
	assert.Equal(t, StateActivated, restarted.State())

	resp := get(t, restarted, srv.URL+"/js/app.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('app')", body(t, resp))
	assert.Equal(t, "static-v1.2", resp.Header.Get(HeaderCache))

	resp = get(t, restarted, srv.URL+"/css/extra.css", nil)
	assert.Equal(t, "body{}", body(t, resp))
	assert.Equal(t, "dynamic-v1.2", resp.Header.Get(HeaderCache))
}

func TestInstallOriginDownWithIncompletePartition(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Put(ctx, "static-v1.2", "/", Entry{Status: 200}))

	p, link, _, _ := newTestProxy(t, storage)
	link.offline.Store(true)
	assert.Error(t, p.Start(ctx))
	assert.Equal(t, StateRedundant, p.State())
}

func TestActivateDeletesStalePartitions(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Put(ctx, "static-v1.1", "/", Entry{Status: 200}))
	require.NoError(t, storage.Put(ctx, "dynamic-v1.1", "/x", Entry{Status: 200}))
	require.NoError(t, storage.Put(ctx, "dynamic-v1.2", "/kept", Entry{Status: 200}))

	p, _, _, _ := newTestProxy(t, storage)
	require.NoError(t, p.Start(ctx))
	assert.Equal(t, StateActivated, p.State())

	parts, err := storage.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v1.2", "static-v1.2"}, parts)
}

func TestActivateBeforeInstall(t *testing.T) {
	p, _, _, _ := newTestProxy(t, nil)
	assert.ErrorIs(t, p.Activate(context.Background()), ErrInvalidTransition)
	assert.Equal(t, StateNew, p.State())
}

func TestPassThroughBeforeActivation(t *testing.T) {
	p, link, srv, _ := newTestProxy(t, nil)
	resp := get(t, p, srv.URL+"/js/app.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), link.calls.Load())

	_, err := p.Match(context.Background(), resp.Request)
	assert.ErrorIs(t, err, ErrNotActivated)
}

func TestCacheFirstServesManifestOffline(t *testing.T) {
	p, link, srv, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))
	installCalls := link.calls.Load()

	resp := get(t, p, srv.URL+"/js/app.js", nil)
	assert.Equal(t, "console.log('app')", body(t, resp))
	assert.Equal(t, "static-v1.2", resp.Header.Get(HeaderCache))
	assert.Equal(t, installCalls, link.calls.Load(), "cached asset must not hit the network")

	link.offline.Store(true)
	resp = get(t, p, srv.URL+"/js/app.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('app')", body(t, resp))
}

func TestCacheFirstStoresRuntimeAssets(t *testing.T) {
	p, link, srv, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))

	resp := get(t, p, srv.URL+"/css/extra.css", nil)
	assert.Equal(t, "body{}", body(t, resp))

	link.offline.Store(true)
	resp = get(t, p, srv.URL+"/css/extra.css", nil)
	assert.Equal(t, "body{}", body(t, resp))
	assert.Equal(t, "dynamic-v1.2", resp.Header.Get(HeaderCache))
}

func TestOfflineFallbacks(t *testing.T) {
	p, link, srv, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))
	link.offline.Store(true)

	t.Run("navigation gets cached home page", func(t *testing.T) {
		resp := get(t, p, srv.URL+"/jobs/42", http.Header{"Accept": {"text/html,application/xhtml+xml"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "<html>home</html>", body(t, resp))
	})

	t.Run("image gets empty 204", func(t *testing.T) {
		resp := get(t, p, srv.URL+"/img/logo.png", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, body(t, resp))
	})

	t.Run("other gets 503 json", func(t *testing.T) {
		resp := get(t, p, srv.URL+"/data.txt", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Results []any  `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(body(t, resp)), &payload))
		assert.Equal(t, "offline", payload.Error)
		assert.NotEmpty(t, payload.Message)
		assert.NotNil(t, payload.Results)
		assert.Empty(t, payload.Results)
	})

	assert.False(t, p.Online())
}

func TestLargeResponsePassesThroughUnstored(t *testing.T) {
	p, _, srv, _ := newTestProxy(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	resp := get(t, p, srv.URL+"/big.bin", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body(t, resp), bigBodySize)

	keys, err := p.storage.Keys(ctx, p.DynamicPartition())
	require.NoError(t, err)
	assert.NotContains(t, keys, "/big.bin")
}

func TestNetworkFirstAPI(t *testing.T) {
	p, link, _, apiBase := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))

	resp := get(t, p, apiBase+"/api/search?what=go", nil)
	assert.Equal(t, `{"results":[{"q":"go"}]}`, body(t, resp))
	assert.Empty(t, resp.Header.Get(HeaderCache))
	assert.True(t, p.Online())

	link.offline.Store(true)
	resp = get(t, p, apiBase+"/api/search?what=go", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"results":[{"q":"go"}]}`, body(t, resp))
	assert.Equal(t, "dynamic-v1.2", resp.Header.Get(HeaderCache))

	resp = get(t, p, apiBase+"/api/search?what=rust", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body(t, resp), `"results":[]`)

	link.offline.Store(false)
	get(t, p, apiBase+"/api/search?what=rust", nil)
	assert.True(t, p.Online())
}

func TestNetworkFirstSkipsErrorResponses(t *testing.T) {
	p, link, _, apiBase := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))

	resp := get(t, p, apiBase+"/api/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	link.offline.Store(true)
	resp = get(t, p, apiBase+"/api/broken", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNonGetPassesThrough(t *testing.T) {
	p, link, srv, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))
	link.offline.Store(true)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/js/app.js", strings.NewReader("x"))
	_, err := p.RoundTrip(req)
	assert.Error(t, err)
}

func TestServeHTTP(t *testing.T) {
	p, link, _, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))
	link.offline.Store(true)

	front := httptest.NewServer(p)
	defer front.Close()

	resp, err := http.Get(front.URL + "/js/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('app')", body(t, resp))
}

func TestStatus(t *testing.T) {
	p, _, _, _ := newTestProxy(t, nil)
	require.NoError(t, p.Start(context.Background()))

	s := p.Status(context.Background())
	assert.Equal(t, StateActivated, s.State)
	assert.Equal(t, "v1.2", s.Version)
	assert.True(t, s.Online)
	assert.Equal(t, 3, s.Partitions["static-v1.2"])
}

func TestTransitions(t *testing.T) {
	assert.True(t, IsTransitionAllowed(StateNew, StateInstalling))
	assert.True(t, IsTransitionAllowed(StateActivated, StateRedundant))
	assert.False(t, IsTransitionAllowed(StateNew, StateActivated))
	assert.False(t, IsTransitionAllowed(StateRedundant, StateNew))

	st, err := ParseState("activated")
	require.NoError(t, err)
	assert.Equal(t, StateActivated, st)
	_, err = ParseState("sleeping")
	assert.Error(t, err)
}
