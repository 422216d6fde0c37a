package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/joblens/internal/engine"
)

const (
	apiKeyPrefix   = "api-"
	maxStoredBytes = 10 * 1024 * 1024

	// HeaderCache tells clients which partition served a response.
	HeaderCache = "X-Joblens-Cache"

	offlineMessage = "You are offline and this content is not cached yet. Please check your connection."
)

// Options configures New.
type Options struct {
	Origin    string            // static front-end origin, e.g. http://localhost:8080
	APIHosts  []string          // upstream API hosts served network-first
	Version   string            // partition version tag, e.g. "v1.2"
	Manifest  []string          // root-relative paths stored at install
	Storage   Storage           // default: MemoryStorage
	Transport http.RoundTripper // network; default http.DefaultTransport
	Now       func() time.Time
}

// Proxy is a versioned cache manager with a fetch policy. It implements
// http.RoundTripper for in-process clients and http.Handler for browsers.
type Proxy struct {
	origin   *url.URL
	apiHosts map[string]bool
	version  string
	manifest []string
	storage  Storage
	network  http.RoundTripper
	now      func() time.Time

	life   *lifecycle
	online atomic.Bool
}

// Status is a snapshot for the cache_status tool.
type Status struct {
	State      State          `json:"state"`
	Version    string         `json:"version"`
	Online     bool           `json:"online"`
	Partitions map[string]int `json:"partitions"` // name → entry count
}

// New validates opts and returns a proxy in StateNew.
func New(opts Options) (*Proxy, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("proxy: invalid origin %q", opts.Origin)
	}
	if opts.Version == "" {
		return nil, errors.New("proxy: version is required")
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	hosts := make(map[string]bool, len(opts.APIHosts))
	for _, h := range opts.APIHosts {
		hosts[strings.ToLower(h)] = true
	}
	p := &Proxy{
		origin:   origin,
		apiHosts: hosts,
		version:  opts.Version,
		manifest: opts.Manifest,
		storage:  opts.Storage,
		network:  opts.Transport,
		now:      opts.Now,
		life:     newLifecycle(),
	}
	p.online.Store(true)
	return p, nil
}

// StaticPartition is the name of the install-time partition.
func (p *Proxy) StaticPartition() string { return "static-" + p.version }

// DynamicPartition is the name of the runtime partition.
func (p *Proxy) DynamicPartition() string { return "dynamic-" + p.version }

// State returns the lifecycle state.
func (p *Proxy) State() State { return p.life.current() }

// Online reports the last observed network reachability.
func (p *Proxy) Online() bool { return p.online.Load() }

// Start installs then activates.
func (p *Proxy) Start(ctx context.Context) error {
	if err := p.Install(ctx); err != nil {
		return err
	}
	return p.Activate(ctx)
}

// Install fetches every manifest path from the origin and stores them in the
// static partition. Any non-200 asset fails the install, nothing is stored and
// the proxy becomes redundant, unless the storage already holds a complete
// static partition of this version. That copy is then kept and installed.
func (p *Proxy) Install(ctx context.Context) error {
	if err := p.life.transition(StateInstalling); err != nil {
		return err
	}
	slog.Info("proxy: installing", slog.String("version", p.version), slog.Int("assets", len(p.manifest)))

	entries := make(map[string]Entry, len(p.manifest))
	for _, asset := range p.manifest {
		e, err := p.fetchAsset(ctx, asset)
		if err != nil {
			if p.persisted(ctx) {
				slog.Warn("proxy: install failed, keeping persisted assets",
					slog.String("version", p.version), slog.String("asset", asset), slog.Any("error", err))
				return p.life.transition(StateInstalled)
			}
			_ = p.life.transition(StateRedundant)
			return fmt.Errorf("proxy: install %s: %w", asset, err)
		}
		entries[asset] = e
	}
	if err := p.storage.PutAll(ctx, p.StaticPartition(), entries); err != nil {
		_ = p.life.transition(StateRedundant)
		return fmt.Errorf("proxy: install: %w", err)
	}
	return p.life.transition(StateInstalled)
}

// persisted reports whether the static partition of this version already
// holds every manifest asset, e.g. from a previous run on the same storage.
func (p *Proxy) persisted(ctx context.Context) bool {
	if len(p.manifest) == 0 {
		return false
	}
	keys, err := p.storage.Keys(ctx, p.StaticPartition())
	if err != nil {
		return false
	}
	have := make(map[string]bool, len(keys))
	for _, k := range keys {
		have[k] = true
	}
	for _, asset := range p.manifest {
		if !have[asset] {
			return false
		}
	}
	return true
}

func (p *Proxy) fetchAsset(ctx context.Context, asset string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.resolve(asset).String(), nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := p.network.RoundTrip(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStoredBytes+1))
	if err != nil {
		return Entry{}, err
	}
	if len(body) > maxStoredBytes {
		return Entry{}, fmt.Errorf("asset larger than %d bytes", maxStoredBytes)
	}
	return Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: p.now()}, nil
}

// Activate deletes every partition other than the current static/dynamic pair.
func (p *Proxy) Activate(ctx context.Context) error {
	if err := p.life.transition(StateActivating); err != nil {
		return err
	}
	names, err := p.storage.Partitions(ctx)
	if err != nil {
		_ = p.life.transition(StateRedundant)
		return fmt.Errorf("proxy: activate: %w", err)
	}
	for _, name := range names {
		if name == p.StaticPartition() || name == p.DynamicPartition() {
			continue
		}
		if err := p.storage.DeletePartition(ctx, name); err != nil {
			_ = p.life.transition(StateRedundant)
			return fmt.Errorf("proxy: activate: %w", err)
		}
		slog.Info("proxy: deleted stale cache", slog.String("partition", name))
	}
	if err := p.life.transition(StateActivated); err != nil {
		return err
	}
	slog.Info("proxy: activated", slog.String("version", p.version))
	return nil
}

// Status reports lifecycle, reachability and partition sizes.
func (p *Proxy) Status(ctx context.Context) Status {
	s := Status{State: p.State(), Version: p.version, Online: p.Online(), Partitions: map[string]int{}}
	names, err := p.storage.Partitions(ctx)
	if err != nil {
		slog.Warn("proxy: status", slog.Any("error", err))
		return s
	}
	for _, n := range names {
		keys, err := p.storage.Keys(ctx, n)
		if err != nil {
			continue
		}
		s.Partitions[n] = len(keys)
	}
	return s
}

// Match looks up req in the static then the dynamic partition.
func (p *Proxy) Match(ctx context.Context, req *http.Request) (*http.Response, error) {
	if p.State() != StateActivated {
		return nil, ErrNotActivated
	}
	key, partition := p.cacheKey(req)
	if partition == "" {
		return p.matchAny(ctx, req, key)
	}
	e, err := p.storage.Get(ctx, partition, key)
	if err != nil {
		return nil, err
	}
	return entryResponse(req, e, partition), nil
}

func (p *Proxy) matchAny(ctx context.Context, req *http.Request, key string) (*http.Response, error) {
	for _, part := range []string{p.StaticPartition(), p.DynamicPartition()} {
		e, err := p.storage.Get(ctx, part, key)
		if err == nil {
			return entryResponse(req, e, part), nil
		}
		if !errors.Is(err, ErrMiss) {
			slog.Warn("proxy: storage read failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return nil, ErrMiss
}

// cacheKey returns the storage key; partition is set for API keys, which live only in dynamic.
func (p *Proxy) cacheKey(req *http.Request) (key, partition string) {
	if p.isAPI(req.URL) {
		return apiKeyPrefix + req.URL.String(), p.DynamicPartition()
	}
	return req.URL.RequestURI(), ""
}

// RoundTrip applies the fetch policy. Before activation, and for non-GET or
// foreign-host requests, it passes straight to the network.
func (p *Proxy) RoundTrip(req *http.Request) (*http.Response, error) {
	if p.State() != StateActivated || req.Method != http.MethodGet {
		return p.network.RoundTrip(req)
	}
	switch {
	case p.isAPI(req.URL):
		return p.networkFirst(req)
	case p.sameOrigin(req.URL):
		return p.cacheFirst(req)
	default:
		return p.network.RoundTrip(req)
	}
}

// networkFirst serves API calls: network, then the last stored copy, then an offline payload.
func (p *Proxy) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := apiKeyPrefix + req.URL.String()

	resp, err := p.network.RoundTrip(req)
	if err == nil {
		p.setOnline(true)
		engine.IncrProxyNetworkServed()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resp, nil
		}
		return p.storeAndReturn(ctx, req, resp, p.DynamicPartition(), key), nil
	}
	p.setOnline(false)

	if e, gerr := p.storage.Get(ctx, p.DynamicPartition(), key); gerr == nil {
		engine.IncrProxyCacheHits()
		slog.Debug("proxy: serving cached API response", slog.String("url", req.URL.String()))
		return entryResponse(req, e, p.DynamicPartition()), nil
	}
	engine.IncrProxyOffline()
	slog.Warn("proxy: API unreachable and not cached", slog.String("url", req.URL.String()), slog.Any("error", err))
	return offlineResponse(req), nil
}

// cacheFirst serves origin assets: cache, then network (200s are stored), then offline fallbacks.
func (p *Proxy) cacheFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := req.URL.RequestURI()

	if resp, err := p.matchAny(ctx, req, key); err == nil {
		engine.IncrProxyCacheHits()
		return resp, nil
	}

	resp, err := p.network.RoundTrip(req)
	if err == nil {
		p.setOnline(true)
		engine.IncrProxyNetworkServed()
		if resp.StatusCode != http.StatusOK {
			return resp, nil
		}
		return p.storeAndReturn(ctx, req, resp, p.DynamicPartition(), key), nil
	}
	p.setOnline(false)
	engine.IncrProxyOffline()

	switch {
	case isNavigation(req):
		for _, doc := range []string{"/", "/index.html"} {
			if e, gerr := p.storage.Get(ctx, p.StaticPartition(), doc); gerr == nil {
				return entryResponse(req, e, p.StaticPartition()), nil
			}
		}
	case isImage(req):
		return emptyResponse(req, http.StatusNoContent), nil
	}
	slog.Debug("proxy: offline fallback", slog.String("url", req.URL.String()), slog.Any("error", err))
	return offlineResponse(req), nil
}

// storeAndReturn buffers resp, stores a copy and returns an equivalent response.
// Bodies over maxStoredBytes, or that fail to read, are streamed through unstored.
func (p *Proxy) storeAndReturn(ctx context.Context, req *http.Request, resp *http.Response, partition, key string) *http.Response {
	orig := resp.Body
	body, err := io.ReadAll(io.LimitReader(orig, maxStoredBytes+1))
	if err != nil || len(body) > maxStoredBytes {
		slog.Debug("proxy: response not stored", slog.String("key", key), slog.Int("buffered", len(body)), slog.Any("error", err))
		resp.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(body), orig), Closer: orig}
		return resp
	}
	orig.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	e := Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: p.now()}
	if err := p.storage.Put(ctx, partition, key, e); err != nil {
		slog.Warn("proxy: store failed", slog.String("key", key), slog.Any("error", err))
	}
	resp.ContentLength = int64(len(body))
	return resp
}

// replayBody yields the buffered prefix then the rest of the original body.
type replayBody struct {
	io.Reader
	io.Closer
}

func (p *Proxy) setOnline(up bool) {
	if p.online.Swap(up) == up {
		return
	}
	if up {
		slog.Info("proxy: network back online")
	} else {
		slog.Warn("proxy: network offline, serving from cache")
	}
}

func (p *Proxy) isAPI(u *url.URL) bool {
	return p.apiHosts[strings.ToLower(u.Hostname())]
}

func (p *Proxy) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, p.origin.Scheme) && strings.EqualFold(u.Host, p.origin.Host)
}

func (p *Proxy) resolve(asset string) *url.URL {
	ref, err := url.Parse(asset)
	if err != nil {
		return p.origin
	}
	return p.origin.ResolveReference(ref)
}

// ServeHTTP proxies browser requests. Origin-form requests are resolved
// against the origin; absolute-form requests are forwarded as-is.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.URL
	if !target.IsAbs() {
		target = p.resolve(r.URL.RequestURI())
	}
	out := r.Clone(r.Context())
	out.URL = target
	out.Host = target.Host
	out.RequestURI = ""
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	resp, err := p.RoundTrip(out)
	if err != nil {
		slog.Warn("proxy: upstream error", slog.String("url", target.String()), slog.Any("error", err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func isNavigation(req *http.Request) bool {
	return req.Header.Get("Sec-Fetch-Mode") == "navigate" ||
		strings.Contains(req.Header.Get("Accept"), "text/html")
}

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true,
}

func isImage(req *http.Request) bool {
	return req.Header.Get("Sec-Fetch-Dest") == "image" ||
		strings.HasPrefix(req.Header.Get("Accept"), "image/") ||
		imageExt[strings.ToLower(path.Ext(req.URL.Path))]
}

// offlinePayload is the structured 503 body.
type offlinePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Results []any  `json:"results"`
}

func offlineResponse(req *http.Request) *http.Response {
	body, _ := json.Marshal(offlinePayload{Error: "offline", Message: offlineMessage, Results: []any{}})
	resp := emptyResponse(req, http.StatusServiceUnavailable)
	resp.Header.Set("Content-Type", "application/json")
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return resp
}

func emptyResponse(req *http.Request, code int) *http.Response {
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode: code,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       http.NoBody,
		Request:    req,
	}
}

func entryResponse(req *http.Request, e Entry, partition string) *http.Response {
	resp := emptyResponse(req, e.Status)
	resp.Header = e.Header.Clone()
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(HeaderCache, partition)
	resp.Body = io.NopCloser(bytes.NewReader(e.Body))
	resp.ContentLength = int64(len(e.Body))
	return resp
}
