package session_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-dashboard-client/apimodel"
	"github.com/jrsteele09/go-dashboard-client/credentials"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api/v1/dashboard"

// backend is a scriptable dashboard API. Data endpoints accept only validToken;
// refresh behaviour is supplied per test.
type backend struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	validToken    string
	authHeaders   []string
	refreshBodies []apimodel.RenewalRequest

	dataCalls    atomic.Int32
	rejections   atomic.Int32
	refreshCalls atomic.Int32

	onRefresh func(w http.ResponseWriter, r *http.Request)
	onData    func(w http.ResponseWriter, r *http.Request) bool
}

func newBackend(t *testing.T, validToken string) *backend {
	t.Helper()
	b := &backend{t: t, validToken: validToken}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc(apiPrefix+"/", b.handleData)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) setValidToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validToken = token
}

func (b *backend) headers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func (b *backend) refreshRequests() []apimodel.RenewalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]apimodel.RenewalRequest(nil), b.refreshBodies...)
}

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	var body apimodel.RenewalRequest
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)
	b.mu.Lock()
	b.refreshBodies = append(b.refreshBodies, body)
	b.mu.Unlock()

	if b.onRefresh != nil {
		b.onRefresh(w, r)
		return
	}
	http.Error(w, `{"message":"refresh not scripted"}`, http.StatusInternalServerError)
}

func (b *backend) handleData(w http.ResponseWriter, r *http.Request) {
	b.dataCalls.Add(1)
	auth := r.Header.Get("Authorization")
	b.mu.Lock()
	b.authHeaders = append(b.authHeaders, auth)
	valid := b.validToken
	b.mu.Unlock()

	if b.onData != nil && b.onData(w, r) {
		return
	}
	if auth != "Bearer "+valid {
		b.rejections.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": r.URL.Path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func refreshWith(access, refresh string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"tokens": map[string]string{"accessToken": access, "refreshToken": refresh}},
		})
	}
}

type fixture struct {
	backend  *backend
	kv       *credentials.MemoryKV
	store    *credentials.Store
	session  *session.Session
	registry *prometheus.Registry
	ended    atomic.Int32
}

func newFixture(t *testing.T, validToken string, opts ...session.Option) *fixture {
	t.Helper()
	f := &fixture{
		backend:  newBackend(t, validToken),
		kv:       credentials.NewMemoryKV(),
		registry: prometheus.NewRegistry(),
	}
	f.store = credentials.NewStore(f.kv)
	base := []session.Option{
		session.WithBaseURL(f.backend.server.URL),
		session.WithSessionEndedHandler(func() { f.ended.Add(1) }),
		session.WithMetrics(f.registry),
	}
	s, err := session.New(f.store, append(base, opts...)...)
	require.NoError(t, err)
	f.session = s
	return f
}

func (f *fixture) login(t *testing.T, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, access, refresh))
	require.NoError(t, f.store.SaveUser(ctx, json.RawMessage(`{"id":1,"role":"OWNER"}`)))
}

func (f *fixture) requireCleared(t *testing.T) {
	t.Helper()
	require.Equal(t, 0, f.kv.Len())
}

func (f *fixture) requireCredentials(t *testing.T, access, refresh string) {
	t.Helper()
	c, ok, err := f.store.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, access, c.AccessToken)
	require.Equal(t, refresh, c.RefreshToken)
}

// waiters reads the number of callers queued behind the running refresh
func (f *fixture) waiters() int {
	families, err := f.registry.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() == "dashboard_client_token_refresh_waiters" && len(mf.GetMetric()) > 0 {
			return int(mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	return 0
}

// holdRefreshUntil blocks a refresh handler until cond holds, giving up after a few seconds
func holdRefreshUntil(cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// roundTripFunc lets a test fail specific requests at the transport level
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
