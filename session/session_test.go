package session_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AttachesBearerToken(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")

	var gotRequestID, gotContentType string
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		return false
	}

	raw, err := f.session.Post(context.Background(), "/bookings/1/confirm", map[string]any{"note": "ok"})
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"path":"/api/v1/dashboard/bookings/1/confirm"}`, string(raw))
	require.Equal(t, []string{"Bearer A1"}, f.backend.headers())
	require.NotEmpty(t, gotRequestID)
	require.Equal(t, "application/json", gotContentType)
	require.Zero(t, f.backend.refreshCalls.Load())
}

func TestSession_UnauthenticatedRequestHasNoHeader(t *testing.T) {
	f := newFixture(t, "A1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		writeJSON(w, http.StatusOK, map[string]any{"public": true})
		return true
	}

	_, err := f.session.Get(context.Background(), "/restaurants/public")
	require.NoError(t, err)
	require.Equal(t, []string{""}, f.backend.headers())
}

func TestSession_ConcurrentExpiryTriggersOneRefresh(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")

	const callers = 3
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		holdRefreshUntil(func() bool { return f.waiters() == callers-1 })
		refreshWith("A2", "R2")(w, r)
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.session.Get(context.Background(), "/bookings")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, "R1", f.backend.refreshRequests()[0].RefreshToken)

	replays := 0
	for _, h := range f.backend.headers() {
		if h == "Bearer A2" {
			replays++
		}
	}
	require.Equal(t, callers, replays)
	f.requireCredentials(t, "A2", "R2")
	require.Zero(t, f.ended.Load())
}

func TestSession_SecondRejectionIsHardFailure(t *testing.T) {
	f := newFixture(t, "never-valid")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = refreshWith("A2", "R2")

	_, err := f.session.Get(context.Background(), "/bookings")
	require.Error(t, err)
	require.Equal(t, session.KindAuthExpired, session.KindOf(err))
	require.False(t, session.IsTerminal(err))

	require.Equal(t, int32(2), f.backend.dataCalls.Load())
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, []string{"Bearer A1", "Bearer A2"}, f.backend.headers())
}

func TestSession_UnreachableRefreshKeepsSession(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/auth/refresh" {
			return nil, errors.New("dial tcp 127.0.0.1:8027: connect: connection refused")
		}
		return http.DefaultTransport.RoundTrip(r)
	})}
	f := newFixture(t, "A2", session.WithHTTPClient(client))
	f.login(t, "A1", "R1")

	_, err := f.session.Get(context.Background(), "/bookings")
	require.Error(t, err)
	require.False(t, session.IsTerminal(err))
	require.False(t, errors.Is(err, session.ErrSessionExpired))
	require.Equal(t, session.KindTransport, session.KindOf(err))

	var re *session.RenewalError
	require.ErrorAs(t, err, &re)

	f.requireCredentials(t, "A1", "R1")
	user, ok, err := f.store.User(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, user)
	require.Zero(t, f.ended.Load())
}

func TestSession_RefreshServerErrorIsTransient(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html><body>502 Bad Gateway</body></html>")
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.Error(t, err)
	require.False(t, session.IsTerminal(err))
	require.NotContains(t, err.Error(), "<html>")
	f.requireCredentials(t, "A1", "R1")
}

func TestSession_MalformedRefreshResponseIsTransient(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"jwt": "A2"}})
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.ErrorIs(t, err, session.ErrRefreshMalformed)
	require.False(t, session.IsTerminal(err))
	f.requireCredentials(t, "A1", "R1")
}

func TestSession_RejectedRefreshClearsSessionForEveryWaiter(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")

	const callers = 3
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		holdRefreshUntil(func() bool { return f.waiters() == callers-1 })
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "Invalid refresh token"}})
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.session.Get(context.Background(), "/tables")
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	for _, err := range errs {
		require.Error(t, err)
		require.True(t, session.IsTerminal(err))
		require.ErrorIs(t, err, session.ErrSessionExpired)
		require.ErrorIs(t, err, session.ErrRefreshRejected)
		require.Contains(t, err.Error(), "Invalid refresh token")
	}
	f.requireCleared(t)
	require.Equal(t, int32(1), f.ended.Load())
	require.False(t, f.session.IsAuthenticated(context.Background()))
}

func TestSession_ForbiddenRefreshIsTerminal(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "refresh token revoked"})
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.True(t, session.IsTerminal(err))
	f.requireCleared(t)
}

func TestSession_MissingRefreshTokenIsTerminal(t *testing.T) {
	f := newFixture(t, "A2")
	ctx := context.Background()
	require.NoError(t, f.kv.SetMany(ctx, map[string]string{"auth_token": "LEGACY", "user_info": `{"id":1}`}))

	_, err := f.session.Get(ctx, "/bookings")
	require.ErrorIs(t, err, session.ErrNoRefreshToken)
	require.True(t, session.IsTerminal(err))
	require.Zero(t, f.backend.refreshCalls.Load())
	f.requireCleared(t)
	require.Equal(t, int32(1), f.ended.Load())
}

func TestSession_SkipRenewal(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = refreshWith("A2", "R2")

	_, err := f.session.Request(context.Background(), session.Request{
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Body:        map[string]string{"email": "owner@example.com", "password": "wrong"},
		SkipRenewal: true,
	})
	require.Equal(t, session.KindAuthExpired, session.KindOf(err))
	require.Zero(t, f.backend.refreshCalls.Load())
	f.requireCredentials(t, "A1", "R1")
}

func TestSession_UsesTokenRenewedByAnotherCaller(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") == "Bearer A1" {
			// another caller finished a refresh while this request was in flight
			assert.NoError(t, f.store.Save(context.Background(), "A2", "R2"))
		}
		return false
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.NoError(t, err)
	require.Zero(t, f.backend.refreshCalls.Load())
	require.Equal(t, []string{"Bearer A1", "Bearer A2"}, f.backend.headers())
}

func TestSession_HardFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantKind    session.Kind
		wantMessage string
	}{
		{"payload too large", http.StatusRequestEntityTooLarge, "text/html", "<html>413</html>", session.KindPayloadTooLarge, "smaller than 5MB"},
		{"html error page", http.StatusInternalServerError, "text/html", "<!DOCTYPE html><h1>oops</h1>", session.KindHTTP, "non-JSON"},
		{"json message", http.StatusNotFound, "application/json", `{"message":"Booking not found"}`, session.KindHTTP, "Booking not found"},
		{"nested message", http.StatusForbidden, "application/json", `{"error":{"message":"Not your restaurant"}}`, session.KindHTTP, "Not your restaurant"},
		{"validation details", http.StatusUnprocessableEntity, "application/json", `{"error":{"details":[{"message":"name is required"},{"message":"capacity must be positive"}]}}`, session.KindHTTP, "name is required; capacity must be positive"},
		{"empty json error", http.StatusConflict, "application/json", `{}`, session.KindHTTP, "Conflict"},
		{"success but not json", http.StatusOK, "text/plain", "OK", session.KindDecode, "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "A1")
			f.login(t, "A1", "R1")
			f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
				return true
			}

			_, err := f.session.Get(context.Background(), "/bookings/9")
			require.Error(t, err)
			require.Equal(t, tt.wantKind, session.KindOf(err))
			require.Contains(t, err.Error(), tt.wantMessage)
			require.Contains(t, err.Error(), "GET /bookings/9")
			require.Zero(t, f.backend.refreshCalls.Load())
			f.requireCredentials(t, "A1", "R1")
		})
	}
}

func TestSession_ErrorCarriesValidationDetails(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"details": []map[string]string{{"field": "people_count", "message": "must be at least 1"}}}})
		return true
	}

	_, err := f.session.Post(context.Background(), "/bookings", map[string]int{"people_count": 0})
	var e *session.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusBadRequest, e.Status)
	require.Len(t, e.Details(), 1)
	require.Equal(t, "people_count", e.Details()[0].Field)
}

func TestSession_EmptySuccessBody(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		w.WriteHeader(http.StatusNoContent)
		return true
	}

	raw, err := f.session.Delete(context.Background(), "/notifications/3")
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))
}

func TestSession_OversizedResponse(t *testing.T) {
	f := newFixture(t, "A1", session.WithMaxResponseBytes(16))
	f.login(t, "A1", "R1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		writeJSON(w, http.StatusOK, map[string]string{"data": strings.Repeat("x", 64)})
		return true
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.Equal(t, session.KindDecode, session.KindOf(err))
}

func TestSession_RequestTimeout(t *testing.T) {
	f := newFixture(t, "A1", session.WithRequestTimeout(50*time.Millisecond))
	f.login(t, "A1", "R1")
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		return true
	}

	_, err := f.session.Get(context.Background(), "/bookings")
	require.Equal(t, session.KindTimeout, session.KindOf(err))
}

func TestSession_CallerCancellation(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")
	ctx, cancel := context.WithCancel(context.Background())
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		return true
	}

	_, err := f.session.Get(ctx, "/bookings")
	require.Equal(t, session.KindCanceled, session.KindOf(err))
}

func TestSession_RenewalTimeoutReleasesEveryWaiter(t *testing.T) {
	f := newFixture(t, "A2", session.WithRenewalTimeout(100*time.Millisecond))
	f.login(t, "A1", "R1")

	release := make(chan struct{})
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
			refreshWith("A2", "R2")(w, r)
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.session.Get(context.Background(), "/bookings")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		require.False(t, session.IsTerminal(err))
	}
	f.requireCredentials(t, "A1", "R1")

	// the in-flight flag was released: the next call refreshes and succeeds
	close(release)
	_, err := f.session.Get(context.Background(), "/bookings")
	require.NoError(t, err)
	f.requireCredentials(t, "A2", "R2")
}

func TestSession_UploadReplaysMultipartBody(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = refreshWith("A2", "")

	var contentType, upload string
	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer A2" {
			return false
		}
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return true
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return true
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		upload = header.Filename + ":" + string(content) + ":" + r.FormValue("type")
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": 5}})
		return true
	}

	raw, err := f.session.Upload(context.Background(), "/images", &session.FormFile{
		FileName: "cover.jpg",
		Content:  bytes.NewReader([]byte("jpegbytes")),
		Fields:   map[string]string{"type": "COVER"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"id":5}}`, string(raw))
	require.True(t, strings.HasPrefix(contentType, "multipart/form-data"))
	require.Equal(t, "cover.jpg:jpegbytes:COVER", upload)
	require.Equal(t, []string{"Bearer A1", "Bearer A2"}, f.backend.headers())
	// refresh returned no new refresh token, the old one is kept
	f.requireCredentials(t, "A2", "R1")
}

func TestSession_UploadWithoutFormData(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")

	_, err := f.session.Upload(context.Background(), "/images", (*session.FormFile)(nil))
	require.Equal(t, session.KindDecode, session.KindOf(err))
	require.ErrorIs(t, err, session.ErrInvalidBody)
	require.Zero(t, f.backend.dataCalls.Load())
}

func TestSession_Do(t *testing.T) {
	f := newFixture(t, "A1")
	f.login(t, "A1", "R1")

	type result struct {
		Success bool   `json:"success"`
		Path    string `json:"path"`
	}
	r, err := session.Do[result](context.Background(), f.session, session.Request{Method: http.MethodGet, Path: "/tables"})
	require.NoError(t, err)
	require.True(t, r.Success)
	require.Equal(t, apiPrefix+"/tables", r.Path)

	_, err = session.Do[[]int](context.Background(), f.session, session.Request{Method: http.MethodGet, Path: "/tables"})
	require.Equal(t, session.KindDecode, session.KindOf(err))
}

func TestSession_IsAuthenticatedAndLogout(t *testing.T) {
	f := newFixture(t, "A1")
	ctx := context.Background()

	require.False(t, f.session.IsAuthenticated(ctx))
	require.NoError(t, f.session.Logout(ctx))

	f.login(t, "A1", "R1")
	require.True(t, f.session.IsAuthenticated(ctx))

	require.NoError(t, f.session.Logout(ctx))
	require.False(t, f.session.IsAuthenticated(ctx))
	f.requireCleared(t)
	require.Equal(t, int32(2), f.ended.Load())
	require.Zero(t, f.backend.dataCalls.Load())
}

func TestSession_LogoutDuringRefreshDiscardsNewTokens(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		refreshWith("A2", "R2")(w, r)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := f.session.Get(ctx, "/bookings")
		errs <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never started")
	}
	require.NoError(t, f.session.Logout(ctx))
	releaseOnce.Do(func() { close(release) })

	err := <-errs
	require.True(t, session.IsTerminal(err))
	require.ErrorIs(t, err, session.ErrSessionEnded)
	require.False(t, f.session.IsAuthenticated(ctx))
	f.requireCleared(t)
	require.Equal(t, int32(1), f.ended.Load())
	require.Equal(t, int32(1), f.backend.dataCalls.Load())

	// a new login after the logout refreshes normally
	f.login(t, "A1", "R1")
	f.backend.onRefresh = refreshWith("A2", "R2")
	_, err = f.session.Get(ctx, "/bookings")
	require.NoError(t, err)
	f.requireCredentials(t, "A2", "R2")
}

func TestSession_ManualRenew(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = func(w http.ResponseWriter, r *http.Request) {
		// flat shape tolerated by the client
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "A2", "refreshToken": "R2"})
	}

	token, err := f.session.Renew(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A2", token)
	f.requireCredentials(t, "A2", "R2")

	require.Equal(t, "R1", f.backend.refreshRequests()[0].RefreshToken)
}

func TestSession_RecordsRequestMetrics(t *testing.T) {
	f := newFixture(t, "A2")
	f.login(t, "A1", "R1")
	f.backend.onRefresh = refreshWith("A2", "R2")

	_, err := f.session.Get(context.Background(), "/bookings")
	require.NoError(t, err)

	f.backend.onData = func(w http.ResponseWriter, r *http.Request) bool {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Booking not found"})
		return true
	}
	_, err = f.session.Get(context.Background(), "/bookings/404")
	require.Error(t, err)

	expected := `
# HELP dashboard_client_requests_total Logical API calls by method and result.
# TYPE dashboard_client_requests_total counter
dashboard_client_requests_total{method="GET",result="http"} 1
dashboard_client_requests_total{method="GET",result="success"} 1
# HELP dashboard_client_token_refreshes_total Token refresh calls by result (success, transient, terminal).
# TYPE dashboard_client_token_refreshes_total counter
dashboard_client_token_refreshes_total{result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected),
		"dashboard_client_requests_total", "dashboard_client_token_refreshes_total"))
}
