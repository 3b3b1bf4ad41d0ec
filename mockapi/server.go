// Package mockapi is an in-memory restaurant dashboard backend. It issues short
// lived JWT access tokens with rotating refresh tokens, and can be told to expire
// every token it has issued, which makes it a test double for the client's token
// renewal path as well as a local development server.
package mockapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAPIPrefix      = "/api/v1/dashboard"
	DefaultAccessTokenTTL = 15 * time.Minute
	DefaultRefreshTTL     = 7 * 24 * time.Hour
	DefaultMaxUploadBytes = 5 << 20
	defaultSecret         = "mockapi-development-secret"
)

var errEmailTaken = errors.New("email is already registered")

type options struct {
	prefix         string
	secret         string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	maxUploadBytes int64
	bcryptCost     int
	logger         zerolog.Logger
	now            func() time.Time
}

type Option func(*options)

func WithAPIPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = strings.TrimRight(prefix, "/")
	}
}

// WithSecret sets the HMAC signing key. An empty secret keeps the built-in one.
func WithSecret(secret string) Option {
	return func(o *options) {
		if secret != "" {
			o.secret = secret
		}
	}
}

func WithAccessTokenTTL(d time.Duration) Option {
	return func(o *options) {
		o.accessTTL = d
	}
}

func WithRefreshTokenTTL(d time.Duration) Option {
	return func(o *options) {
		o.refreshTTL = d
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(o *options) {
		o.maxUploadBytes = n
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(o *options) {
		o.bcryptCost = cost
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used to seed booking times
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Server is the fake backend. It implements http.Handler.
type Server struct {
	opts    options
	router  *mux.Router
	signer  *hmacSigner
	refresh *refreshTokens
	users   *accounts

	generation   atomic.Int64
	refreshDelay atomic.Int64
	logins       atomic.Int32
	refreshes    atomic.Int32
	rejections   atomic.Int32

	mu   sync.RWMutex
	data dataset
}

// New creates a server seeded with an owner and a staff account (password
// SeedPassword) and a small restaurant dataset.
func New(opts ...Option) (*Server, error) {
	o := options{
		prefix:         DefaultAPIPrefix,
		secret:         defaultSecret,
		accessTTL:      DefaultAccessTokenTTL,
		refreshTTL:     DefaultRefreshTTL,
		maxUploadBytes: DefaultMaxUploadBytes,
		bcryptCost:     bcrypt.DefaultCost,
		logger:         zerolog.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		opts:    o,
		signer:  newHMACSigner(o.secret),
		refresh: newRefreshTokens(o.refreshTTL),
		users:   newAccounts(o.bcryptCost),
		data:    seedData(o.now()),
	}
	s.opts.logger = o.logger.With().Str("component", "mockapi").Logger()

	seed := []*account{
		{Name: "Restaurant Owner", Email: OwnerEmail, Role: RoleOwner, Status: accountActive, RestaurantID: 1, RestaurantName: s.data.restaurant.Name},
		{Name: "Floor Staff", Email: StaffEmail, Role: RoleStaff, Status: accountActive, RestaurantID: 1, RestaurantName: s.data.restaurant.Name},
	}
	for _, a := range seed {
		if err := s.users.add(a, SeedPassword); err != nil {
			return nil, errors.Wrapf(err, "failed to seed account %s", a.Email)
		}
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Expire invalidates every access token issued so far. Refresh tokens stay valid.
func (s *Server) Expire() {
	s.generation.Add(1)
	s.opts.logger.Info().Int64("generation", s.generation.Load()).Msg("access tokens expired")
}

// RevokeRefreshTokens invalidates every refresh token, so the next refresh is rejected.
func (s *Server) RevokeRefreshTokens() {
	s.refresh.revokeAll()
}

// SetRefreshDelay holds each refresh response for d
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// RefreshCount returns how many refresh requests were received
func (s *Server) RefreshCount() int {
	return int(s.refreshes.Load())
}

// RejectionCount returns how many requests were refused for a bad access token
func (s *Server) RejectionCount() int {
	return int(s.rejections.Load())
}

func (s *Server) initRoutes() {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware, s.recoverMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	r.HandleFunc("/auth/refresh", s.refreshHandler).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix(s.opts.prefix).Subrouter()
	api.HandleFunc("/auth/login", s.loginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/register-owner", s.registerOwnerHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/register-staff", s.registerStaffHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.refreshHandler).Methods(http.MethodPost)

	protected := func(path string, h http.HandlerFunc, methods ...string) {
		api.HandleFunc(path, chainMiddleware(h, s.requireAuth)).Methods(methods...)
	}
	protected("/auth/me", s.meHandler, http.MethodGet)

	protected("/bookings", s.listBookingsHandler, http.MethodGet)
	protected("/bookings/{id:[0-9]+}", s.getBookingHandler, http.MethodGet)
	protected("/bookings/{id:[0-9]+}/{action}", s.bookingActionHandler, http.MethodPatch)

	protected("/restaurants/me", s.getRestaurantHandler, http.MethodGet)
	protected("/restaurants/me", s.updateRestaurantHandler, http.MethodPatch)

	protected("/tables", s.listTablesHandler, http.MethodGet)
	protected("/tables", s.createTableHandler, http.MethodPost)
	protected("/tables/{id:[0-9]+}", s.updateTableHandler, http.MethodPatch)
	protected("/tables/{id:[0-9]+}", s.deleteTableHandler, http.MethodDelete)

	protected("/notifications", s.listNotificationsHandler, http.MethodGet)
	protected("/notifications/unread-count", s.unreadCountHandler, http.MethodGet)
	protected("/notifications/read-all", s.markAllReadHandler, http.MethodPatch)
	protected("/notifications/{id:[0-9]+}/read", s.markReadHandler, http.MethodPatch)
	protected("/notifications/{id:[0-9]+}", s.deleteNotificationHandler, http.MethodDelete)

	protected("/images", s.listImagesHandler, http.MethodGet)
	protected("/images", s.uploadImageHandler, http.MethodPost)
	protected("/images/{id:[0-9]+}", s.deleteImageHandler, http.MethodDelete)
	protected("/images/{id:[0-9]+}/primary", s.setPrimaryImageHandler, http.MethodPatch)

	s.router = r
}

func chainMiddleware(h http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.opts.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.opts.logger.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// requireAuth admits requests carrying a valid access token of the current generation
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.rejections.Add(1)
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, err := s.signer.verify(raw)
		if err != nil || claims.Generation != s.generation.Load() {
			s.rejections.Add(1)
			writeError(w, http.StatusUnauthorized, "Access token expired")
			return
		}
		a, ok := s.users.get(atoi(claims.Subject))
		if !ok {
			s.rejections.Add(1)
			writeError(w, http.StatusUnauthorized, "Unknown user")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, a)))
	}
}

func currentAccount(r *http.Request) *account {
	a, _ := r.Context().Value(ctxKey{}).(*account)
	return a
}

// issue creates an access and refresh token pair for a
func (s *Server) issue(a *account) (string, string, error) {
	access, err := s.signer.sign(a.ID, a.Role, s.generation.Load(), s.opts.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.refresh.create(a.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
