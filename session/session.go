// Package session is the authenticated request pipeline of the dashboard client.
//
// Every call carries the stored access token. When the backend answers 401 the
// session refreshes the token once, shared by all concurrent callers, and replays
// the call once with the new token. A refresh rejected by the backend (or
// impossible for lack of a refresh token) ends the session; any other refresh
// failure is returned to the caller and the session is kept.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-dashboard-client/credentials"
	"github.com/jrsteele09/go-dashboard-client/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL          = "http://localhost:8027"
	DefaultAPIPrefix        = "/api/v1/dashboard"
	DefaultRefreshPath      = "/auth/refresh"
	DefaultRequestTimeout   = 30 * time.Second
	DefaultRenewalTimeout   = 15 * time.Second
	DefaultMaxResponseBytes = 10 << 20
)

type options struct {
	baseURL          string
	apiPrefix        string
	refreshPath      string
	httpClient       *http.Client
	requestTimeout   time.Duration
	renewalTimeout   time.Duration
	maxResponseBytes int64
	onSessionEnded   func()
	registerer       prometheus.Registerer
	logger           zerolog.Logger
}

type Option func(*options)

func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithAPIPrefix(prefix string) Option {
	return func(o *options) {
		o.apiPrefix = prefix
	}
}

// WithRefreshPath sets the refresh endpoint path, relative to the base URL
func WithRefreshPath(path string) Option {
	return func(o *options) {
		o.refreshPath = path
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithRequestTimeout bounds each attempt of a request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithRenewalTimeout bounds each token refresh. Zero disables the bound.
func WithRenewalTimeout(d time.Duration) Option {
	return func(o *options) {
		o.renewalTimeout = d
	}
}

func WithMaxResponseBytes(n int64) Option {
	return func(o *options) {
		o.maxResponseBytes = n
	}
}

// WithSessionEndedHandler is called after the stored session is cleared, by
// Logout or by a terminal refresh failure. It is where the application returns
// to its login screen.
func WithSessionEndedHandler(fn func()) Option {
	return func(o *options) {
		o.onSessionEnded = fn
	}
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig applies the API settings from cfg
func WithConfig(cfg config.APIConfig) Option {
	return func(o *options) {
		WithBaseURL(cfg.GetBaseURL())(o)
		o.apiPrefix = cfg.GetAPIPrefix()
		o.refreshPath = cfg.GetRefreshPath()
		o.requestTimeout = cfg.GetRequestTimeout()
		o.renewalTimeout = cfg.GetRenewalTimeout()
		o.maxResponseBytes = cfg.GetMaxResponseBytes()
	}
}

// Session is the public surface of the pipeline. It is safe for concurrent use.
type Session struct {
	store          *credentials.Store
	exec           *executor
	coordinator    *Coordinator
	onSessionEnded func()
	epoch          *epoch
	metrics        *Metrics
	logger         zerolog.Logger
}

func New(store *credentials.Store, opts ...Option) (*Session, error) {
	o := options{
		baseURL:          DefaultBaseURL,
		apiPrefix:        DefaultAPIPrefix,
		refreshPath:      DefaultRefreshPath,
		requestTimeout:   DefaultRequestTimeout,
		renewalTimeout:   DefaultRenewalTimeout,
		maxResponseBytes: DefaultMaxResponseBytes,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	var metrics *Metrics
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	logger := o.logger.With().Str("component", "session").Logger()
	ep := &epoch{}
	r := &renewer{
		client:         o.httpClient,
		url:            o.baseURL + o.refreshPath,
		store:          store,
		maxBytes:       o.maxResponseBytes,
		onSessionEnded: o.onSessionEnded,
		epoch:          ep,
		metrics:        metrics,
		logger:         logger,
	}
	coordinator := NewCoordinator(r.renew, o.renewalTimeout)
	coordinator.metrics = metrics

	return &Session{
		store: store,
		exec: &executor{
			client:   o.httpClient,
			baseURL:  o.baseURL,
			prefix:   o.apiPrefix,
			timeout:  o.requestTimeout,
			maxBytes: o.maxResponseBytes,
		},
		coordinator:    coordinator,
		onSessionEnded: o.onSessionEnded,
		epoch:          ep,
		metrics:        metrics,
		logger:         logger,
	}, nil
}

// Store returns the credential store backing the session
func (s *Session) Store() *credentials.Store {
	return s.store
}

type attemptState int

const (
	stateFirstAttempt attemptState = iota
	stateRenewing
	stateRetried
	stateDone
)

// Request performs req, refreshing the access token and replaying req at most
// once if the backend rejects the token.
func (s *Session) Request(ctx context.Context, req Request) (json.RawMessage, error) {
	p, err := s.exec.prepare(req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With().Str("request_id", p.requestID).Str("method", p.method).Str("path", p.path).Logger()

	var (
		token  string
		result json.RawMessage
		outErr error
	)
	state := stateFirstAttempt
	for state != stateDone {
		switch state {
		case stateFirstAttempt:
			var ok bool
			token, ok, err = s.store.AccessToken(ctx)
			if err != nil {
				outErr, state = s.failWith(p, storageError(err)), stateDone
				continue
			}
			if !ok {
				logger.Debug().Msg("no access token stored, sending unauthenticated")
			}
			out := s.exec.execute(ctx, p, token)
			if out.kind == outcomeAuthExpired && !p.skipRenewal {
				logger.Debug().Msg("access token rejected, refreshing")
				state = stateRenewing
				continue
			}
			result, outErr = s.settle(p, out)
			state = stateDone

		case stateRenewing:
			token, err = s.renewFor(ctx, token)
			if err != nil {
				logger.Warn().Err(err).Bool("terminal", IsTerminal(err)).Msg("token refresh failed")
				s.metrics.request(p.method, "refresh_failed")
				outErr, state = err, stateDone
				continue
			}
			state = stateRetried

		case stateRetried:
			out := s.exec.execute(ctx, p, token)
			if out.kind == outcomeAuthExpired {
				logger.Warn().Msg("access token rejected again after refresh")
			}
			result, outErr = s.settle(p, out)
			state = stateDone
		}
	}
	return result, outErr
}

// renewFor returns a token to replay with after rejected was refused. When
// another caller already replaced the stored token, that token is used as is.
func (s *Session) renewFor(ctx context.Context, rejected string) (string, error) {
	current, ok, err := s.store.AccessToken(ctx)
	if err != nil {
		return "", &RenewalError{Err: storageError(err)}
	}
	if ok && current != rejected {
		return current, nil
	}
	return s.coordinator.Renew(ctx)
}

// settle turns the final outcome into Request's return values. A 401 here is
// the second one for this call, or one on a call that skips renewal.
func (s *Session) settle(p *prepared, out outcome) (json.RawMessage, error) {
	switch out.kind {
	case outcomeSuccess:
		s.metrics.request(p.method, "success")
		return out.body, nil
	case outcomeAuthExpired:
		if out.err == nil {
			out.err = authExpiredError(nil)
		}
		return nil, s.failWith(p, out.err)
	default:
		return nil, s.failWith(p, out.err)
	}
}

func (s *Session) failWith(p *prepared, e *Error) error {
	if e.Method == "" {
		e.Method, e.Path = p.method, p.path
	}
	s.metrics.request(p.method, e.Kind.String())
	return e
}

func (s *Session) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodGet, Path: path})
}

func (s *Session) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (s *Session) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

func (s *Session) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (s *Session) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Upload posts file as multipart form data
func (s *Session) Upload(ctx context.Context, path string, file *FormFile) (json.RawMessage, error) {
	return s.Request(ctx, Request{Method: http.MethodPost, Path: path, Body: file})
}

// Do performs req and decodes the JSON response into T
func Do[T any](ctx context.Context, s *Session, req Request) (T, error) {
	var v T
	raw, err := s.Request(ctx, req)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &Error{Kind: KindDecode, Method: strings.ToUpper(req.Method), Path: req.Path, Message: "unexpected response shape", Err: err}
	}
	return v, nil
}

// IsAuthenticated reports whether an access token is stored. It never touches the network.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok, err := s.store.AccessToken(ctx)
	return err == nil && ok
}

// Renew refreshes the access token now, sharing any refresh already in flight.
func (s *Session) Renew(ctx context.Context) (string, error) {
	return s.coordinator.Renew(ctx)
}

// Logout clears the stored session and calls the session-ended handler. Logging
// out without a session is a no-op apart from the handler call. A refresh still
// in flight finishes with ErrSessionEnded and does not store its tokens.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.epoch.end(func() error { return s.store.Clear(ctx) }); err != nil {
		return err
	}
	s.logger.Info().Msg("logged out")
	if s.onSessionEnded != nil {
		s.onSessionEnded()
	}
	return nil
}
