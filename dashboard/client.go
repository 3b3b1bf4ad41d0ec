// Package dashboard wraps the restaurant dashboard API endpoints on top of an
// authenticated session.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-dashboard-client/internal/errors"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/rs/zerolog"
)

// ErrNotFound is matched by errors for resources the backend does not know
var ErrNotFound = apperrors.ErrNotFound

// notFound marks a 404 from the backend with ErrNotFound, keeping the *session.Error in the chain
func notFound(err error, format string, args ...any) error {
	var serr *session.Error
	if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apperrors.Wrapf(err, format, args...))
	}
	return err
}

// Requester performs one API call. *session.Session implements it.
type Requester interface {
	Request(ctx context.Context, req session.Request) (json.RawMessage, error)
}

// Client groups the dashboard services
type Client struct {
	Auth          *AuthService
	Bookings      *BookingsService
	Restaurant    *RestaurantService
	Tables        *TablesService
	Notifications *NotificationsService
	Images        *ImagesService
	Overview      *OverviewService
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	logger zerolog.Logger
	now    func() time.Time
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock the overview uses to decide what "today" is
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		o.now = now
	}
}

// NewClient builds every service over s
func NewClient(s *session.Session, options ...ClientOption) *Client {
	o := clientOptions{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range options {
		opt(&o)
	}

	bookings := &BookingsService{r: s}
	restaurant := &RestaurantService{r: s}
	tables := &TablesService{r: s}
	overview := NewOverviewService(bookings, restaurant, tables, o.logger)
	overview.now = o.now
	return &Client{
		Auth:          NewAuthService(s),
		Bookings:      bookings,
		Restaurant:    restaurant,
		Tables:        tables,
		Notifications: &NotificationsService{r: s},
		Images:        &ImagesService{r: s},
		Overview:      overview,
	}
}
