package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/jrsteele09/go-dashboard-client/apimodel"
	apperrors "github.com/jrsteele09/go-dashboard-client/internal/errors"
)

// Renewal failure causes
var (
	ErrNoRefreshToken   = apperrors.ErrNoRefreshToken
	ErrRefreshRejected  = apperrors.ErrRefreshRejected
	ErrRefreshMalformed = apperrors.ErrRefreshMalformed
	ErrSessionExpired   = apperrors.ErrSessionExpired
	ErrNotAuthenticated = apperrors.ErrNotAuthenticated
	ErrSessionEnded     = apperrors.ErrSessionEnded
	ErrInvalidBody      = apperrors.ErrInvalidBody
	ErrRenewalPanicked  = errors.New("token refresh panicked")
)

const payloadTooLargeMessage = "file too large: please choose an image smaller than 5MB"

// Kind classifies a failed request
type Kind int

const (
	KindHTTP            Kind = iota + 1 // non-2xx response other than 401 and 413
	KindPayloadTooLarge                 // 413
	KindDecode                          // response body could not be read as JSON
	KindTransport                       // the request never produced a response
	KindTimeout
	KindCanceled
	KindAuthExpired // 401 after a refresh, or on a call that skips renewal
	KindStorage     // credential store failure
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindDecode:
		return "decode"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindAuthExpired:
		return "auth_expired"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a hard failure of one request. Body holds the JSON error body when the
// server sent one.
type Error struct {
	Kind    Kind
	Method  string
	Path    string
	Status  int
	Message string
	Body    json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Method == "" {
		return msg
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns validation details from the error body, if any
func (e *Error) Details() []apimodel.ErrorDetail {
	b, ok := apimodel.ParseErrorBody(e.Body)
	if !ok {
		return nil
	}
	return b.AllDetails()
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// RenewalError is returned when refreshing the access token fails. Terminal
// failures have already cleared the stored session.
type RenewalError struct {
	Terminal bool
	Status   int
	Err      error
}

func (e *RenewalError) Error() string {
	return "token refresh failed: " + e.Err.Error()
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSessionExpired) match terminal failures
func (e *RenewalError) Is(target error) bool {
	return e.Terminal && target == ErrSessionExpired
}

// IsTerminal reports whether err ended the session
func IsTerminal(err error) bool {
	var re *RenewalError
	return errors.As(err, &re) && re.Terminal
}

func storageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: "credential store unavailable", Err: err}
}

// transportError classifies a failed round trip against the caller's context.
func transportError(parent context.Context, err error) *Error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindTransport, Message: "server unreachable", Err: err}
}
