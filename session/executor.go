package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-dashboard-client/apimodel"
	"golang.org/x/oauth2"
)

// Request is one logical API call. Path is relative to the API prefix.
type Request struct {
	Method string
	Path   string
	Body   any // JSON encoded, or a *FormFile for multipart uploads
	Header http.Header

	// SkipRenewal reports a 401 as KindAuthExpired straight away. Used for calls
	// that establish credentials, such as login.
	SkipRenewal bool
}

// FormFile is a multipart upload with optional extra form fields
type FormFile struct {
	FieldName string // defaults to "file"
	FileName  string
	Content   io.Reader
	Fields    map[string]string
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeAuthExpired
	outcomeFailure
)

type outcome struct {
	kind outcomeKind
	body json.RawMessage
	err  *Error
}

// prepared is a Request with its body encoded once so it can be replayed.
type prepared struct {
	method      string
	path        string
	url         string
	body        []byte
	contentType string
	header      http.Header
	requestID   string
	skipRenewal bool
}

type executor struct {
	client   *http.Client
	baseURL  string
	prefix   string
	timeout  time.Duration
	maxBytes int64
}

func (e *executor) prepare(req Request) (*prepared, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	p := &prepared{
		method:      method,
		path:        req.Path,
		url:         e.baseURL + e.prefix + req.Path,
		header:      req.Header.Clone(),
		requestID:   uuid.New().String(),
		skipRenewal: req.SkipRenewal,
	}
	if req.Body == nil || method == http.MethodGet || method == http.MethodDelete {
		return p, nil
	}

	if f, ok := req.Body.(*FormFile); ok {
		if f == nil {
			return nil, &Error{Kind: KindDecode, Method: method, Path: req.Path, Message: "upload has no form data", Err: ErrInvalidBody}
		}
		body, contentType, err := encodeMultipart(f)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Method: method, Path: req.Path, Message: "could not encode upload", Err: fmt.Errorf("%w: %w", ErrInvalidBody, err)}
		}
		p.body, p.contentType = body, contentType
		return p, nil
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Method: method, Path: req.Path, Message: "could not encode request body", Err: fmt.Errorf("%w: %w", ErrInvalidBody, err)}
	}
	p.body, p.contentType = body, "application/json"
	return p, nil
}

func encodeMultipart(f *FormFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if f.Content != nil {
		field := f.FieldName
		if field == "" {
			field = "file"
		}
		part, err := w.CreateFormFile(field, f.FileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// execute sends one attempt of p with accessToken attached. An empty token sends
// the request unauthenticated.
func (e *executor) execute(ctx context.Context, p *prepared, accessToken string) outcome {
	attemptCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, p.method, p.url, body)
	if err != nil {
		return e.fail(p, &Error{Kind: KindTransport, Message: "invalid request", Err: err})
	}
	for k, v := range p.header {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", p.requestID)
	if p.contentType != "" {
		httpReq.Header.Set("Content-Type", p.contentType)
	}
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return e.fail(p, transportError(ctx, err))
	}
	defer resp.Body.Close()

	data, truncated, err := readLimited(resp.Body, e.maxBytes)
	if err != nil {
		return e.fail(p, transportError(ctx, err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return outcome{kind: outcomeAuthExpired, err: authExpiredError(data)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if truncated {
			return e.fail(p, &Error{Kind: KindDecode, Status: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", e.maxBytes)})
		}
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return outcome{kind: outcomeSuccess, body: json.RawMessage("null")}
		}
		if !json.Valid(trimmed) {
			return e.fail(p, &Error{Kind: KindDecode, Status: resp.StatusCode, Message: "response is not valid JSON"})
		}
		return outcome{kind: outcomeSuccess, body: json.RawMessage(trimmed)}
	}

	return e.fail(p, httpError(resp.StatusCode, data, truncated))
}

func (e *executor) fail(p *prepared, err *Error) outcome {
	err.Method, err.Path = p.method, p.path
	return outcome{kind: outcomeFailure, err: err}
}

// httpError builds the hard failure for a non-2xx, non-401 response. Non-JSON
// bodies (proxy HTML pages and the like) are replaced with a generic message.
func httpError(status int, data []byte, truncated bool) *Error {
	if status == http.StatusRequestEntityTooLarge {
		return &Error{Kind: KindPayloadTooLarge, Status: status, Message: payloadTooLargeMessage}
	}
	if truncated {
		return &Error{Kind: KindHTTP, Status: status, Message: "server returned an oversized error response"}
	}
	b, ok := apimodel.ParseErrorBody(data)
	if !ok {
		return &Error{Kind: KindHTTP, Status: status, Message: "server returned an unexpected non-JSON error response"}
	}
	msg := b.Text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &Error{Kind: KindHTTP, Status: status, Message: msg, Body: json.RawMessage(bytes.TrimSpace(data))}
}

// authExpiredError keeps the server's message for a 401 that ends up reported to the caller.
func authExpiredError(data []byte) *Error {
	e := &Error{Kind: KindAuthExpired, Status: http.StatusUnauthorized, Message: "access token rejected"}
	if b, ok := apimodel.ParseErrorBody(data); ok {
		if msg := b.Text(); msg != "" {
			e.Message = msg
		}
		e.Body = json.RawMessage(bytes.TrimSpace(data))
	}
	return e
}

// readLimited reads at most max bytes and reports whether the body was longer.
func readLimited(r io.Reader, max int64) ([]byte, bool, error) {
	if max <= 0 {
		data, err := io.ReadAll(r)
		return data, false, err
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > max {
		return data[:max], true, nil
	}
	return data, false, nil
}
